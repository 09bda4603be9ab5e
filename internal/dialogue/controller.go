// Package dialogue drives the intake conversation: it decides which required
// field to ask about next and when a report is complete.
package dialogue

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/safety-intake/internal/behavior"
	"github.com/MikeSquared-Agency/safety-intake/internal/extractor"
	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

// Turn is the result of processing one user message.
type Turn struct {
	State    State
	Prompt   string
	Recorded []string
	Behavior behavior.Record
	// Completed is set only on the step that moved the state to complete.
	Completed bool
}

type Controller struct {
	now   func() time.Time
	newID func() string
}

// NewController returns a controller using now as its clock. A nil clock
// means time.Now.
func NewController(now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{now: now, newID: uuid.NewString}
}

// Start opens a new report for sessionID. No field is asked yet: the first
// message is read as a free-form description.
func (c *Controller) Start(sessionID string) State {
	return c.open(sessionID, MsgWelcome)
}

// Reset discards the current report and opens a new one for the same session.
func (c *Controller) Reset(s State) State {
	return c.open(s.SessionID, MsgWelcomeBack)
}

func (c *Controller) open(sessionID, welcome string) State {
	now := c.now()
	s := State{
		SessionID: sessionID,
		ReportID:  c.newID(),
		Phase:     PhaseCollecting,
		Report:    report.New(),
		StartedAt: now,
	}
	s.Append(RoleAssistant, welcome, now)
	return s
}

// Step processes one user message against s. The behavior record is computed
// for every message. Extraction only runs while collecting; an empty message
// leaves the state untouched.
func (c *Controller) Step(s State, text string) Turn {
	rec := behavior.Score(text)
	next := s.Clone()

	if next.Phase == PhaseComplete {
		return Turn{State: next, Prompt: MsgAlreadySubmitted, Behavior: rec}
	}

	if strings.TrimSpace(text) == "" {
		return Turn{State: next, Prompt: noMatch(next), Behavior: rec}
	}

	next.Behavior = &rec
	if IsGreeting(text) {
		return Turn{State: next, Prompt: MsgGreeting, Behavior: rec}
	}

	updated := extractor.ExtractAnswer(text, next.Report, next.Asking)
	recorded := newlySet(next.Report, updated)
	next.Report = updated

	f, missing := updated.NextMissing()
	if !missing {
		now := c.now()
		next.Phase = PhaseComplete
		next.CompletedAt = &now
		next.Asking = ""
		return Turn{State: next, Prompt: MsgComplete, Recorded: recorded, Behavior: rec, Completed: true}
	}

	next.Asking = f.Name
	if len(recorded) == 0 {
		return Turn{State: next, Prompt: noMatch(next), Behavior: rec}
	}
	return Turn{State: next, Prompt: progress(recorded, f), Recorded: recorded, Behavior: rec}
}

// IsGreeting reports whether text is only a greeting.
func IsGreeting(text string) bool {
	t := strings.ToLower(strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
	return greetings[t]
}

// noMatch repeats the current question. Before any question has been asked
// it uses the first missing field's question.
func noMatch(s State) string {
	q := s.Question()
	if q == "" {
		if f, ok := s.Report.NextMissing(); ok {
			q = f.Question
		}
	}
	return msgNoMatchPrefix + q
}

func progress(recorded []string, next report.Field) string {
	cols := make([]string, 0, len(recorded))
	for _, name := range recorded {
		if f, ok := report.Lookup(name); ok {
			cols = append(cols, f.Column)
		}
	}
	return msgRecordedPrefix + strings.Join(cols, ", ") + ".\n\n" + next.Question
}

// newlySet returns the fields set in after but not before, in table order.
func newlySet(before, after report.Report) []string {
	var out []string
	for _, f := range report.Fields() {
		if after.Has(f.Name) && !before.Has(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}
