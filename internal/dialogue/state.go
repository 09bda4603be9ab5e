package dialogue

import (
	"time"

	"github.com/MikeSquared-Agency/safety-intake/internal/behavior"
	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseComplete   Phase = "complete"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one line of the conversation transcript.
type Entry struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// State is the serializable dialogue state of one session. The controller
// never mutates a State it is given; it returns a new one.
type State struct {
	SessionID        string           `json:"session_id"`
	ReportID         string           `json:"report_id"`
	Phase            Phase            `json:"phase"`
	Report           report.Report    `json:"report"`
	Asking           string           `json:"asking,omitempty"`
	Behavior         *behavior.Record `json:"behavior,omitempty"`
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	Delivered        bool             `json:"delivered"`
	DeliveryAttempts int              `json:"delivery_attempts"`
	Transcript       []Entry          `json:"transcript"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Report = s.Report.Clone()
	if s.Behavior != nil {
		b := *s.Behavior
		b.Signals = append([]behavior.Signal(nil), s.Behavior.Signals...)
		out.Behavior = &b
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	out.Transcript = append([]Entry(nil), s.Transcript...)
	return out
}

// Append adds a transcript entry.
func (s *State) Append(role Role, content string, at time.Time) {
	s.Transcript = append(s.Transcript, Entry{Role: role, Content: content, At: at})
}

// Question returns the question for the field currently being asked, or ""
// once the report is complete.
func (s State) Question() string {
	if s.Phase == PhaseComplete || s.Asking == "" {
		return ""
	}
	f, ok := report.Lookup(s.Asking)
	if !ok {
		return ""
	}
	return f.Question
}

// Meta returns the row metadata for a completed state.
func (s State) Meta() report.Meta {
	m := report.Meta{ReportID: s.ReportID}
	if s.CompletedAt != nil {
		m.SubmittedAt = *s.CompletedAt
	}
	if s.Behavior != nil {
		m.InputLength = s.Behavior.Length
		m.SuspicionScore = s.Behavior.Score
		m.RiskLevel = string(s.Behavior.Risk)
	}
	return m
}
