// Package intake runs the conversation for each session: it loads dialogue
// state, applies one user message, delivers completed reports and stores the
// result.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/safety-intake/internal/behavior"
	"github.com/MikeSquared-Agency/safety-intake/internal/dialogue"
	"github.com/MikeSquared-Agency/safety-intake/internal/hermes"
	"github.com/MikeSquared-Agency/safety-intake/internal/report"
	"github.com/MikeSquared-Agency/safety-intake/internal/session"
	"github.com/MikeSquared-Agency/safety-intake/internal/sink"
	"github.com/MikeSquared-Agency/safety-intake/internal/stylist"
)

var (
	// ErrNotComplete is returned by Submit while required fields are missing.
	ErrNotComplete = errors.New("report is not complete")
	// ErrAlreadyDelivered is returned by Submit after a successful delivery.
	ErrAlreadyDelivered = errors.New("report already delivered")
)

// Reply is the outcome of one call: the stored state and the message shown
// to the user.
type Reply struct {
	State    dialogue.State
	Message  string
	Recorded []string
	Behavior *behavior.Record
	// DeliveryFailed is set when this call tried to deliver the report and
	// the sink refused it.
	DeliveryFailed bool
}

// Service orchestrates the intake pipeline.
type Service struct {
	sessions session.Store
	ctrl     *dialogue.Controller
	sink     sink.Sink
	stylist  *stylist.Stylist
	events   hermes.Publisher
	logger   *slog.Logger
	now      func() time.Time
	locks    *keyedMutex
}

func New(sessions session.Store, sk sink.Sink, st *stylist.Stylist, events hermes.Publisher, logger *slog.Logger) *Service {
	if events == nil {
		events = hermes.Noop{}
	}
	return &Service{
		sessions: sessions,
		ctrl:     dialogue.NewController(nil),
		sink:     sk,
		stylist:  st,
		events:   events,
		logger:   logger,
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

// SinkName names the delivery backend.
func (s *Service) SinkName() string { return s.sink.Name() }

// StylistProvider names the rewrite backend, or "none".
func (s *Service) StylistProvider() string { return s.stylist.Provider() }

// Start opens a new session.
func (s *Service) Start(ctx context.Context) (Reply, error) {
	st := s.ctrl.Start(uuid.NewString())
	if err := s.sessions.Save(ctx, st); err != nil {
		return Reply{}, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("session started", "session_id", st.SessionID, "report_id", st.ReportID)
	return Reply{State: st, Message: lastAssistant(st)}, nil
}

// Get returns the stored state of a session.
func (s *Service) Get(ctx context.Context, sessionID string) (dialogue.State, error) {
	return s.sessions.Get(ctx, sessionID)
}

// Handle processes one user message. A message sent after the report is
// complete retries delivery when the previous attempt failed.
func (s *Service) Handle(ctx context.Context, sessionID, text string) (Reply, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	if strings.TrimSpace(text) == "" {
		turn := s.ctrl.Step(st, text)
		msg := turn.Prompt
		if st.Phase == dialogue.PhaseComplete && !st.Delivered {
			msg = dialogue.MsgDeliveryFailed
		}
		return Reply{State: st, Message: msg, Behavior: &turn.Behavior}, nil
	}

	now := s.now()
	if st.Phase == dialogue.PhaseComplete && !st.Delivered {
		rec := behavior.Score(text)
		st.Append(dialogue.RoleUser, text, now)
		reply := s.deliver(ctx, st)
		reply.Behavior = &rec
		return s.save(ctx, reply)
	}

	turn := s.ctrl.Step(st, text)
	next := turn.State
	next.Append(dialogue.RoleUser, text, now)

	s.logger.Info("message processed",
		"session_id", sessionID,
		"input_len", turn.Behavior.Length,
		"score", turn.Behavior.Score,
		"risk", turn.Behavior.Risk,
		"recorded", len(turn.Recorded),
	)

	if turn.Completed {
		reply := s.deliver(ctx, next)
		reply.Recorded = turn.Recorded
		reply.Behavior = &turn.Behavior
		return s.save(ctx, reply)
	}

	msg := turn.Prompt
	if next.Phase == dialogue.PhaseCollecting {
		msg = s.stylist.Style(ctx, text, turn.Prompt)
	}
	next.Append(dialogue.RoleAssistant, msg, s.now())
	return s.save(ctx, Reply{State: next, Message: msg, Recorded: turn.Recorded, Behavior: &turn.Behavior})
}

// Submit retries delivery of a completed report. The returned error wraps
// sink.ErrDelivery when the sink fails again; the state is saved either way.
func (s *Service) Submit(ctx context.Context, sessionID string) (Reply, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	switch {
	case st.Phase != dialogue.PhaseComplete:
		return Reply{State: st}, ErrNotComplete
	case st.Delivered:
		return Reply{State: st}, ErrAlreadyDelivered
	}

	reply, err := s.save(ctx, s.deliver(ctx, st))
	if err != nil {
		return reply, err
	}
	if reply.DeliveryFailed {
		return reply, fmt.Errorf("submit %s: %w", st.ReportID, sink.ErrDelivery)
	}
	return reply, nil
}

// Reset discards the current report and opens a new one in the same session.
func (s *Service) Reset(ctx context.Context, sessionID string) (Reply, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	if st.Phase == dialogue.PhaseComplete && !st.Delivered {
		s.logger.Warn("discarding undelivered report",
			"session_id", sessionID,
			"report_id", st.ReportID,
			"attempts", st.DeliveryAttempts,
		)
	}

	next := s.ctrl.Reset(st)
	return s.save(ctx, Reply{State: next, Message: lastAssistant(next)})
}

// End removes the session. An undelivered completed report is discarded.
func (s *Service) End(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	st, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if st.Phase == dialogue.PhaseComplete && !st.Delivered {
		s.logger.Warn("discarding undelivered report",
			"session_id", sessionID,
			"report_id", st.ReportID,
			"attempts", st.DeliveryAttempts,
		)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session ended", "session_id", sessionID, "report_id", st.ReportID, "delivered", st.Delivered)
	return nil
}

// deliver sends the completed report to the sink once and records the
// outcome on the returned state.
func (s *Service) deliver(ctx context.Context, st dialogue.State) Reply {
	st.DeliveryAttempts++
	row := report.BuildRow(st.Meta(), st.Report)
	err := s.sink.Append(ctx, row)

	ev := s.event(st, err)
	if err != nil {
		s.logger.Error("report delivery failed",
			"session_id", st.SessionID,
			"report_id", st.ReportID,
			"sink", s.sink.Name(),
			"attempts", st.DeliveryAttempts,
			"error", err,
		)
		s.publish(hermes.SubjectDeliveryFailed, ev)
		st.Append(dialogue.RoleAssistant, dialogue.MsgDeliveryFailed, s.now())
		return Reply{State: st, Message: dialogue.MsgDeliveryFailed, DeliveryFailed: true}
	}

	st.Delivered = true
	s.logger.Info("report delivered",
		"session_id", st.SessionID,
		"report_id", st.ReportID,
		"sink", s.sink.Name(),
		"attempts", st.DeliveryAttempts,
		"risk", ev.Risk,
	)
	s.publish(hermes.SubjectSubmitted, ev)
	if ev.Risk == string(behavior.RiskHigh) {
		s.publish(hermes.SubjectFlagged, ev)
	}
	st.Append(dialogue.RoleAssistant, dialogue.MsgSubmitted, s.now())
	return Reply{State: st, Message: dialogue.MsgSubmitted}
}

func (s *Service) event(st dialogue.State, err error) hermes.ReportEvent {
	ev := hermes.ReportEvent{
		SessionID: st.SessionID,
		ReportID:  st.ReportID,
		Backend:   s.sink.Name(),
		Signals:   []string{},
		Attempts:  st.DeliveryAttempts,
		At:        s.now(),
	}
	for name, dst := range map[string]*string{
		report.FieldMake:      &ev.Make,
		report.FieldModel:     &ev.Model,
		report.FieldState:     &ev.State,
		report.FieldComponent: &ev.Component,
	} {
		if v, ok := st.Report.Get(name); ok {
			*dst = v.String()
		}
	}
	if st.Behavior != nil {
		ev.Risk = string(st.Behavior.Risk)
		ev.Score = st.Behavior.Score
		for _, sig := range st.Behavior.Signals {
			ev.Signals = append(ev.Signals, string(sig))
		}
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func (s *Service) publish(subject string, ev hermes.ReportEvent) {
	if err := s.events.Publish(subject, ev); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "report_id", ev.ReportID, "error", err)
	}
}

func (s *Service) save(ctx context.Context, r Reply) (Reply, error) {
	if err := s.sessions.Save(ctx, r.State); err != nil {
		return r, fmt.Errorf("save session: %w", err)
	}
	return r, nil
}

func lastAssistant(st dialogue.State) string {
	for i := len(st.Transcript) - 1; i >= 0; i-- {
		if st.Transcript[i].Role == dialogue.RoleAssistant {
			return st.Transcript[i].Content
		}
	}
	return ""
}
