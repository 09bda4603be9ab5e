package hermes

import (
	"errors"
	"time"
)

// Report lifecycle subjects.
const (
	SubjectSubmitted      = "intake.report.submitted"
	SubjectFlagged        = "intake.report.flagged"
	SubjectDeliveryFailed = "intake.report.delivery_failed"
)

// ReportEvent describes a completed report. It carries no free text from the
// user.
type ReportEvent struct {
	SessionID string    `json:"session_id"`
	ReportID  string    `json:"report_id"`
	Backend   string    `json:"backend"`
	Make      string    `json:"make,omitempty"`
	Model     string    `json:"model,omitempty"`
	State     string    `json:"state,omitempty"`
	Component string    `json:"component,omitempty"`
	Risk      string    `json:"risk"`
	Score     int       `json:"score"`
	Signals   []string  `json:"signals"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher sends an event payload to a subject.
type Publisher interface {
	Publish(subject string, data any) error
}

// Noop discards every event. It is used when NATS is not configured.
type Noop struct{}

func (Noop) Publish(string, any) error { return nil }

// Fanout publishes every event to each publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(subject string, data any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(subject, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
