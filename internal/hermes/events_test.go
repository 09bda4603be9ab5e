package hermes

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(SubjectSubmitted, ReportEvent{}); err != nil {
		t.Errorf("Noop.Publish: %v", err)
	}
}

func TestReportEvent_JSON(t *testing.T) {
	ev := ReportEvent{
		SessionID: "s-1",
		ReportID:  "r-1",
		Backend:   "sheets",
		Make:      "Ford",
		Risk:      "high",
		Score:     75,
		Signals:   []string{"all_caps", "profanity"},
		Attempts:  1,
		At:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"session_id", "report_id", "backend", "make", "risk", "score", "signals", "attempts", "at"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	for _, key := range []string{"model", "state", "error"} {
		if _, ok := got[key]; ok {
			t.Errorf("empty %q should be omitted", key)
		}
	}
}

type recordingPublisher struct {
	subjects []string
	err      error
}

func (r *recordingPublisher) Publish(subject string, _ any) error {
	r.subjects = append(r.subjects, subject)
	return r.err
}

func TestFanout(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingPublisher{err: boom}
	b := &recordingPublisher{}

	err := Fanout{a, b}.Publish(SubjectFlagged, ReportEvent{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(a.subjects) != 1 || len(b.subjects) != 1 {
		t.Errorf("a = %v b = %v; every publisher should receive the event", a.subjects, b.subjects)
	}
	if err := (Fanout{}).Publish(SubjectSubmitted, nil); err != nil {
		t.Errorf("empty fanout: %v", err)
	}
}
