package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/safety-intake/internal/dialogue"
	"github.com/MikeSquared-Agency/safety-intake/internal/hermes"
	"github.com/MikeSquared-Agency/safety-intake/internal/report"
	"github.com/MikeSquared-Agency/safety-intake/internal/session"
	"github.com/MikeSquared-Agency/safety-intake/internal/sink"
	"github.com/MikeSquared-Agency/safety-intake/internal/stylist"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink fails the first `failures` appends.
type fakeSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	rows     []report.Row
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Append(_ context.Context, row report.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return sink.Wrap("fake", errors.New("quota exceeded"))
	}
	f.rows = append(f.rows, row)
	return nil
}

type published struct {
	subject string
	event   hermes.ReportEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject: subject, event: data.(hermes.ReportEvent)})
	return nil
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}

var conversation = []string{
	"My 2022 Toyota Camry had brake failure in Los Angeles",
	"CA",
	"no",
	"no",
	"none",
	"0",
}

func newTestService(sk *fakeSink) (*Service, *fakePublisher) {
	pub := &fakePublisher{}
	svc := New(session.NewMemory(0), sk, stylist.Passthrough(discardLogger()), pub, discardLogger())
	return svc, pub
}

func converse(t *testing.T, svc *Service, id string, msgs []string) Reply {
	t.Helper()
	var last Reply
	for _, m := range msgs {
		r, err := svc.Handle(context.Background(), id, m)
		if err != nil {
			t.Fatalf("Handle(%q): %v", m, err)
		}
		last = r
	}
	return last
}

func TestService_Start(t *testing.T) {
	svc, _ := newTestService(&fakeSink{})
	r, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Message != dialogue.MsgWelcome {
		t.Errorf("message = %q", r.Message)
	}
	got, err := svc.Get(context.Background(), r.State.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReportID != r.State.ReportID {
		t.Errorf("stored report id = %q, want %q", got.ReportID, r.State.ReportID)
	}
}

func TestService_HandleUnknownSession(t *testing.T) {
	svc, _ := newTestService(&fakeSink{})
	_, err := svc.Handle(context.Background(), "missing", "hello")
	if !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want session.ErrNotFound", err)
	}
}

func TestService_FullConversationDeliversOnce(t *testing.T) {
	sk := &fakeSink{}
	svc, pub := newTestService(sk)
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID

	r := converse(t, svc, id, conversation)
	if r.Message != dialogue.MsgSubmitted {
		t.Errorf("final message = %q", r.Message)
	}
	if !r.State.Delivered || r.State.DeliveryAttempts != 1 {
		t.Errorf("delivered = %v attempts = %d", r.State.Delivered, r.State.DeliveryAttempts)
	}
	if len(sk.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(sk.rows))
	}
	row := sk.rows[0]
	if v, _ := row.Get(report.ColumnReportID); v != start.State.ReportID {
		t.Errorf("Report_ID = %q, want %q", v, start.State.ReportID)
	}
	if v, _ := row.Get("Make"); v != "Toyota" {
		t.Errorf("Make = %q", v)
	}
	if v, _ := row.Get(report.ColumnInputLength); v != "1" {
		t.Errorf("Input_Length = %q, want the last message length", v)
	}
	if got := pub.subjects(); len(got) != 1 || got[0] != hermes.SubjectSubmitted {
		t.Errorf("events = %v", got)
	}

	// Further messages never deliver again.
	r = converse(t, svc, id, []string{"hello?"})
	if r.Message != dialogue.MsgAlreadySubmitted {
		t.Errorf("message after delivery = %q", r.Message)
	}
	if sk.calls != 1 {
		t.Errorf("sink calls = %d, want 1", sk.calls)
	}
}

func TestService_DeliveryFailureThenRetry(t *testing.T) {
	sk := &fakeSink{failures: 1}
	svc, pub := newTestService(sk)
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID

	r := converse(t, svc, id, conversation)
	if !r.DeliveryFailed || r.Message != dialogue.MsgDeliveryFailed {
		t.Fatalf("reply = %+v", r)
	}
	if r.State.Phase != dialogue.PhaseComplete || r.State.Delivered {
		t.Errorf("phase = %s delivered = %v", r.State.Phase, r.State.Delivered)
	}
	if !r.State.Report.Complete() {
		t.Error("completed report was not retained")
	}

	r, err := svc.Submit(context.Background(), id)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !r.State.Delivered || r.State.DeliveryAttempts != 2 {
		t.Errorf("delivered = %v attempts = %d", r.State.Delivered, r.State.DeliveryAttempts)
	}
	if len(sk.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(sk.rows))
	}
	want := []string{hermes.SubjectDeliveryFailed, hermes.SubjectSubmitted}
	if got := pub.subjects(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}

	if _, err := svc.Submit(context.Background(), id); !errors.Is(err, ErrAlreadyDelivered) {
		t.Errorf("second Submit err = %v, want ErrAlreadyDelivered", err)
	}
}

func TestService_MessageRetriesFailedDelivery(t *testing.T) {
	sk := &fakeSink{failures: 2}
	svc, _ := newTestService(sk)
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID

	converse(t, svc, id, conversation)
	r := converse(t, svc, id, []string{"retry"})
	if !r.DeliveryFailed {
		t.Fatal("second attempt should fail")
	}
	r = converse(t, svc, id, []string{"retry"})
	if r.DeliveryFailed || !r.State.Delivered {
		t.Fatalf("third attempt: %+v", r)
	}
	if r.State.DeliveryAttempts != 3 || len(sk.rows) != 1 {
		t.Errorf("attempts = %d rows = %d", r.State.DeliveryAttempts, len(sk.rows))
	}
	// Retry messages do not change the report.
	if v, _ := r.State.Report.Get(report.FieldCity); v.String() != "Los Angeles" {
		t.Errorf("city = %v", v)
	}
}

func TestService_SubmitIncomplete(t *testing.T) {
	svc, _ := newTestService(&fakeSink{})
	start, _ := svc.Start(context.Background())
	_, err := svc.Submit(context.Background(), start.State.SessionID)
	if !errors.Is(err, ErrNotComplete) {
		t.Errorf("err = %v, want ErrNotComplete", err)
	}
}

func TestService_SubmitFailureWrapsErrDelivery(t *testing.T) {
	sk := &fakeSink{failures: 2}
	svc, _ := newTestService(sk)
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID
	converse(t, svc, id, conversation)

	r, err := svc.Submit(context.Background(), id)
	if !errors.Is(err, sink.ErrDelivery) {
		t.Errorf("err = %v, want ErrDelivery", err)
	}
	stored, _ := svc.Get(context.Background(), id)
	if stored.DeliveryAttempts != 2 || r.State.DeliveryAttempts != 2 {
		t.Errorf("attempts stored = %d reply = %d, want 2", stored.DeliveryAttempts, r.State.DeliveryAttempts)
	}
}

func TestService_FlaggedWhenHighRisk(t *testing.T) {
	sk := &fakeSink{}
	svc, pub := newTestService(sk)
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID

	msgs := append([]string(nil), conversation[:5]...)
	msgs = append(msgs, "0 FUCK THIS SHIT!!!!!!")
	r := converse(t, svc, id, msgs)
	if !r.State.Delivered {
		t.Fatalf("not delivered: %q", r.Message)
	}
	want := []string{hermes.SubjectSubmitted, hermes.SubjectFlagged}
	if got := pub.subjects(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
	if v, _ := sk.rows[0].Get(report.ColumnRiskLevel); v != "HIGH" {
		t.Errorf("risk column = %q", v)
	}
}

func TestService_EmptyMessageLeavesStateUnchanged(t *testing.T) {
	svc, _ := newTestService(&fakeSink{})
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID

	r, err := svc.Handle(context.Background(), id, "   ")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if r.Behavior == nil || r.Behavior.Score != 30 {
		t.Errorf("behavior = %+v", r.Behavior)
	}
	stored, _ := svc.Get(context.Background(), id)
	if len(stored.Transcript) != len(start.State.Transcript) {
		t.Errorf("transcript grew to %d entries", len(stored.Transcript))
	}
}

func TestService_EmptyMessageAfterFailedDelivery(t *testing.T) {
	sk := &fakeSink{failures: 1}
	svc, _ := newTestService(sk)
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID
	converse(t, svc, id, conversation)

	r, err := svc.Handle(context.Background(), id, "")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if r.Message != dialogue.MsgDeliveryFailed {
		t.Errorf("message = %q, want %q", r.Message, dialogue.MsgDeliveryFailed)
	}
	if r.State.Delivered || sk.calls != 1 {
		t.Errorf("delivered = %v sink calls = %d, want no new attempt", r.State.Delivered, sk.calls)
	}

	r, err = svc.Submit(context.Background(), id)
	if err != nil || !r.State.Delivered {
		t.Errorf("Submit after empty message: delivered = %v err = %v", r.State.Delivered, err)
	}
}

func TestService_End(t *testing.T) {
	svc, _ := newTestService(&fakeSink{})
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID

	if err := svc.End(context.Background(), id); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := svc.Get(context.Background(), id); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Get after End err = %v, want ErrNotFound", err)
	}
	if err := svc.End(context.Background(), id); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("second End err = %v, want ErrNotFound", err)
	}
}

func TestService_TranscriptRecordsBothSides(t *testing.T) {
	svc, _ := newTestService(&fakeSink{})
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID

	r := converse(t, svc, id, conversation[:1])
	tr := r.State.Transcript
	if len(tr) != 3 {
		t.Fatalf("transcript = %+v", tr)
	}
	if tr[1].Role != dialogue.RoleUser || tr[1].Content != conversation[0] {
		t.Errorf("user entry = %+v", tr[1])
	}
	if tr[2].Role != dialogue.RoleAssistant || tr[2].Content != r.Message {
		t.Errorf("assistant entry = %+v", tr[2])
	}
	if len(r.Recorded) == 0 {
		t.Error("no fields recorded")
	}
}

func TestService_Reset(t *testing.T) {
	sk := &fakeSink{}
	svc, _ := newTestService(sk)
	start, _ := svc.Start(context.Background())
	id := start.State.SessionID
	converse(t, svc, id, conversation)

	r, err := svc.Reset(context.Background(), id)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if r.State.SessionID != id || r.State.ReportID == start.State.ReportID {
		t.Errorf("state = %+v", r.State)
	}
	if r.State.Phase != dialogue.PhaseCollecting || len(r.State.Report) != 0 {
		t.Errorf("reset state not empty: %+v", r.State)
	}
	if r.Message != dialogue.MsgWelcomeBack {
		t.Errorf("message = %q", r.Message)
	}

	converse(t, svc, id, conversation)
	if len(sk.rows) != 2 {
		t.Errorf("rows = %d, want 2", len(sk.rows))
	}
}

func TestService_ConcurrentSessions(t *testing.T) {
	sk := &fakeSink{}
	svc, _ := newTestService(sk)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		start, err := svc.Start(context.Background())
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for _, m := range conversation {
				if _, err := svc.Handle(context.Background(), id, m); err != nil {
					t.Errorf("Handle: %v", err)
					return
				}
			}
		}(start.State.SessionID)
	}
	wg.Wait()

	if len(sk.rows) != 8 {
		t.Errorf("rows = %d, want 8", len(sk.rows))
	}
	if n := svc.locks.size(); n != 0 {
		t.Errorf("locks left = %d", n)
	}
}
