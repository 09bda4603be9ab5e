package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/safety-intake/internal/hermes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatAlert_Flagged(t *testing.T) {
	ev := hermes.ReportEvent{
		ReportID:  "r-42",
		Make:      "Ford",
		Model:     "Escape",
		Component: "brake",
		State:     "TX",
		Score:     75,
		Signals:   []string{"all_caps", "profanity"},
	}

	msg := formatAlert(hermes.SubjectFlagged, ev)

	checks := []string{
		"High-risk report",
		"score 75",
		"r-42",
		"Ford Escape",
		"brake",
		"TX",
		"all_caps, profanity",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q, got %q", check, msg)
		}
	}
	if strings.Contains(msg, "Error") {
		t.Errorf("flagged alert should not mention an error: %q", msg)
	}
}

func TestFormatAlert_DeliveryFailed(t *testing.T) {
	ev := hermes.ReportEvent{ReportID: "r-7", Backend: "sheets", Attempts: 2, Error: "quota exceeded"}

	msg := formatAlert(hermes.SubjectDeliveryFailed, ev)

	for _, check := range []string{"delivery failed", "attempt 2", "r-7", "quota exceeded", "sheets"} {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q, got %q", check, msg)
		}
	}
	if strings.Contains(msg, "Vehicle") {
		t.Errorf("empty vehicle should be omitted: %q", msg)
	}
}

func TestPostMessage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if payload["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", payload["channel"])
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234567890.123456" {
		t.Errorf("expected ts 1234567890.123456, got %q", ts)
	}
}

func TestPostMessage_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	if _, err := p.PostMessage(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for slack error response")
	}
}

func TestPublish_FiltersSubjects(t *testing.T) {
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1.2"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ev := hermes.ReportEvent{ReportID: "r-1"}
	tests := []struct {
		subject string
		data    any
		posted  bool
	}{
		{hermes.SubjectSubmitted, ev, false},
		{hermes.SubjectFlagged, ev, true},
		{hermes.SubjectDeliveryFailed, ev, true},
		{hermes.SubjectFlagged, map[string]string{"report_id": "r-1"}, false},
	}
	for _, tt := range tests {
		before := posts.Load()
		if err := p.Publish(tt.subject, tt.data); err != nil {
			t.Fatalf("Publish(%s): %v", tt.subject, err)
		}
		p.Close()
		if got := posts.Load() > before; got != tt.posted {
			t.Errorf("Publish(%s, %T) posted = %v, want %v", tt.subject, tt.data, got, tt.posted)
		}
	}
}

func TestPublish_DoesNotWaitForSlack(t *testing.T) {
	release := make(chan struct{})
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		posts.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1.2"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	done := make(chan error, 1)
	go func() { done <- p.Publish(hermes.SubjectFlagged, hermes.ReportEvent{ReportID: "r-9"}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on the Slack request")
	}
	if posts.Load() != 0 {
		t.Fatal("post completed before the server answered")
	}

	close(release)
	p.Close()
	if posts.Load() != 1 {
		t.Errorf("posts = %d, want 1 after Close", posts.Load())
	}
}
