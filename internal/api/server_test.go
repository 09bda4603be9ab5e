package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/safety-intake/internal/dialogue"
	"github.com/MikeSquared-Agency/safety-intake/internal/intake"
	"github.com/MikeSquared-Agency/safety-intake/internal/report"
	"github.com/MikeSquared-Agency/safety-intake/internal/session"
	"github.com/MikeSquared-Agency/safety-intake/internal/sink"
	"github.com/MikeSquared-Agency/safety-intake/internal/stylist"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memorySink struct {
	mu       sync.Mutex
	failures int
	rows     []report.Row
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Append(_ context.Context, row report.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return sink.Wrap("memory", errors.New("unavailable"))
	}
	m.rows = append(m.rows, row)
	return nil
}

func newTestServer(sk *memorySink) *Server {
	svc := intake.New(session.NewMemory(0), sk, stylist.Passthrough(discardLogger()), nil, discardLogger())
	return NewServer(8760, svc, []string{"https://reports.example.org"}, discardLogger())
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, sessionResponse) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	var resp sessionResponse
	if w.Body.Len() > 0 {
		json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func message(text string) string {
	b, _ := json.Marshal(messageRequest{Message: text})
	return string(b)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&memorySink{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(&memorySink{})

	req := httptest.NewRequest("GET", "/api/v1/intake/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["sink"] != "memory" {
		t.Errorf("expected sink memory, got %q", body["sink"])
	}
	if body["stylist"] != "none" {
		t.Errorf("expected stylist none, got %q", body["stylist"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(&memorySink{})

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestConversationOverHTTP(t *testing.T) {
	sk := &memorySink{}
	srv := newTestServer(sk)

	w, created := do(t, srv, "POST", "/api/v1/intake/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	if created.Message != dialogue.MsgWelcome || created.Phase != dialogue.PhaseCollecting {
		t.Errorf("created = %+v", created)
	}
	if len(created.Missing) != len(report.Required()) {
		t.Errorf("missing = %v", created.Missing)
	}

	base := "/api/v1/intake/sessions/" + created.SessionID
	w, first := do(t, srv, "POST", base+"/messages", message("My 2022 Toyota Camry had brake failure in Los Angeles"))
	if w.Code != http.StatusOK {
		t.Fatalf("message: %d %s", w.Code, w.Body)
	}
	if first.Asking != report.FieldState {
		t.Errorf("asking = %q, want state", first.Asking)
	}
	if len(first.Recorded) == 0 || first.Behavior == nil {
		t.Errorf("first = %+v", first)
	}

	var last sessionResponse
	for _, m := range []string{"CA", "no", "no", "none", "0"} {
		w, last = do(t, srv, "POST", base+"/messages", message(m))
		if w.Code != http.StatusOK {
			t.Fatalf("message %q: %d %s", m, w.Code, w.Body)
		}
	}
	if last.Phase != dialogue.PhaseComplete || !last.Delivered {
		t.Errorf("last = %+v", last)
	}
	if len(last.Missing) != 0 {
		t.Errorf("missing = %v", last.Missing)
	}
	if len(sk.rows) != 1 {
		t.Errorf("rows = %d", len(sk.rows))
	}

	w, got := do(t, srv, "GET", base, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	if len(got.Transcript) != 13 {
		t.Errorf("transcript has %d entries, want 13", len(got.Transcript))
	}
	if v, ok := got.Report[report.FieldModelYear]; !ok || v.Int != 2022 {
		t.Errorf("model_year = %+v", v)
	}

	w, _ = do(t, srv, "POST", base+"/submit", "")
	if w.Code != http.StatusConflict {
		t.Errorf("submit after delivery: %d", w.Code)
	}

	w, reset := do(t, srv, "POST", base+"/reset", "")
	if w.Code != http.StatusOK || reset.Phase != dialogue.PhaseCollecting || reset.ReportID == created.ReportID {
		t.Errorf("reset: %d %+v", w.Code, reset)
	}
}

func TestSubmitRetryOverHTTP(t *testing.T) {
	sk := &memorySink{failures: 2}
	srv := newTestServer(sk)

	_, created := do(t, srv, "POST", "/api/v1/intake/sessions", "")
	base := "/api/v1/intake/sessions/" + created.SessionID

	w, _ := do(t, srv, "POST", base+"/submit", "")
	if w.Code != http.StatusConflict {
		t.Errorf("submit incomplete: %d", w.Code)
	}

	var last sessionResponse
	for _, m := range []string{"My 2022 Toyota Camry had brake failure in Los Angeles", "CA", "no", "no", "none", "0"} {
		_, last = do(t, srv, "POST", base+"/messages", message(m))
	}
	if !last.DeliveryFailed || last.Message != dialogue.MsgDeliveryFailed {
		t.Fatalf("last = %+v", last)
	}

	w, failed := do(t, srv, "POST", base+"/submit", "")
	if w.Code != http.StatusServiceUnavailable || failed.Error == "" {
		t.Errorf("submit while sink down: %d %+v", w.Code, failed)
	}

	w, ok := do(t, srv, "POST", base+"/submit", "")
	if w.Code != http.StatusOK || !ok.Delivered || ok.DeliveryAttempts != 3 {
		t.Errorf("submit: %d %+v", w.Code, ok)
	}
	if len(sk.rows) != 1 {
		t.Errorf("rows = %d", len(sk.rows))
	}
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(&memorySink{})
	_, created := do(t, srv, "POST", "/api/v1/intake/sessions", "")
	base := "/api/v1/intake/sessions/" + created.SessionID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		ctype  string
		want   int
	}{
		{"unknown session", "GET", "/api/v1/intake/sessions/nope", "", "", http.StatusNotFound},
		{"end unknown session", "DELETE", "/api/v1/intake/sessions/nope", "", "", http.StatusNotFound},
		{"message to unknown session", "POST", "/api/v1/intake/sessions/nope/messages", message("hi"), "application/json", http.StatusNotFound},
		{"invalid json", "POST", base + "/messages", "{", "application/json", http.StatusBadRequest},
		{"wrong content type", "POST", base + "/messages", "message=hi", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"body too large", "POST", base + "/messages", message(strings.Repeat("a", maxBodyBytes)), "application/json", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
			var e map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e["error"] == "" {
				if w.Code != http.StatusUnsupportedMediaType {
					t.Errorf("expected JSON error body, got %s", w.Body)
				}
			}
		})
	}
}

func TestEndSessionOverHTTP(t *testing.T) {
	srv := newTestServer(&memorySink{})
	_, created := do(t, srv, "POST", "/api/v1/intake/sessions", "")
	path := "/api/v1/intake/sessions/" + created.SessionID

	w, _ := do(t, srv, "DELETE", path, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d (%s)", w.Code, w.Body)
	}
	if w, _ := do(t, srv, "GET", path, ""); w.Code != http.StatusNotFound {
		t.Errorf("GET after DELETE status = %d, want 404", w.Code)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(&memorySink{})

	req := httptest.NewRequest("OPTIONS", "/api/v1/intake/sessions", nil)
	req.Header.Set("Origin", "https://reports.example.org")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://reports.example.org" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}
