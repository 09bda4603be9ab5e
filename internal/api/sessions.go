package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/safety-intake/internal/behavior"
	"github.com/MikeSquared-Agency/safety-intake/internal/dialogue"
	"github.com/MikeSquared-Agency/safety-intake/internal/intake"
	"github.com/MikeSquared-Agency/safety-intake/internal/report"
	"github.com/MikeSquared-Agency/safety-intake/internal/session"
	"github.com/MikeSquared-Agency/safety-intake/internal/sink"
)

type messageRequest struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionID        string           `json:"session_id"`
	ReportID         string           `json:"report_id"`
	Phase            dialogue.Phase   `json:"phase"`
	Message          string           `json:"message,omitempty"`
	Asking           string           `json:"asking,omitempty"`
	Recorded         []string         `json:"recorded"`
	Missing          []string         `json:"missing"`
	Report           report.Report    `json:"report"`
	Behavior         *behavior.Record `json:"behavior,omitempty"`
	Delivered        bool             `json:"delivered"`
	DeliveryAttempts int              `json:"delivery_attempts"`
	DeliveryFailed   bool             `json:"delivery_failed,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	Transcript       []dialogue.Entry `json:"transcript,omitempty"`
	Error            string           `json:"error,omitempty"`
}

func newSessionResponse(st dialogue.State) sessionResponse {
	missing := []string{}
	for _, f := range st.Report.Missing() {
		missing = append(missing, f.Name)
	}
	return sessionResponse{
		SessionID:        st.SessionID,
		ReportID:         st.ReportID,
		Phase:            st.Phase,
		Asking:           st.Asking,
		Recorded:         []string{},
		Missing:          missing,
		Report:           st.Report,
		Behavior:         st.Behavior,
		Delivered:        st.Delivered,
		DeliveryAttempts: st.DeliveryAttempts,
		CompletedAt:      st.CompletedAt,
	}
}

func replyResponse(r intake.Reply) sessionResponse {
	resp := newSessionResponse(r.State)
	resp.Message = r.Message
	if r.Recorded != nil {
		resp.Recorded = r.Recorded
	}
	if r.Behavior != nil {
		resp.Behavior = r.Behavior
	}
	resp.DeliveryFailed = r.DeliveryFailed
	return resp
}

// createSession handles POST /api/v1/intake/sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	reply, err := s.intake.Start(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, replyResponse(reply))
}

// getSession handles GET /api/v1/intake/sessions/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.intake.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := newSessionResponse(st)
	resp.Transcript = st.Transcript
	writeJSON(w, http.StatusOK, resp)
}

// endSession handles DELETE /api/v1/intake/sessions/{id}.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postMessage handles POST /api/v1/intake/sessions/{id}/messages.
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	reply, err := s.intake.Handle(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse(reply))
}

// submit handles POST /api/v1/intake/sessions/{id}/submit.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	reply, err := s.intake.Submit(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, replyResponse(reply))
	case errors.Is(err, sink.ErrDelivery):
		resp := replyResponse(reply)
		resp.Error = dialogue.MsgDeliveryFailed
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		s.fail(w, r, err)
	}
}

// reset handles POST /api/v1/intake/sessions/{id}/reset.
func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	reply, err := s.intake.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, replyResponse(reply))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, intake.ErrNotComplete):
		writeError(w, http.StatusConflict, "report is not complete")
	case errors.Is(err, intake.ErrAlreadyDelivered):
		writeError(w, http.StatusConflict, "report already submitted")
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
