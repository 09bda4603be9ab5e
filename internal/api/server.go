// Package api exposes the intake conversation over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/safety-intake/internal/intake"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

type Server struct {
	router *chi.Mux
	port   int
	intake *intake.Service
	logger *slog.Logger
	http   *http.Server
}

func NewServer(port int, svc *intake.Service, corsOrigins []string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(CORS(corsOrigins))

	s := &Server{
		router: router,
		port:   port,
		intake: svc,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1/intake", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			r.Post("/", s.createSession)
			r.Get("/{id}", s.getSession)
			r.Delete("/{id}", s.endSession)
			r.Post("/{id}/messages", s.postMessage)
			r.Post("/{id}/submit", s.submit)
			r.Post("/{id}/reset", s.reset)
		})
	})

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "safety-intake",
		"sink":    s.intake.SinkName(),
		"stylist": s.intake.StylistProvider(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
