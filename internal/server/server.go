// Package server exposes the booking engine as a JSON HTTP API.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkats/lessonledger/internal/auth"
	"github.com/mkats/lessonledger/internal/booking"
	"github.com/mkats/lessonledger/internal/middleware"
)

// Server wires the booking engine and auth layer into an http.Handler.
type Server struct {
	engine        *booking.Engine
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
}

// New creates a server over the given engine and auth components.
func New(engine *booking.Engine, authenticator auth.Authenticator, jwtManager *auth.JWTManager) *Server {
	return &Server{
		engine:        engine,
		authenticator: authenticator,
		jwtManager:    jwtManager,
	}
}

// Routes builds the full handler: routed endpoints wrapped in the
// logging, CORS, and metrics middleware. Lifecycle mutations require auth;
// queries are public.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", s.handleAuthRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleAuthLogin)

	// Lifecycle operations (authenticated)
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(s.jwtManager, h)
	}
	mux.Handle("POST /api/v1/teacher/register", authed(s.handleRegisterTeacher))
	mux.Handle("POST /api/v1/lessons", authed(s.handleScheduleLesson))
	mux.Handle("POST /api/v1/lessons/{id}/pay", authed(s.handlePayLesson))
	mux.Handle("POST /api/v1/lessons/{id}/complete", authed(s.handleCompleteLesson))
	mux.Handle("POST /api/v1/lessons/{id}/cancel", authed(s.handleCancelLesson))
	mux.Handle("POST /api/v1/balance/withdraw", authed(s.handleWithdraw))

	// Read-only queries (public)
	mux.HandleFunc("GET /api/v1/lessons/{id}", s.handleGetLesson)
	mux.HandleFunc("GET /api/v1/teachers/{id}/balance", s.handleTeacherBalance)
	mux.HandleFunc("GET /api/v1/teachers/{id}/lessons", s.handleTeacherLessons)
	mux.HandleFunc("GET /api/v1/students/{id}/lessons", s.handleStudentLessons)

	// Operational endpoints
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return middleware.Logging(middleware.CORS(middleware.Metrics(mux)))
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes the JSON error envelope for a domain error.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

// badRequest writes a 400 with a plain message.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
