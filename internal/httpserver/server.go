// internal/httpserver/server.go
//
// HTTP server wiring for the PuzzleQuest backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     zerolog request logging).
//   - Public endpoints: "/", "/health".
//   - Session endpoints (optional auth): /sessions/*, see routes_sessions.go.
//   - Catalog, progress, settings, leaderboard and featured level (optional
//     auth), see routes_progress.go.
//   - Auth endpoints: /auth/*, see auth.go.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Guests are identified by an anonymous cookie; signed-in players by JWT.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/puzzlequest/internal/app"
	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/session"
	"github.com/robalobadob/puzzlequest/internal/store"
)

// Server bundles the router and the application it serves.
type Server struct {
	r   *chi.Mux
	app *app.App
}

// New constructs a Server, installs middleware, and registers routes.
func New(a *app.App) *Server {
	s := &Server{r: chi.NewRouter(), app: a}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(a.Log))          // request-scoped logger
	s.r.Use(hlog.AccessHandler(accessLog))   // one line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "puzzlequest",
			"endpoints": []string{"/health", "/levels", "POST /sessions", "/progress", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": a.Sessions.Len()})
	})

	// Sessions, catalog and progress: OPTIONAL AUTH (guests can play)
	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		s.mountSessions(r)
		s.mountProgress(r)
	})

	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", r.URL.Path)
	})
	return s
}

// Router exposes the router (http.Server handler, tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.app.Cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("took", d).
		Str("req_id", chimw.GetReqID(r.Context())).
		Msg("request")
}

// ------------------------------- responses ---------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// statusFor maps core errors to HTTP statuses and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, puzzle.ErrUnknownSlot):
		return http.StatusUnprocessableEntity, "unknown_slot"
	case errors.Is(err, puzzle.ErrUnknownElement):
		return http.StatusUnprocessableEntity, "unknown_element"
	case errors.Is(err, puzzle.ErrNoHint):
		return http.StatusConflict, "no_hint"
	case errors.Is(err, puzzle.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, session.ErrLevelLocked):
		return http.StatusForbidden, "level_locked"
	case errors.Is(err, session.ErrUnknownLevel):
		return http.StatusNotFound, "unknown_level"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "unknown_session"
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, "session_closed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}
