// internal/httpserver/routes_sessions.go
//
// HTTP routes for running sessions.
//   - POST   /sessions                   → start a level {level}
//   - GET    /sessions/{id}              → snapshot
//   - POST   /sessions/{id}/loaded       → host finished loading the level
//   - POST   /sessions/{id}/assign       → {slot, element}
//   - POST   /sessions/{id}/select       → {element}
//   - POST   /sessions/{id}/submit       → ?autoAdvance=1 advances after the reveal delay
//                                          (also accepted by assign and select)
//   - POST   /sessions/{id}/hint
//   - POST   /sessions/{id}/advance
//   - POST   /sessions/{id}/restart      → current stage
//   - POST   /sessions/{id}/restart-level
//   - POST   /sessions/{id}/pause | resume | give-up | next-level
//   - DELETE /sessions/{id}
//
// Every response carries the session snapshot plus the events (render
// notifications and audio cues) published since the previous response.
// Sessions are only visible to the owner that created them.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/session"
	"github.com/robalobadob/puzzlequest/internal/store"
)

// sessionRes is the body of every session response.
type sessionRes struct {
	ID         string           `json:"id"`
	State      session.State    `json:"state"`
	Stage      *puzzle.Snapshot `json:"stage,omitempty"`
	StageIndex int              `json:"stageIndex"`
	StageCount int              `json:"stageCount"`
	Awarded    []int            `json:"awarded"`
	Events     []puzzle.Event   `json:"events"`
	Result     any              `json:"result,omitempty"`
}

type startReq struct {
	Level int `json:"level"`
}

type assignReq struct {
	Slot    string `json:"slot"`
	Element string `json:"element"`
}

type selectReq struct {
	Element string `json:"element"`
}

// op is one controller call; its return value becomes sessionRes.Result.
type op func(r *http.Request, c *session.Controller) (any, error)

func (s *Server) mountSessions(r chi.Router) {
	r.Post("/sessions", s.handleStart)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.run(func(*http.Request, *session.Controller) (any, error) { return nil, nil }))
		r.Delete("/", s.handleDelete)
		r.Post("/loaded", s.run(func(_ *http.Request, c *session.Controller) (any, error) {
			return nil, c.OnLevelLoaded()
		}))
		r.Post("/assign", s.run(func(r *http.Request, c *session.Controller) (any, error) {
			var req assignReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, badRequest{err}
			}
			if err := c.AssignSlot(req.Slot, req.Element); err != nil {
				return nil, err
			}
			s.autoAdvance(r, c)
			return nil, nil
		}))
		r.Post("/select", s.run(func(r *http.Request, c *session.Controller) (any, error) {
			var req selectReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, badRequest{err}
			}
			slot, err := c.Select(req.Element)
			if err != nil {
				return nil, err
			}
			s.autoAdvance(r, c)
			return map[string]string{"slot": slot}, nil
		}))
		r.Post("/submit", s.run(s.submit))
		r.Post("/hint", s.run(func(_ *http.Request, c *session.Controller) (any, error) {
			return c.Hint()
		}))
		r.Post("/advance", s.run(func(r *http.Request, c *session.Controller) (any, error) {
			return c.Advance(r.Context())
		}))
		r.Post("/restart", s.run(func(_ *http.Request, c *session.Controller) (any, error) {
			return nil, c.Restart()
		}))
		r.Post("/restart-level", s.run(func(r *http.Request, c *session.Controller) (any, error) {
			return nil, c.RestartLevel(r.Context())
		}))
		r.Post("/pause", s.run(func(_ *http.Request, c *session.Controller) (any, error) {
			return nil, c.Pause()
		}))
		r.Post("/resume", s.run(func(_ *http.Request, c *session.Controller) (any, error) {
			return nil, c.Resume()
		}))
		r.Post("/give-up", s.run(func(_ *http.Request, c *session.Controller) (any, error) {
			return nil, c.GiveUp()
		}))
		r.Post("/next-level", s.run(func(r *http.Request, c *session.Controller) (any, error) {
			done, err := c.NextLevel(r.Context())
			if err != nil {
				return nil, err
			}
			return map[string]bool{"allLevelsComplete": done}, nil
		}))
	})
}

// submit evaluates the stage and, when asked, schedules the advance.
func (s *Server) submit(r *http.Request, c *session.Controller) (any, error) {
	res, err := c.Submit()
	if err != nil {
		return nil, err
	}
	s.autoAdvance(r, c)
	return res, nil
}

// autoAdvance schedules the advance after the reveal delay when the request
// carries ?autoAdvance=1 and the active stage is completed. Click-order and
// quiz stages complete on assign/select, so those routes honour it too.
func (s *Server) autoAdvance(r *http.Request, c *session.Controller) {
	if r.URL.Query().Get("autoAdvance") != "1" {
		return
	}
	if snap, ok := c.Stage(); !ok || snap.State != puzzle.StateCompleted {
		return
	}
	if err := c.ScheduleAdvance(s.app.Cfg.RevealDelay); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("schedule advance")
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	owner := s.owner(w, r)
	e, err := s.app.NewSession(r.Context(), owner, req.Level)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var body sessionRes
	_ = e.Do(func(c *session.Controller) error {
		body = snapshot(e, c, nil)
		return nil
	})
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.entry(w, r); !ok {
		return
	}
	if err := s.app.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// run adapts an op into a handler: look up the caller's session, run the op
// under the session lock and answer with the new snapshot.
func (s *Server) run(fn op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := s.entry(w, r)
		if !ok {
			return
		}
		var body sessionRes
		err := e.Do(func(c *session.Controller) error {
			res, err := fn(r, c)
			if err != nil {
				return err
			}
			body = snapshot(e, c, res)
			return nil
		})
		if br, ok := err.(badRequest); ok {
			writeError(w, http.StatusBadRequest, "invalid_json", br.Error())
			return
		}
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// entry finds the session and checks it belongs to the caller.
func (s *Server) entry(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	e, err := s.app.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && e.Owner != s.owner(w, r) {
		err = store.ErrNotFound
	}
	if err != nil {
		writeErr(w, r, err)
		return nil, false
	}
	return e, true
}

// snapshot must run inside Entry.Do.
func snapshot(e *store.Entry, c *session.Controller, res any) sessionRes {
	body := sessionRes{ID: e.ID, State: c.State(), Awarded: c.Awarded(), Result: res}
	body.StageIndex, body.StageCount = c.StageIndex()
	if st, ok := c.Stage(); ok {
		body.Stage = &st
	}
	body.Events = e.Drain()
	return body
}

// badRequest marks a malformed request body.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
