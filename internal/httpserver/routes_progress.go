// internal/httpserver/routes_progress.go
//
// Catalog, progress and settings routes.
//   - GET  /levels              → catalog with the caller's progress per level
//   - GET  /levels/{n}          → stage outline of one level (no answers)
//   - GET  /progress            → the caller's LevelProgress records
//   - GET  /settings            → audio toggles
//   - POST /settings            → {soundEnabled, musicEnabled}
//   - GET  /leaderboard/{level} → best play per player (?date=YYYY-MM-DD&limit=)
//   - GET  /daily               → featured level of the day

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/results"
	"github.com/robalobadob/puzzlequest/internal/session"
)

type levelSummary struct {
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Stages   int    `json:"stages"`
	MaxScore int    `json:"maxScore"`
	session.LevelProgress
}

type levelDetail struct {
	Number int            `json:"number"`
	Name   string         `json:"name"`
	Stages []puzzle.Stage `json:"stages"`
}

func (s *Server) mountProgress(r chi.Router) {
	r.Get("/levels", s.handleLevels)
	r.Get("/levels/{n}", s.handleLevel)
	r.Get("/progress", s.handleProgress)
	r.Get("/settings", s.handleSettings)
	r.Post("/settings", s.handleSaveSettings)
	r.Get("/leaderboard/{level}", s.handleLeaderboard)
	r.Get("/daily", s.handleDaily)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	cat := s.app.Catalog
	recs, err := s.app.Progress(s.owner(w, r)).All(r.Context(), cat.Count())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]levelSummary, 0, cat.Count())
	for i, lvl := range cat.Levels() {
		out = append(out, levelSummary{
			Number:        lvl.Number,
			Name:          lvl.Name,
			Stages:        len(lvl.Stages),
			MaxScore:      cat.MaxScore(lvl.Number),
			LevelProgress: recs[i],
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(chi.URLParam(r, "n"))
	lvl, ok := s.app.Catalog.Level(n)
	if !ok {
		writeErr(w, r, session.ErrUnknownLevel)
		return
	}
	writeJSON(w, http.StatusOK, levelDetail{Number: lvl.Number, Name: lvl.Name, Stages: lvl.Stages})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	repo := s.app.Progress(s.owner(w, r))
	recs, err := repo.All(r.Context(), s.app.Catalog.Count())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	unlocked, err := repo.Unlocked(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlockedLevel": unlocked, "levels": recs})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Progress(s.owner(w, r)).Settings(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	repo := s.app.Progress(s.owner(w, r))
	st, err := repo.Settings(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	// absent fields keep their stored value
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := repo.SaveSettings(r.Context(), st); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(chi.URLParam(r, "level"))
	if _, ok := s.app.Catalog.Level(n); !ok {
		writeErr(w, r, session.ErrUnknownLevel)
		return
	}
	rows := []results.Row{}
	if s.app.Results != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		limit = min(limit, 100)
		var err error
		rows, err = s.app.Results.Leaderboard(r.Context(), n, r.URL.Query().Get("date"), limit)
		if err != nil {
			writeErr(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"level": n, "rows": rows})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	f := s.app.Featured()
	played := false
	if s.app.Results != nil {
		var err error
		played, err = s.app.Results.PlayedOn(r.Context(), s.owner(w, r), f.Level, f.Date)
		if err != nil {
			writeErr(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": f.Date, "level": f.Level, "played": played})
}
