// internal/app/app.go
//
// Process-wide wiring shared by the HTTP server and the CLI.
// Responsibilities:
//   - Open and migrate the database, load the level catalog.
//   - Build per-owner progress repositories over the kv store.
//   - Create sessions: one controller per session, registered in the session
//     store, with a timer scheduler serialised on the session lock.
//   - Record won levels in the results table by listening on the session bus.

package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/puzzlequest/assets"
	"github.com/robalobadob/puzzlequest/internal/catalog"
	"github.com/robalobadob/puzzlequest/internal/config"
	"github.com/robalobadob/puzzlequest/internal/daily"
	"github.com/robalobadob/puzzlequest/internal/db"
	"github.com/robalobadob/puzzlequest/internal/kv"
	"github.com/robalobadob/puzzlequest/internal/progress"
	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/results"
	"github.com/robalobadob/puzzlequest/internal/session"
	"github.com/robalobadob/puzzlequest/internal/store"
)

// App bundles the long-lived dependencies.
type App struct {
	Cfg      config.Config
	Log      zerolog.Logger
	DB       *sql.DB // nil for in-memory apps
	KV       kv.Store
	Catalog  *catalog.Catalog
	Results  *results.Store // nil for in-memory apps
	Sessions store.Store

	now func() time.Time
}

// Open builds an App on the SQLite database at cfg.DBPath.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	cat, err := catalog.Load(cfg.LevelsFile)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Migrate(ctx, conn, assets.Migrations(), log); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("db", cfg.DBPath).Str("catalog", cat.Source()).Int("levels", cat.Count()).Msg("app ready")
	return &App{
		Cfg:      cfg,
		Log:      log,
		DB:       conn,
		KV:       kv.NewSQLite(conn),
		Catalog:  cat,
		Results:  results.NewStore(conn),
		Sessions: store.NewMemoryStore(),
		now:      time.Now,
	}, nil
}

// NewMemory builds an App without a database: progress lives in memory and
// results are not recorded.
func NewMemory(cfg config.Config, cat *catalog.Catalog, log zerolog.Logger) *App {
	return &App{
		Cfg:      cfg,
		Log:      log,
		KV:       kv.NewMemory(),
		Catalog:  cat,
		Sessions: store.NewMemoryStore(),
		now:      time.Now,
	}
}

// Close releases the database.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// Progress returns the progress repository of owner.
func (a *App) Progress(owner string) *progress.Repo {
	return progress.For(a.KV, owner)
}

// NewSession creates a session for owner, starts level and registers it.
// The level is in Loading until the host confirms with OnLevelLoaded.
func (a *App) NewSession(ctx context.Context, owner string, level int) (*store.Entry, error) {
	id := uuid.NewString()
	e := store.NewEntry(id, owner, a.now())
	ctrl := session.New(session.Deps{
		Catalog:   a.Catalog,
		Progress:  a.Progress(owner),
		Scheduler: session.TimerScheduler{Wrap: e.Locked},
		Bus:       e.Bus(),
		Log:       a.Log.With().Str("session", id).Str("owner", owner).Logger(),
	})
	e.Attach(ctrl)
	a.recordResults(e)

	if err := e.Do(func(c *session.Controller) error { return c.Start(ctx, level) }); err != nil {
		ctrl.Close()
		return nil, err
	}
	if err := a.Sessions.Save(ctx, e); err != nil {
		ctrl.Close()
		return nil, err
	}
	a.Log.Debug().Str("session", id).Str("owner", owner).Int("level", level).Msg("session created")
	return e, nil
}

// recordResults writes a results row whenever the session wins a level.
// Events arrive on the controller's goroutine, under the session lock.
func (a *App) recordResults(e *store.Entry) {
	if a.Results == nil {
		return
	}
	var started time.Time
	attempts := 0
	e.Bus().Subscribe(func(ev puzzle.Event) {
		switch {
		case ev.Kind == puzzle.EventLevelLoad:
			started, attempts = a.now(), 0
		case ev.Kind == puzzle.EventEvaluated:
			attempts++
		case ev.Kind == puzzle.EventCue && ev.Cue == puzzle.CueLevelComplete:
			now := a.now()
			r := results.Result{
				Owner:     e.Owner,
				Level:     ev.Level,
				Score:     ev.Score,
				Stars:     puzzle.Stars(ev.Score),
				Attempts:  attempts,
				ElapsedMs: int(now.Sub(started).Milliseconds()),
				Date:      daily.DateKey(now),
			}
			if err := a.Results.Insert(context.Background(), r); err != nil {
				a.Log.Warn().Err(err).Str("session", e.ID).Int("level", ev.Level).Msg("record result")
			}
		}
	})
}

// Featured returns the featured level of the day.
func (a *App) Featured() daily.Featured {
	return daily.Today(a.now(), a.Cfg.DailySalt, a.Catalog.Count())
}

// PruneLoop drops idle sessions every interval until ctx is done.
func (a *App) PruneLoop(ctx context.Context, interval time.Duration) {
	if a.Cfg.SessionIdle <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.Sessions.PruneIdle(a.now().Add(-a.Cfg.SessionIdle)); n > 0 {
				a.Log.Info().Int("pruned", n).Int("open", a.Sessions.Len()).Msg("idle sessions dropped")
			}
		}
	}
}
