// internal/session/types.go
//
// Types shared by the session controller and its collaborators.
// Defines:
//   - Phase: the game phase of a running session.
//   - State: the single SessionState owned by a Controller.
//   - Level / LevelProgress: catalog entries and their persisted records.
//   - Catalog, ProgressStore, Loader, Scheduler: the narrow ports the
//     controller depends on. Hosts and storage adapters implement them.

package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
)

// Phase is the coarse game phase.
type Phase int

const (
	PhaseMenu Phase = iota
	PhasePlaying
	PhasePaused
	PhaseGameOver
	PhaseVictory
	PhaseLoading
)

var phaseNames = [...]string{
	PhaseMenu:     "menu",
	PhasePlaying:  "playing",
	PhasePaused:   "paused",
	PhaseGameOver: "game_over",
	PhaseVictory:  "victory",
	PhaseLoading:  "loading",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
	return phaseNames[p]
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// State is the SessionState of one running session.
type State struct {
	Level int   `json:"level"`
	Score int   `json:"score"` // cumulative score of the current level
	Phase Phase `json:"phase"`
}

// Level is an ordered list of stages played in sequence.
type Level struct {
	Number int            `json:"number"`
	Name   string         `json:"name"`
	Stages []puzzle.Stage `json:"stages"`
}

// LevelProgress is the persisted record of one level.
type LevelProgress struct {
	Level     int  `json:"level"`
	Unlocked  bool `json:"unlocked"`
	HighScore int  `json:"highScore"`
	Stars     int  `json:"stars"`
}

// Catalog supplies level definitions, numbered 1..Count().
type Catalog interface {
	Level(n int) (Level, bool)
	Count() int
}

// ProgressStore reads and writes LevelProgress records.
type ProgressStore interface {
	LoadProgress(ctx context.Context, level int) (LevelProgress, error)
	SaveProgress(ctx context.Context, level int, p LevelProgress) error
}

// Loader asks the host to load a level; the host calls
// Controller.OnLevelLoaded when it is done.
type Loader interface {
	RequestLevelLoad(level int)
}

// Scheduler runs fn once after d. The returned func cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

var (
	ErrUnknownLevel = errors.New("unknown level")
	ErrLevelLocked  = errors.New("level locked")
	ErrClosed       = errors.New("session closed")
)

// AdvanceResult describes what Advance did.
type AdvanceResult struct {
	Awarded       int  `json:"awarded"`
	Stage         int  `json:"stage"` // index of the active stage afterwards
	LevelComplete bool `json:"levelComplete"`
	Stars         int  `json:"stars,omitempty"`
	// AllLevelsComplete is set when the finished level is the last one in
	// the catalog. It is a success signal, not an error.
	AllLevelsComplete bool `json:"allLevelsComplete,omitempty"`
}
