// internal/session/controller.go
//
// Session progression controller.
// Responsibilities:
//   - Own the SessionState (level, cumulative score, phase).
//   - Sequence the stages of a level, one puzzle.Machine per stage.
//   - Award points on stage completion and persist LevelProgress on victory.
//   - Route player input to the active stage while Playing.
//   - Run deferred continuations behind a generation guard so a callback
//     scheduled before a restart, a stage change or teardown does nothing.
//
// A Controller is single-threaded: callers serialise every call, including
// continuations fired by the Scheduler.

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
)

// Deps are the collaborators a Controller is built from.
type Deps struct {
	Catalog   Catalog
	Progress  ProgressStore
	Loader    Loader    // optional; the bus always gets a level-load event
	Scheduler Scheduler // optional; required for After/ScheduleAdvance
	Bus       *puzzle.Bus
	Log       zerolog.Logger
}

// Controller drives one player's session.
type Controller struct {
	deps    Deps
	log     zerolog.Logger
	bus     *puzzle.Bus
	state   State
	level   Level
	stages  []*puzzle.Machine
	current int
	awarded []int
	gen     uint64
	pending map[int]func()
	nextID  int
	closed  bool
	// held is the delay of a scheduled advance that came due while paused;
	// Resume arms it again.
	held    time.Duration
	holding bool
}

// New returns a controller in the Menu phase.
func New(deps Deps) *Controller {
	if deps.Bus == nil {
		deps.Bus = &puzzle.Bus{}
	}
	return &Controller{
		deps:    deps,
		log:     deps.Log,
		bus:     deps.Bus,
		state:   State{Phase: PhaseMenu},
		pending: make(map[int]func()),
	}
}

// Bus returns the bus the controller and its stages publish on.
func (c *Controller) Bus() *puzzle.Bus { return c.bus }

// State returns a copy of the SessionState.
func (c *Controller) State() State { return c.state }

// Start begins loading level n: phase Loading, score reset, load requested.
// Locked or unknown levels are refused.
func (c *Controller) Start(ctx context.Context, n int) error {
	if c.closed {
		return ErrClosed
	}
	lvl, ok := c.deps.Catalog.Level(n)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, n)
	}
	p, err := c.deps.Progress.LoadProgress(ctx, n)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	if !p.Unlocked {
		return fmt.Errorf("%w: %d", ErrLevelLocked, n)
	}

	c.invalidate()
	c.level = lvl
	c.stages = nil
	c.current = 0
	c.awarded = nil
	c.state.Level = n
	c.setScore(0)
	c.setPhase(PhaseLoading)
	c.bus.Publish(puzzle.Event{Kind: puzzle.EventLevelLoad, Level: n})
	if c.deps.Loader != nil {
		c.deps.Loader.RequestLevelLoad(n)
	}
	c.log.Info().Int("level", n).Str("name", lvl.Name).Msg("level load requested")
	return nil
}

// OnLevelLoaded is the host's answer to a load request: the first stage is
// activated and the session starts Playing.
func (c *Controller) OnLevelLoaded() error {
	if c.state.Phase != PhaseLoading {
		return c.refuse("level_loaded")
	}
	if len(c.level.Stages) == 0 {
		return fmt.Errorf("level %d has no stages", c.level.Number)
	}
	c.stages = make([]*puzzle.Machine, len(c.level.Stages))
	for i := range c.stages {
		c.stages[i] = puzzle.NewMachine(c.bus)
	}
	c.awarded = make([]int, 0, len(c.stages))
	c.current = 0
	c.invalidate()
	if err := c.stages[0].Activate(c.level.Stages[0]); err != nil {
		return err
	}
	c.setPhase(PhasePlaying)
	return nil
}

// AssignSlot routes a drop to the active stage.
func (c *Controller) AssignSlot(slot, el string) error {
	m, err := c.active("assign")
	if err != nil {
		return err
	}
	return m.AssignSlot(slot, el)
}

// Select routes a click/tap to the active stage.
func (c *Controller) Select(el string) (string, error) {
	m, err := c.active("select")
	if err != nil {
		return "", err
	}
	return m.Select(el)
}

// Submit routes a submission to the active stage. Submissions on a completed
// stage return its result and leave the session untouched.
func (c *Controller) Submit() (puzzle.Result, error) {
	m, err := c.active("submit")
	if err != nil {
		return puzzle.Result{}, err
	}
	return m.Submit()
}

// Hint asks the active stage for a hint.
func (c *Controller) Hint() (puzzle.Hint, error) {
	m, err := c.active("hint")
	if err != nil {
		return puzzle.Hint{}, err
	}
	return m.Hint()
}

// Advance awards the completed active stage and moves to the next one, or
// finishes the level when the sequence is exhausted.
func (c *Controller) Advance(ctx context.Context) (AdvanceResult, error) {
	m, err := c.active("advance")
	if err != nil {
		return AdvanceResult{}, err
	}
	if !m.Completed() {
		return AdvanceResult{}, &puzzle.TransitionError{Op: "advance", State: m.State().String()}
	}

	st := c.level.Stages[c.current]
	pts := m.Points()
	if c.current+1 == len(c.stages) {
		if err := c.finishLevel(ctx, pts); err != nil {
			return AdvanceResult{}, err
		}
	} else {
		c.award(pts)
	}
	c.log.Debug().Int("level", c.state.Level).Str("stage", st.ID).
		Int("attempts", m.CompletionAttempts()).Int("points", pts).Msg("stage awarded")

	if c.state.Phase == PhaseVictory {
		n := c.state.Level
		return AdvanceResult{
			Awarded:           pts,
			Stage:             c.current,
			LevelComplete:     true,
			Stars:             puzzle.Stars(c.state.Score),
			AllLevelsComplete: n >= c.deps.Catalog.Count(),
		}, nil
	}
	c.current++
	c.invalidate()
	if err := c.stages[c.current].Activate(c.level.Stages[c.current]); err != nil {
		return AdvanceResult{}, err
	}
	return AdvanceResult{Awarded: pts, Stage: c.current}, nil
}

func (c *Controller) award(pts int) {
	c.awarded = append(c.awarded, pts)
	c.setScore(c.state.Score + pts)
}

// finishLevel persists the level record and the unlock of the next level,
// then awards the last stage and moves to Victory. On a storage error nothing
// changes, so Advance can be retried.
func (c *Controller) finishLevel(ctx context.Context, pts int) error {
	n, score := c.state.Level, c.state.Score+pts

	prev, err := c.deps.Progress.LoadProgress(ctx, n)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	rec := LevelProgress{
		Level:     n,
		Unlocked:  true,
		HighScore: max(prev.HighScore, score),
		Stars:     max(prev.Stars, puzzle.Stars(score)),
	}
	if err := c.deps.Progress.SaveProgress(ctx, n, rec); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if n < c.deps.Catalog.Count() {
		next, err := c.deps.Progress.LoadProgress(ctx, n+1)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		next.Level, next.Unlocked = n+1, true
		if err := c.deps.Progress.SaveProgress(ctx, n+1, next); err != nil {
			return fmt.Errorf("unlock level %d: %w", n+1, err)
		}
	}

	c.award(pts)
	c.invalidate()
	c.setPhase(PhaseVictory)
	c.bus.Publish(puzzle.Event{Kind: puzzle.EventCue, Cue: puzzle.CueLevelComplete, Level: n, Score: score})
	c.log.Info().Int("level", n).Int("score", score).Int("stars", puzzle.Stars(score)).Msg("level complete")
	return nil
}

// Restart re-activates the current stage. Attempts and slots reset; the
// phase and the score earned on earlier stages are untouched.
func (c *Controller) Restart() error {
	m, err := c.active("restart")
	if err != nil {
		return err
	}
	if err := m.Restart(); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// RestartLevel reloads the current level from its first stage.
func (c *Controller) RestartLevel(ctx context.Context) error {
	if c.state.Phase == PhaseMenu || c.state.Level == 0 {
		return c.refuse("restart_level")
	}
	return c.Start(ctx, c.state.Level)
}

// NextLevel starts the level after a won one. After the last catalog level it
// reports allDone and changes nothing.
func (c *Controller) NextLevel(ctx context.Context) (allDone bool, err error) {
	if c.state.Phase != PhaseVictory {
		return false, c.refuse("next_level")
	}
	if c.state.Level >= c.deps.Catalog.Count() {
		return true, nil
	}
	return false, c.Start(ctx, c.state.Level+1)
}

// Pause suspends input; the stage is untouched.
func (c *Controller) Pause() error {
	if c.state.Phase != PhasePlaying {
		return c.refuse("pause")
	}
	c.setPhase(PhasePaused)
	return nil
}

// Resume returns from Paused to Playing. An advance that came due while
// paused is scheduled again with its original delay.
func (c *Controller) Resume() error {
	if c.state.Phase != PhasePaused {
		return c.refuse("resume")
	}
	c.setPhase(PhasePlaying)
	if !c.holding {
		return nil
	}
	d := c.held
	c.holding, c.held = false, 0
	return c.ScheduleAdvance(d)
}

// GiveUp ends the level without saving progress.
func (c *Controller) GiveUp() error {
	if c.state.Phase != PhasePlaying && c.state.Phase != PhasePaused {
		return c.refuse("give_up")
	}
	c.invalidate()
	c.setPhase(PhaseGameOver)
	return nil
}

// After schedules fn to run after d unless the session moves on first (stage
// activation, restart, level load, game over, Close). The returned func
// cancels it.
func (c *Controller) After(d time.Duration, fn func()) (func(), error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.deps.Scheduler == nil {
		return nil, fmt.Errorf("no scheduler configured")
	}
	gen := c.gen
	c.nextID++
	id := c.nextID
	cancel := c.deps.Scheduler.AfterFunc(d, func() {
		delete(c.pending, id)
		if c.closed || c.gen != gen {
			c.log.Debug().Uint64("scheduled", gen).Uint64("current", c.gen).Msg("stale continuation dropped")
			return
		}
		fn()
	})
	c.pending[id] = cancel
	return func() {
		if stop, ok := c.pending[id]; ok {
			stop()
			delete(c.pending, id)
		}
	}, nil
}

// ScheduleAdvance advances after a reveal delay. The active stage must be
// completed already.
func (c *Controller) ScheduleAdvance(d time.Duration) error {
	m, err := c.active("schedule_advance")
	if err != nil {
		return err
	}
	if !m.Completed() {
		return &puzzle.TransitionError{Op: "schedule_advance", State: m.State().String()}
	}
	_, err = c.After(d, func() {
		if c.state.Phase == PhasePaused {
			c.holding, c.held = true, d
			c.log.Debug().Int("level", c.state.Level).Msg("advance held while paused")
			return
		}
		if _, err := c.Advance(context.Background()); err != nil {
			c.log.Warn().Err(err).Int("level", c.state.Level).Msg("deferred advance")
		}
	})
	return err
}

// Close tears the session down and cancels every pending continuation.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.invalidate()
}

// Stage returns a snapshot of the active stage, if any.
func (c *Controller) Stage() (puzzle.Snapshot, bool) {
	if len(c.stages) == 0 {
		return puzzle.Snapshot{}, false
	}
	return c.stages[c.current].Snapshot(), true
}

// StageIndex returns the index of the active stage and the stage count.
func (c *Controller) StageIndex() (int, int) { return c.current, len(c.stages) }

// Awarded returns the points awarded per completed stage so far.
func (c *Controller) Awarded() []int { return append([]int(nil), c.awarded...) }

// Generation changes whenever pending continuations become stale.
func (c *Controller) Generation() uint64 { return c.gen }

// Pending reports the number of scheduled continuations.
func (c *Controller) Pending() int { return len(c.pending) }

// active returns the current machine if the session accepts input.
func (c *Controller) active(op string) (*puzzle.Machine, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.state.Phase != PhasePlaying || len(c.stages) == 0 {
		return nil, c.refuse(op)
	}
	return c.stages[c.current], nil
}

// invalidate bumps the generation and cancels what is pending, including a
// held advance.
func (c *Controller) invalidate() {
	c.gen++
	c.holding, c.held = false, 0
	for id, stop := range c.pending {
		stop()
		delete(c.pending, id)
	}
}

func (c *Controller) refuse(op string) error {
	return &puzzle.TransitionError{Op: op, State: c.state.Phase.String()}
}

func (c *Controller) setPhase(p Phase) {
	if c.state.Phase == p {
		return
	}
	c.state.Phase = p
	c.bus.Publish(puzzle.Event{Kind: puzzle.EventPhaseChanged, Phase: p.String(), Level: c.state.Level})
}

func (c *Controller) setScore(s int) {
	c.state.Score = s
	c.bus.Publish(puzzle.Event{Kind: puzzle.EventScore, Level: c.state.Level, Score: s})
}
