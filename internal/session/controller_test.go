package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
)

type staticCatalog []Level

func (c staticCatalog) Level(n int) (Level, bool) {
	if n < 1 || n > len(c) {
		return Level{}, false
	}
	return c[n-1], true
}

func (c staticCatalog) Count() int { return len(c) }

type mapProgress map[int]LevelProgress

func (m mapProgress) LoadProgress(_ context.Context, n int) (LevelProgress, error) {
	p, ok := m[n]
	if !ok {
		return LevelProgress{Level: n, Unlocked: n == 1}, nil
	}
	return p, nil
}

func (m mapProgress) SaveProgress(_ context.Context, n int, p LevelProgress) error {
	m[n] = p
	return nil
}

type recordingLoader []int

func (l *recordingLoader) RequestLevelLoad(n int) { *l = append(*l, n) }

func threeStageLevel(n int) Level {
	lvl := Level{Number: n, Name: "story"}
	for _, id := range []string{"a", "b", "c"} {
		st := puzzle.OrderedStage(id, puzzle.KindSequence, []string{id + "1", id + "2"})
		st.BasePoints = 100
		lvl.Stages = append(lvl.Stages, st)
	}
	return lvl
}

type fixture struct {
	c        *Controller
	progress mapProgress
	loader   *recordingLoader
	sched    *ManualScheduler
	events   []puzzle.Event
}

func newFixture(t *testing.T, levels ...Level) *fixture {
	t.Helper()
	f := &fixture{progress: mapProgress{}, loader: &recordingLoader{}, sched: &ManualScheduler{}}
	f.c = New(Deps{
		Catalog:   staticCatalog(levels),
		Progress:  f.progress,
		Loader:    f.loader,
		Scheduler: f.sched,
		Log:       zerolog.Nop(),
	})
	f.c.Bus().Subscribe(func(e puzzle.Event) { f.events = append(f.events, e) })
	return f
}

func (f *fixture) play(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	if err := f.c.Start(ctx, n); err != nil {
		t.Fatalf("Start(%d): %v", n, err)
	}
	if err := f.c.OnLevelLoaded(); err != nil {
		t.Fatalf("OnLevelLoaded: %v", err)
	}
}

// solve fills the active stage, optionally failing it first.
func (f *fixture) solve(t *testing.T, failures int) puzzle.Result {
	t.Helper()
	snap, ok := f.c.Stage()
	if !ok {
		t.Fatal("no active stage")
	}
	id := snap.StageID
	for i := 0; i < failures; i++ {
		f.assign(t, "1", id+"2")
		f.assign(t, "2", id+"1")
		if res, err := f.c.Submit(); err != nil || res.Correct {
			t.Fatalf("failing submit = %+v, %v", res, err)
		}
	}
	f.assign(t, "1", id+"1")
	f.assign(t, "2", id+"2")
	res, err := f.c.Submit()
	if err != nil || !res.Correct {
		t.Fatalf("Submit = %+v, %v", res, err)
	}
	return res
}

func (f *fixture) assign(t *testing.T, slot, el string) {
	t.Helper()
	if err := f.c.AssignSlot(slot, el); err != nil {
		t.Fatalf("AssignSlot(%s,%s): %v", slot, el, err)
	}
}

func TestEndToEndThreeStages(t *testing.T) {
	f := newFixture(t, threeStageLevel(1), threeStageLevel(2))
	ctx := context.Background()
	f.play(t, 1)
	if len(*f.loader) != 1 || (*f.loader)[0] != 1 {
		t.Fatalf("loader calls=%v, want [1]", *f.loader)
	}

	wantAward := []int{100, 90, 100}
	for i, failures := range []int{0, 1, 0} {
		f.solve(t, failures)
		res, err := f.c.Advance(ctx)
		if err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
		if res.Awarded != wantAward[i] {
			t.Fatalf("stage %d awarded %d, want %d", i, res.Awarded, wantAward[i])
		}
		if last := i == 2; res.LevelComplete != last {
			t.Fatalf("stage %d LevelComplete=%v", i, res.LevelComplete)
		}
	}

	st := f.c.State()
	if st.Score != 290 || st.Phase != PhaseVictory {
		t.Fatalf("state=%+v, want score 290 in victory", st)
	}
	got := f.progress[1]
	if got.HighScore != 290 || got.Stars != 0 || !got.Unlocked {
		t.Fatalf("level 1 progress=%+v", got)
	}
	if !f.progress[2].Unlocked {
		t.Fatal("level 2 not unlocked")
	}
}

func TestVictoryKeepsBestRecord(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.progress[1] = LevelProgress{Level: 1, Unlocked: true, HighScore: 1200, Stars: 3}
	f.play(t, 1)
	for i := 0; i < 3; i++ {
		f.solve(t, 0)
		res, err := f.c.Advance(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if i == 2 && !res.AllLevelsComplete {
			t.Fatal("finishing the only level should report AllLevelsComplete")
		}
	}
	if got := f.progress[1]; got.HighScore != 1200 || got.Stars != 3 {
		t.Fatalf("progress=%+v, want best record kept", got)
	}
	done, err := f.c.NextLevel(context.Background())
	if err != nil || !done {
		t.Fatalf("NextLevel = %v, %v; want all done", done, err)
	}
}

func TestRestartMidStage(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	f.solve(t, 0)
	if _, err := f.c.Advance(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.assign(t, "1", "b2")
	f.assign(t, "2", "b1")
	_, _ = f.c.Submit()
	f.assign(t, "1", "b1")

	if err := f.c.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	snap, _ := f.c.Stage()
	if snap.Attempts != 0 || len(snap.Assignment) != 0 || snap.StageID != "b" {
		t.Fatalf("after restart: %+v", snap)
	}
	if st := f.c.State(); st.Phase != PhasePlaying || st.Score != 100 {
		t.Fatalf("state=%+v, want playing with score 100", st)
	}
}

func TestSubmitAfterCompletionLeavesSessionAlone(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	first := f.solve(t, 1)
	before := f.c.State()
	for i := 0; i < 3; i++ {
		res, err := f.c.Submit()
		if err != nil || !res.Correct || res.Attempts != first.Attempts {
			t.Fatalf("repeat Submit = %+v, %v", res, err)
		}
	}
	if f.c.State() != before {
		t.Fatalf("state changed: %+v -> %+v", before, f.c.State())
	}
	snap, _ := f.c.Stage()
	if snap.Attempts != 2 {
		t.Fatalf("attempts=%d, want 2", snap.Attempts)
	}
}

func TestAdvanceRequiresCompletedStage(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	if _, err := f.c.Advance(context.Background()); !errors.Is(err, puzzle.ErrInvalidTransition) {
		t.Fatalf("err=%v, want ErrInvalidTransition", err)
	}
}

func TestPauseBlocksInput(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	f.assign(t, "1", "a1")
	if err := f.c.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := f.c.AssignSlot("2", "a2"); !errors.Is(err, puzzle.ErrInvalidTransition) {
		t.Fatalf("AssignSlot while paused err=%v", err)
	}
	if err := f.c.Pause(); !errors.Is(err, puzzle.ErrInvalidTransition) {
		t.Fatalf("double pause err=%v", err)
	}
	if err := f.c.Resume(); err != nil {
		t.Fatal(err)
	}
	snap, _ := f.c.Stage()
	if snap.Assignment["1"] != "a1" {
		t.Fatalf("pause touched the stage: %+v", snap.Assignment)
	}
}

func TestLockedAndUnknownLevels(t *testing.T) {
	f := newFixture(t, threeStageLevel(1), threeStageLevel(2))
	ctx := context.Background()
	if err := f.c.Start(ctx, 2); !errors.Is(err, ErrLevelLocked) {
		t.Fatalf("Start(2) err=%v, want ErrLevelLocked", err)
	}
	if err := f.c.Start(ctx, 9); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("Start(9) err=%v, want ErrUnknownLevel", err)
	}
	if f.c.State().Phase != PhaseMenu {
		t.Fatalf("phase=%v, want menu", f.c.State().Phase)
	}
}

func TestScheduledAdvance(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	f.solve(t, 0)
	if err := f.c.ScheduleAdvance(1500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	f.sched.Advance(time.Second)
	if idx, _ := f.c.StageIndex(); idx != 0 {
		t.Fatalf("advanced too early: stage %d", idx)
	}
	f.sched.Advance(time.Second)
	if idx, _ := f.c.StageIndex(); idx != 1 {
		t.Fatalf("stage=%d, want 1", idx)
	}
	if f.c.State().Score != 100 {
		t.Fatalf("score=%d", f.c.State().Score)
	}
}

func TestStaleContinuationIsDropped(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	ran := false
	if _, err := f.c.After(time.Second, func() { ran = true }); err != nil {
		t.Fatal(err)
	}
	f.assign(t, "1", "a1")
	if err := f.c.Restart(); err != nil {
		t.Fatal(err)
	}
	f.sched.Advance(2 * time.Second)
	if ran {
		t.Fatal("continuation ran after restart")
	}
	if f.c.Pending() != 0 {
		t.Fatalf("pending=%d, want 0", f.c.Pending())
	}
}

func TestStaleGuardWhenSchedulerIgnoresCancel(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	var fire []func()
	f.c.deps.Scheduler = schedulerFunc(func(_ time.Duration, fn func()) func() {
		fire = append(fire, fn)
		return func() {} // cancellation is a no-op here
	})
	f.play(t, 1)
	ran := 0
	if _, err := f.c.After(time.Second, func() { ran++ }); err != nil {
		t.Fatal(err)
	}
	f.c.Close()
	for _, fn := range fire {
		fn()
	}
	if ran != 0 {
		t.Fatal("continuation ran after Close")
	}
	if _, err := f.c.After(time.Second, func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("After on closed session err=%v", err)
	}
}

type schedulerFunc func(time.Duration, func()) func()

func (s schedulerFunc) AfterFunc(d time.Duration, fn func()) func() { return s(d, fn) }

func TestGiveUpAndRestartLevel(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	ctx := context.Background()
	f.play(t, 1)
	f.solve(t, 0)
	if _, err := f.c.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.c.GiveUp(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.c.Submit(); !errors.Is(err, puzzle.ErrInvalidTransition) {
		t.Fatalf("Submit after give up err=%v", err)
	}
	if err := f.c.RestartLevel(ctx); err != nil {
		t.Fatal(err)
	}
	if st := f.c.State(); st.Phase != PhaseLoading || st.Score != 0 {
		t.Fatalf("state=%+v, want loading with score reset", st)
	}
	if err := f.c.OnLevelLoaded(); err != nil {
		t.Fatal(err)
	}
	if snap, _ := f.c.Stage(); snap.StageID != "a" {
		t.Fatalf("stage=%s, want a", snap.StageID)
	}
}

func TestPhaseEventsPublished(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	var phases []string
	for _, e := range f.events {
		if e.Kind == puzzle.EventPhaseChanged {
			phases = append(phases, e.Phase)
		}
	}
	if len(phases) != 2 || phases[0] != "loading" || phases[1] != "playing" {
		t.Fatalf("phases=%v", phases)
	}
}

func TestAdvanceHeldWhilePaused(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	f.solve(t, 0)
	if err := f.c.ScheduleAdvance(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := f.c.Pause(); err != nil {
		t.Fatal(err)
	}
	f.sched.Advance(2 * time.Second)
	if idx, _ := f.c.StageIndex(); idx != 0 || f.c.State().Phase != PhasePaused {
		t.Fatalf("advanced while paused: stage %d phase %v", idx, f.c.State().Phase)
	}

	if err := f.c.Resume(); err != nil {
		t.Fatal(err)
	}
	if f.c.Pending() != 1 {
		t.Fatalf("pending=%d after resume, want the advance re-armed", f.c.Pending())
	}
	f.sched.Advance(5 * time.Second)
	if idx, _ := f.c.StageIndex(); idx != 1 {
		t.Fatalf("stage=%d, want 1", idx)
	}
	if f.c.State().Score != 100 {
		t.Fatalf("score=%d, want 100", f.c.State().Score)
	}
}

func TestHeldAdvanceDroppedByRestartLevel(t *testing.T) {
	f := newFixture(t, threeStageLevel(1))
	f.play(t, 1)
	f.solve(t, 0)
	_ = f.c.ScheduleAdvance(time.Second)
	_ = f.c.Pause()
	f.sched.Advance(2 * time.Second)
	if err := f.c.RestartLevel(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.c.OnLevelLoaded(); err != nil {
		t.Fatal(err)
	}
	_ = f.c.Pause()
	if err := f.c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if f.c.Pending() != 0 {
		t.Fatalf("pending=%d, want the held advance gone", f.c.Pending())
	}
}

type failingProgress struct {
	mapProgress
	fail bool
}

func (p *failingProgress) SaveProgress(ctx context.Context, n int, lp LevelProgress) error {
	if p.fail {
		return errors.New("disk full")
	}
	return p.mapProgress.SaveProgress(ctx, n, lp)
}

func TestFailedSaveCanBeRetried(t *testing.T) {
	store := &failingProgress{mapProgress: mapProgress{}}
	c := New(Deps{Catalog: staticCatalog{threeStageLevel(1), threeStageLevel(2)}, Progress: store, Log: zerolog.Nop()})
	f := &fixture{c: c}
	f.play(t, 1)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		f.solve(t, 0)
		if _, err := c.Advance(ctx); err != nil {
			t.Fatal(err)
		}
	}
	f.solve(t, 0)

	store.fail = true
	if _, err := c.Advance(ctx); err == nil {
		t.Fatal("expected save error")
	}
	if st := c.State(); st.Phase != PhasePlaying || st.Score != 200 {
		t.Fatalf("state after failed save=%+v, want playing with score 200", st)
	}

	store.fail = false
	res, err := c.Advance(ctx)
	if err != nil || !res.LevelComplete {
		t.Fatalf("retry = %+v, %v", res, err)
	}
	if st := c.State(); st.Phase != PhaseVictory || st.Score != 300 {
		t.Fatalf("state=%+v, want victory with 300", st)
	}
	if store.mapProgress[1].HighScore != 300 || !store.mapProgress[2].Unlocked {
		t.Fatalf("progress=%+v", store.mapProgress)
	}
	if got := c.Awarded(); len(got) != 3 {
		t.Fatalf("awarded=%v, want three entries", got)
	}
}

func TestQuizStagesScoreOnce(t *testing.T) {
	lvl := Level{Number: 1, Stages: []puzzle.Stage{
		puzzle.QuizStage("q1", "answer", "rainbow", []string{"rainbow", "star"}),
		puzzle.QuizStage("q2", "answer", "ark", []string{"ark", "tower"}),
	}}
	f := newFixture(t, lvl)
	f.play(t, 1)
	ctx := context.Background()

	if _, err := f.c.Select("rainbow"); err != nil {
		t.Fatal(err)
	}
	res, err := f.c.Advance(ctx)
	if err != nil || res.Awarded != puzzle.QuizPoints {
		t.Fatalf("correct answer = %+v, %v", res, err)
	}

	if _, err := f.c.Select("tower"); err != nil {
		t.Fatal(err)
	}
	r, _ := f.c.Submit()
	if r.Correct || r.Reveal["answer"] != "ark" {
		t.Fatalf("wrong answer result=%+v, want reveal of ark", r)
	}
	res, err = f.c.Advance(ctx)
	if err != nil || res.Awarded != 0 || !res.LevelComplete {
		t.Fatalf("wrong answer advance = %+v, %v", res, err)
	}
	if f.c.State().Score != puzzle.QuizPoints {
		t.Fatalf("score=%d", f.c.State().Score)
	}
}
