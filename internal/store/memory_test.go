package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/session"
)

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	e := NewEntry("s1", "owner", now)
	e.Attach(session.New(session.Deps{Bus: e.Bus(), Log: zerolog.Nop()}))

	if err := s.Save(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "s1")
	if err != nil || got != e {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id err=%v", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	err = e.Do(func(c *session.Controller) error {
		return c.Pause()
	})
	if !errors.Is(err, session.ErrClosed) && !errors.Is(err, puzzle.ErrInvalidTransition) {
		t.Fatalf("controller usable after delete: %v", err)
	}
	if err := s.Delete(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete err=%v", err)
	}
}

func TestDrainReturnsBufferedEvents(t *testing.T) {
	e := NewEntry("s1", "owner", time.Now())
	e.Bus().Publish(puzzle.Event{Kind: puzzle.EventCue, Cue: puzzle.CueSubmit})
	e.Bus().Publish(puzzle.Event{Kind: puzzle.EventCue, Cue: puzzle.CueWrong})

	var got []puzzle.Event
	_ = e.Do(func(*session.Controller) error {
		got = e.Drain()
		return nil
	})
	if len(got) != 2 || got[1].Cue != puzzle.CueWrong {
		t.Fatalf("drained %+v", got)
	}
	if again := e.Drain(); len(again) != 0 {
		t.Fatalf("second drain %+v", again)
	}

	for i := 0; i < maxBuffered+10; i++ {
		e.Bus().Publish(puzzle.Event{Kind: puzzle.EventScore, Score: i})
	}
	buf := e.Drain()
	if len(buf) != maxBuffered || buf[len(buf)-1].Score != maxBuffered+9 {
		t.Fatalf("buffer len=%d last=%+v", len(buf), buf[len(buf)-1])
	}
}

func TestPruneIdle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := NewEntry("old", "a", time.Now().Add(-time.Hour))
	fresh := NewEntry("fresh", "b", time.Now())
	_ = s.Save(ctx, old)
	_ = s.Save(ctx, fresh)

	if n := s.PruneIdle(time.Now().Add(-time.Minute)); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d", s.Len())
	}
	if _, err := s.Get(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
}
