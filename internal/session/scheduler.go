package session

import (
	"sort"
	"time"
)

// TimerScheduler runs continuations on time.AfterFunc. Wrap, when set, is
// called with each continuation so the owner can serialise it with its own
// calls into the controller (for example by taking a mutex).
type TimerScheduler struct {
	Wrap func(fn func())
}

// AfterFunc implements Scheduler.
func (s TimerScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() {
		if s.Wrap != nil {
			s.Wrap(fn)
			return
		}
		fn()
	})
	return func() { t.Stop() }
}

// ManualScheduler keeps virtual time; continuations run only from Advance.
// Used by tests and the scripted CLI player.
type ManualScheduler struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	due time.Duration
	seq int
	fn  func()
}

// AfterFunc implements Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) func() {
	s.seq++
	t := &manualTimer{due: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return func() { s.remove(t) }
}

// Advance moves virtual time forward by d and runs every continuation that
// became due, earliest first.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		sort.Slice(s.timers, func(i, j int) bool {
			if s.timers[i].due != s.timers[j].due {
				return s.timers[i].due < s.timers[j].due
			}
			return s.timers[i].seq < s.timers[j].seq
		})
		if len(s.timers) == 0 || s.timers[0].due > target {
			break
		}
		t := s.timers[0]
		s.timers = s.timers[1:]
		s.now = t.due
		t.fn()
	}
	s.now = target
}

// Pending reports how many continuations are waiting.
func (s *ManualScheduler) Pending() int { return len(s.timers) }

func (s *ManualScheduler) remove(t *manualTimer) {
	for i, x := range s.timers {
		if x == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}
