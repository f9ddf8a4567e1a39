// internal/store/memory.go
//
// In-memory registry of running sessions.
// The HTTP host keeps one Entry per player session; a session is ephemeral
// (progress itself is persisted through internal/progress).
//
// Characteristics:
//   - Entries keyed by session id in a map guarded by an RWMutex.
//   - Each Entry serialises every call into its controller, including timer
//     continuations, behind its own mutex.
//   - Each Entry buffers the bus events published since the host last
//     drained them.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/puzzlequest/internal/puzzle"
	"github.com/robalobadob/puzzlequest/internal/session"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// maxBuffered bounds the undrained event buffer of one session.
const maxBuffered = 256

// Store defines the registry interface for running sessions.
type Store interface {
	// Save adds or replaces an entry.
	Save(ctx context.Context, e *Entry) error

	// Get retrieves an entry by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// Delete removes an entry and closes its controller.
	Delete(ctx context.Context, id string) error

	// PruneIdle closes and removes entries not used since before.
	PruneIdle(before time.Time) int

	// Len reports how many sessions are registered.
	Len() int
}

// Entry is one running session and everything the host needs around it.
type Entry struct {
	ID      string
	Owner   string
	Created time.Time

	mu       sync.Mutex
	ctrl     *session.Controller
	bus      *puzzle.Bus
	events   []puzzle.Event
	lastUsed time.Time
}

// NewEntry creates an entry with its own bus. The bus records every event
// until Drain is called.
func NewEntry(id, owner string, now time.Time) *Entry {
	e := &Entry{ID: id, Owner: owner, Created: now, lastUsed: now, bus: &puzzle.Bus{}}
	e.bus.Subscribe(e.record)
	return e
}

// Bus is the bus the session's controller must publish on.
func (e *Entry) Bus() *puzzle.Bus { return e.bus }

// Attach binds the controller built on Bus.
func (e *Entry) Attach(c *session.Controller) { e.ctrl = c }

// Locked runs fn while holding the entry lock. It is the Wrap of the
// session's TimerScheduler.
func (e *Entry) Locked(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Do runs fn against the controller while holding the entry lock.
func (e *Entry) Do(fn func(c *session.Controller) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = time.Now()
	return fn(e.ctrl)
}

// Drain returns and forgets the buffered events. Call it from inside Do.
func (e *Entry) Drain() []puzzle.Event {
	out := e.events
	e.events = nil
	if out == nil {
		out = []puzzle.Event{}
	}
	return out
}

func (e *Entry) record(ev puzzle.Event) {
	if len(e.events) >= maxBuffered {
		e.events = e.events[1:]
	}
	e.events = append(e.events, ev)
}

func (e *Entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl != nil {
		e.ctrl.Close()
	}
}

func (e *Entry) idleSince(before time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed.Before(before)
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{entries: make(map[string]*Entry)}
}

func (m *memory) Save(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *memory) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.close()
	return nil
}

func (m *memory) PruneIdle(before time.Time) int {
	m.mu.Lock()
	var stale []*Entry
	for id, e := range m.entries {
		if e.idleSince(before) {
			stale = append(stale, e)
			delete(m.entries, id)
		}
	}
	m.mu.Unlock()
	for _, e := range stale {
		e.close()
	}
	return len(stale)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
