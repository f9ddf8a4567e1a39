// internal/kv/kv.go
//
// Integer key-value storage scoped by owner. Progress records and player
// settings are small named integers, so both backends store exactly that.
//
// Backends:
//   - Memory: RWMutex-guarded maps, lost on restart (tests, CLI dry runs).
//   - SQLite: the kv(owner, key, value) table created by the migrations.

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/robalobadob/puzzlequest/internal/db"
)

// Store is the persistence interface used by the progress repository.
type Store interface {
	// Get returns the value of key; ok is false when it was never set.
	Get(ctx context.Context, owner, key string) (value int, ok bool, err error)
	Set(ctx context.Context, owner, key string, value int) error
	// All returns every key stored for owner.
	All(ctx context.Context, owner string) (map[string]int, error)
	// Clear removes every key stored for owner.
	Clear(ctx context.Context, owner string) error
	// Atomic runs fn against a Store whose writes commit together or not at
	// all.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu   sync.RWMutex
	data map[string]map[string]int // owner → key → value
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() Store {
	return &memory{data: make(map[string]map[string]int)}
}

func (m *memory) Get(_ context.Context, owner, key string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[owner][key]
	return v, ok, nil
}

func (m *memory) Set(_ context.Context, owner, key string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[owner] == nil {
		m.data[owner] = make(map[string]int)
	}
	m.data[owner][key] = value
	return nil
}

func (m *memory) All(_ context.Context, owner string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.data[owner]))
	for k, v := range m.data[owner] {
		out[k] = v
	}
	return out, nil
}

func (m *memory) Clear(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, owner)
	return nil
}

// Atomic runs fn on a staged copy and swaps it in when fn succeeds. The
// store is locked while fn runs.
func (m *memory) Atomic(_ context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &memory{data: make(map[string]map[string]int, len(m.data))}
	for owner, vals := range m.data {
		cp := make(map[string]int, len(vals))
		for k, v := range vals {
			cp[k] = v
		}
		staged.data[owner] = cp
	}
	if err := fn(staged); err != nil {
		return err
	}
	m.data = staged.data
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite stores values in the kv table. The table must already exist.
type SQLite struct {
	conn *sql.DB // nil inside a transaction
	db   querier
}

// NewSQLite wraps an open, migrated database.
func NewSQLite(conn *sql.DB) *SQLite { return &SQLite{conn: conn, db: conn} }

// Atomic runs fn inside one transaction. Nested calls join the outer one.
func (s *SQLite) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.conn == nil {
		return fn(s)
	}
	return db.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		return fn(&SQLite{db: tx})
	})
}

func (s *SQLite) Get(ctx context.Context, owner, key string) (int, bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE owner=? AND key=?`, owner, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, owner, key string, value int) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv (owner, key, value) VALUES (?, ?, ?)
        ON CONFLICT(owner, key) DO UPDATE SET value=excluded.value`,
		owner, key, value,
	)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) All(ctx context.Context, owner string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE owner=?`, owner)
	if err != nil {
		return nil, fmt.Errorf("kv all: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLite) Clear(ctx context.Context, owner string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE owner=?`, owner); err != nil {
		return fmt.Errorf("kv clear: %w", err)
	}
	return nil
}
