// internal/results/results.go
//
// Won level plays and the per-level leaderboard.
// A row is written every time a session reaches Victory; the leaderboard
// keeps each owner's best play only.

package results

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robalobadob/puzzlequest/internal/db"
)

// Result is one won play of a level.
type Result struct {
	Owner     string `json:"owner"`
	Level     int    `json:"level"`
	Score     int    `json:"score"`
	Stars     int    `json:"stars"`
	Attempts  int    `json:"attempts"` // total submissions across all stages
	ElapsedMs int    `json:"elapsedMs"`
	Date      string `json:"date"` // YYYY-MM-DD (UTC)
}

// Store reads and writes the level_results table.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Insert records a won play and bumps the owner's win counter when the
// owner is a registered user.
func (s *Store) Insert(ctx context.Context, r Result) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO level_results (owner, level, score, stars, attempts, elapsed_ms, date)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.Owner, r.Level, r.Score, r.Stars, r.Attempts, r.ElapsedMs, r.Date,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET levels_won = levels_won + 1 WHERE id=?`, r.Owner); err != nil {
			return fmt.Errorf("bump wins: %w", err)
		}
		return nil
	})
}

// PlayedOn reports whether owner won level on date.
func (s *Store) PlayedOn(ctx context.Context, owner string, level int, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM level_results WHERE owner=? AND level=? AND date=?`,
		owner, level, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// Row is one leaderboard line.
type Row struct {
	Owner     string `json:"owner"`
	Score     int    `json:"score"`
	Stars     int    `json:"stars"`
	ElapsedMs int    `json:"elapsedMs"`
}

// Leaderboard returns the best play per owner for level, highest score first,
// ties broken by time then by who got there first. date filters to one day
// when non-empty. The default limit is 20.
func (s *Store) Leaderboard(ctx context.Context, level int, date string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT owner, score, stars, elapsed_ms FROM (
            SELECT owner, score, stars, elapsed_ms, created_at, id,
                   ROW_NUMBER() OVER (
                       PARTITION BY owner
                       ORDER BY score DESC, elapsed_ms ASC, id ASC
                   ) AS rn
            FROM level_results
            WHERE level=? AND (?='' OR date=?)
        )
        WHERE rn=1
        ORDER BY score DESC, elapsed_ms ASC, created_at ASC, id ASC
        LIMIT ?`, level, date, date, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0, limit)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Owner, &r.Score, &r.Stars, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Rename moves every result of one owner to another (guest sign-in).
func (s *Store) Rename(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE level_results SET owner=? WHERE owner=?`, to, from); err != nil {
		return fmt.Errorf("rename results: %w", err)
	}
	return nil
}
