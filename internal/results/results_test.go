package results

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/robalobadob/puzzlequest/assets"
	"github.com/robalobadob/puzzlequest/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.Migrate(context.Background(), conn, assets.Migrations(), zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	return NewStore(conn)
}

func TestLeaderboardBestPerOwner(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	plays := []Result{
		{Owner: "ann", Level: 1, Score: 290, ElapsedMs: 9000, Date: "2026-10-16"},
		{Owner: "ann", Level: 1, Score: 300, ElapsedMs: 12000, Date: "2026-10-17"},
		{Owner: "bob", Level: 1, Score: 300, ElapsedMs: 8000, Date: "2026-10-17"},
		{Owner: "cat", Level: 1, Score: 100, ElapsedMs: 1000, Date: "2026-10-17"},
		{Owner: "dan", Level: 2, Score: 999, ElapsedMs: 1, Date: "2026-10-17"},
	}
	for _, p := range plays {
		if err := s.Insert(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := s.Leaderboard(ctx, 1, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"bob", "ann", "cat"}
	if len(rows) != len(want) {
		t.Fatalf("rows=%+v", rows)
	}
	for i, w := range want {
		if rows[i].Owner != w {
			t.Fatalf("row %d = %+v, want %s", i, rows[i], w)
		}
	}
	if rows[1].Score != 300 {
		t.Fatalf("ann's best should be 300, got %d", rows[1].Score)
	}

	day, err := s.Leaderboard(ctx, 1, "2026-10-16", 10)
	if err != nil || len(day) != 1 || day[0].Score != 290 {
		t.Fatalf("date filter = %+v, %v", day, err)
	}
}

func TestPlayedOnAndRename(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.Insert(ctx, Result{Owner: "anon", Level: 3, Score: 10, Date: "2026-10-17"})

	if ok, err := s.PlayedOn(ctx, "anon", 3, "2026-10-17"); err != nil || !ok {
		t.Fatalf("PlayedOn = %v, %v", ok, err)
	}
	if err := s.Rename(ctx, "anon", "user"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.PlayedOn(ctx, "anon", 3, "2026-10-17"); ok {
		t.Fatal("result still under the guest id")
	}
	if ok, _ := s.PlayedOn(ctx, "user", 3, "2026-10-17"); !ok {
		t.Fatal("result not moved to the user")
	}
}
