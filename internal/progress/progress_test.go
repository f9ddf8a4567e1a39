package progress

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/robalobadob/puzzlequest/assets"
	"github.com/robalobadob/puzzlequest/internal/db"
	"github.com/robalobadob/puzzlequest/internal/kv"
	"github.com/robalobadob/puzzlequest/internal/session"
)

func TestFirstRunDefaults(t *testing.T) {
	ctx := context.Background()
	r := For(kv.NewMemory(), "guest")

	p1, err := r.LoadProgress(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !p1.Unlocked || p1.HighScore != 0 || p1.Stars != 0 {
		t.Fatalf("level 1 = %+v, want unlocked and empty", p1)
	}
	p2, _ := r.LoadProgress(ctx, 2)
	if p2.Unlocked {
		t.Fatal("level 2 unlocked on first run")
	}
	s, _ := r.Settings(ctx)
	if !s.SoundEnabled || !s.MusicEnabled {
		t.Fatalf("settings=%+v, want both on", s)
	}
}

func TestSaveUsesObservedKeys(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	r := For(store, "p")

	if err := r.SaveProgress(ctx, 1, session.LevelProgress{Level: 1, Unlocked: true, HighScore: 290}); err != nil {
		t.Fatal(err)
	}
	if err := r.SaveProgress(ctx, 2, session.LevelProgress{Level: 2, Unlocked: true}); err != nil {
		t.Fatal(err)
	}
	all, _ := store.All(ctx, "p")
	want := map[string]int{"Level_1_Score": 290, "Level_1_Stars": 0, "Level_2_Score": 0, "Level_2_Stars": 0, "UnlockedLevel": 2}
	for k, v := range want {
		if all[k] != v {
			t.Errorf("%s=%d, want %d", k, all[k], v)
		}
	}

	// saving an earlier level never moves the unlock marker back
	if err := r.SaveProgress(ctx, 1, session.LevelProgress{Level: 1, Unlocked: true, HighScore: 300}); err != nil {
		t.Fatal(err)
	}
	if n, _ := r.Unlocked(ctx); n != 2 {
		t.Fatalf("UnlockedLevel=%d, want 2", n)
	}

	list, err := r.All(ctx, 3)
	if err != nil || len(list) != 3 {
		t.Fatalf("All = %v, %v", list, err)
	}
	if !list[1].Unlocked || list[2].Unlocked {
		t.Fatalf("unlock flags = %+v", list)
	}
}

func TestSettingsAndReset(t *testing.T) {
	ctx := context.Background()
	r := For(kv.NewMemory(), "p")
	if err := r.SaveSettings(ctx, Settings{SoundEnabled: false, MusicEnabled: true}); err != nil {
		t.Fatal(err)
	}
	if s, _ := r.Settings(ctx); s.SoundEnabled || !s.MusicEnabled {
		t.Fatalf("settings=%+v", s)
	}
	if err := r.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if s, _ := r.Settings(ctx); !s.SoundEnabled {
		t.Fatal("reset kept settings")
	}
}

func TestClaimKeepsBest(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	guest := For(store, "anon")
	user := For(store, "user")

	_ = guest.SaveProgress(ctx, 1, session.LevelProgress{Unlocked: true, HighScore: 500, Stars: 1})
	_ = guest.SaveProgress(ctx, 2, session.LevelProgress{Unlocked: true, HighScore: 100})
	_ = guest.SaveSettings(ctx, Settings{})
	_ = user.SaveProgress(ctx, 1, session.LevelProgress{Unlocked: true, HighScore: 800, Stars: 2})
	_ = user.SaveSettings(ctx, Settings{SoundEnabled: true, MusicEnabled: true})

	if err := user.Claim(ctx, "anon"); err != nil {
		t.Fatal(err)
	}
	p1, _ := user.LoadProgress(ctx, 1)
	p2, _ := user.LoadProgress(ctx, 2)
	if p1.HighScore != 800 || p1.Stars != 2 || p2.HighScore != 100 || !p2.Unlocked {
		t.Fatalf("after claim: %+v %+v", p1, p2)
	}
	if s, _ := user.Settings(ctx); !s.SoundEnabled {
		t.Fatal("claim overwrote the user's own settings")
	}
	if left, _ := store.All(ctx, "anon"); len(left) != 0 {
		t.Fatalf("guest records left behind: %v", left)
	}
}

func TestClaimFailureLeavesBothOwnersUntouched(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(filepath.Join(t.TempDir(), "claim.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.Migrate(ctx, conn, assets.Migrations(), zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	store := kv.NewSQLite(conn)
	guest := For(store, "anon")
	user := For(store, "user")

	_ = guest.SaveProgress(ctx, 1, session.LevelProgress{Unlocked: true, HighScore: 500, Stars: 1})
	_ = guest.SaveProgress(ctx, 2, session.LevelProgress{Unlocked: true, HighScore: 100})
	before, _ := store.All(ctx, "anon")

	// Fail the merge on one of the guest's keys.
	if _, err := conn.ExecContext(ctx, `
        CREATE TRIGGER no_level_2 BEFORE INSERT ON kv
        WHEN NEW.owner = 'user' AND NEW.key = 'Level_2_Score'
        BEGIN SELECT RAISE(ABORT, 'disk full'); END`); err != nil {
		t.Fatal(err)
	}
	if err := user.Claim(ctx, "anon"); err == nil {
		t.Fatal("expected claim to fail")
	}
	if mine, _ := store.All(ctx, "user"); len(mine) != 0 {
		t.Fatalf("partial claim written: %v", mine)
	}
	if left, _ := store.All(ctx, "anon"); len(left) != len(before) {
		t.Fatalf("guest records = %v, want %v", left, before)
	}

	if _, err := conn.ExecContext(ctx, `DROP TRIGGER no_level_2`); err != nil {
		t.Fatal(err)
	}
	if err := user.Claim(ctx, "anon"); err != nil {
		t.Fatal(err)
	}
	if p2, _ := user.LoadProgress(ctx, 2); p2.HighScore != 100 {
		t.Fatalf("level 2 after retry = %+v", p2)
	}
}
