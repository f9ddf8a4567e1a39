// internal/progress/progress.go
//
// Persistent player progress and settings over a kv.Store.
//
// Key layout per owner:
//   Level_{n}_Score   best score of level n
//   Level_{n}_Stars   best star rating of level n
//   UnlockedLevel     highest unlocked level (default 1)
//   SoundEnabled      1/0 (default 1)
//   MusicEnabled      1/0 (default 1)

package progress

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robalobadob/puzzlequest/internal/kv"
	"github.com/robalobadob/puzzlequest/internal/session"
)

const (
	KeyUnlocked = "UnlockedLevel"
	KeySound    = "SoundEnabled"
	KeyMusic    = "MusicEnabled"
)

// ScoreKey and StarsKey name the per-level records.
func ScoreKey(n int) string { return "Level_" + strconv.Itoa(n) + "_Score" }
func StarsKey(n int) string { return "Level_" + strconv.Itoa(n) + "_Stars" }

// Settings are the player's audio toggles.
type Settings struct {
	SoundEnabled bool `json:"soundEnabled"`
	MusicEnabled bool `json:"musicEnabled"`
}

// Repo reads and writes one owner's progress. It implements
// session.ProgressStore.
type Repo struct {
	kv    kv.Store
	owner string
}

// For returns the repository of owner.
func For(store kv.Store, owner string) *Repo {
	return &Repo{kv: store, owner: owner}
}

// Owner returns the owner the repository is scoped to.
func (r *Repo) Owner() string { return r.owner }

// Unlocked returns the highest unlocked level; 1 on first run.
func (r *Repo) Unlocked(ctx context.Context) (int, error) {
	return r.intOr(ctx, KeyUnlocked, 1)
}

// LoadProgress implements session.ProgressStore.
func (r *Repo) LoadProgress(ctx context.Context, n int) (session.LevelProgress, error) {
	unlocked, err := r.Unlocked(ctx)
	if err != nil {
		return session.LevelProgress{}, err
	}
	score, err := r.intOr(ctx, ScoreKey(n), 0)
	if err != nil {
		return session.LevelProgress{}, err
	}
	stars, err := r.intOr(ctx, StarsKey(n), 0)
	if err != nil {
		return session.LevelProgress{}, err
	}
	return session.LevelProgress{Level: n, Unlocked: n >= 1 && n <= unlocked, HighScore: score, Stars: stars}, nil
}

// SaveProgress implements session.ProgressStore. The unlock marker only ever
// moves forward.
func (r *Repo) SaveProgress(ctx context.Context, n int, p session.LevelProgress) error {
	if err := r.kv.Set(ctx, r.owner, ScoreKey(n), p.HighScore); err != nil {
		return err
	}
	if err := r.kv.Set(ctx, r.owner, StarsKey(n), p.Stars); err != nil {
		return err
	}
	if !p.Unlocked {
		return nil
	}
	unlocked, err := r.Unlocked(ctx)
	if err != nil {
		return err
	}
	if n > unlocked {
		return r.kv.Set(ctx, r.owner, KeyUnlocked, n)
	}
	return nil
}

// All returns the records of levels 1..count.
func (r *Repo) All(ctx context.Context, count int) ([]session.LevelProgress, error) {
	out := make([]session.LevelProgress, 0, count)
	for n := 1; n <= count; n++ {
		p, err := r.LoadProgress(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Settings returns the audio toggles; both default to on.
func (r *Repo) Settings(ctx context.Context) (Settings, error) {
	sound, err := r.intOr(ctx, KeySound, 1)
	if err != nil {
		return Settings{}, err
	}
	music, err := r.intOr(ctx, KeyMusic, 1)
	if err != nil {
		return Settings{}, err
	}
	return Settings{SoundEnabled: sound != 0, MusicEnabled: music != 0}, nil
}

// SaveSettings stores both toggles.
func (r *Repo) SaveSettings(ctx context.Context, s Settings) error {
	if err := r.kv.Set(ctx, r.owner, KeySound, boolInt(s.SoundEnabled)); err != nil {
		return err
	}
	return r.kv.Set(ctx, r.owner, KeyMusic, boolInt(s.MusicEnabled))
}

// Reset wipes the owner's progress and settings.
func (r *Repo) Reset(ctx context.Context) error {
	return r.kv.Clear(ctx, r.owner)
}

// Claim folds another owner's records into this one, keeping the better value
// of every key, then clears the other owner. Used when a guest signs in. The
// merge and the clear commit together.
func (r *Repo) Claim(ctx context.Context, from string) error {
	if from == "" || from == r.owner {
		return nil
	}
	err := r.kv.Atomic(ctx, func(tx kv.Store) error {
		theirs, err := tx.All(ctx, from)
		if err != nil || len(theirs) == 0 {
			return err
		}
		mine, err := tx.All(ctx, r.owner)
		if err != nil {
			return err
		}
		for k, v := range theirs {
			if cur, ok := mine[k]; ok && (cur >= v || k == KeySound || k == KeyMusic) {
				continue
			}
			if err := tx.Set(ctx, r.owner, k, v); err != nil {
				return err
			}
		}
		return tx.Clear(ctx, from)
	})
	if err != nil {
		return fmt.Errorf("claim %s: %w", from, err)
	}
	return nil
}

func (r *Repo) intOr(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := r.kv.Get(ctx, r.owner, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
