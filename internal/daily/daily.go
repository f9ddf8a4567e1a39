// internal/daily/daily.go
//
// Featured level of the day. Every player sees the same level on the same
// UTC date; the choice is derived from HMAC(salt, date) so it cannot be
// predicted without the salt.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// LevelIndex returns a deterministic level number in 1..levels for date.
// It returns 0 when there are no levels.
func LevelIndex(date time.Time, salt string, levels int) int {
	if levels <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for the modulus
	n := binary.BigEndian.Uint64(sum[:8])
	return int(n%uint64(levels)) + 1
}

// Featured is the level of the day as shown to players.
type Featured struct {
	Date  string `json:"date"`
	Level int    `json:"level"`
}

// Today picks the featured level for now.
func Today(now time.Time, salt string, levels int) Featured {
	return Featured{Date: DateKey(now), Level: LevelIndex(now, salt, levels)}
}
