// Package daily derives the shared face stream of the daily challenge.
// Every daily game on the same UTC date draws from the same seeded stream, one face
// per unheld die, so players who hold the same dice see the same rolls.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
)

const layout = "2006-01-02"

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(layout)
}

// ParseDateKey validates a YYYY-MM-DD key.
func ParseDateKey(s string) (string, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return DateKey(t), nil
}

// Seed returns HMAC-SHA256(salt, YYYY-MM-DD) for the date of t.
func Seed(t time.Time, salt string) [32]byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(t)))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Roller returns the deterministic dice source for the date of t.
func Roller(t time.Time, salt string) game.Roller {
	return game.SeededRoller(Seed(t, salt))
}
