// apps/go-server/internal/results/store.go
//
// SQLite-backed history of finished games.
// Provides:
//   - Record: insert a finished game (daily games count once per player per date).
//   - Top / ForPlayer: all-time best scores and a player's recent games.
//   - DailyLeaderboard / PlayedDaily: the daily challenge views.

package results

import (
	"context"
	"database/sql"
	"time"
)

const (
	defaultLimit = 20
	// fixed width, so stored timestamps sort as text
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// Result is one finished game.
type Result struct {
	SessionID    string
	UserID       string // empty for guests
	Mode         string // "normal" | "daily"
	Date         string // YYYY-MM-DD, daily games only
	Score        int
	UpperBonus   int
	YahtzeeBonus int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Row is a result as listed by the read queries.
type Row struct {
	Username     string `json:"username"`
	Mode         string `json:"mode"`
	Date         string `json:"date,omitempty"`
	Score        int    `json:"score"`
	UpperBonus   int    `json:"upperBonus"`
	YahtzeeBonus int    `json:"yahtzeeBonus"`
	ElapsedMs    int64  `json:"elapsedMs"`
	FinishedAt   string `json:"finishedAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts r. It reports false when the row was ignored because the
// session was already recorded or the player already has a daily result for r.Date.
func (s *Store) Record(ctx context.Context, r Result) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO results
            (session_id, user_id, mode, date, score, upper_bonus, yahtzee_bonus, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, nullable(r.UserID), r.Mode, nullable(r.Date), r.Score, r.UpperBonus, r.YahtzeeBonus,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PlayedDaily reports whether userID already has a recorded daily game for date.
func (s *Store) PlayedDaily(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM results WHERE mode='daily' AND user_id=? AND date=?`,
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// Top returns the best scores of all time for mode ("" for every mode).
func (s *Store) Top(ctx context.Context, mode string, limit int) ([]Row, error) {
	return s.query(ctx, `
        WHERE (? = '' OR r.mode = ?)
        ORDER BY r.score DESC, r.finished_at ASC
        LIMIT ?`, mode, mode, clamp(limit))
}

// ForPlayer returns a player's most recent games.
func (s *Store) ForPlayer(ctx context.Context, userID string, limit int) ([]Row, error) {
	return s.query(ctx, `
        WHERE r.user_id = ?
        ORDER BY r.finished_at DESC
        LIMIT ?`, userID, clamp(limit))
}

// DailyLeaderboard ranks the daily games of date: score, then fastest finish.
// Guest games are not ranked.
func (s *Store) DailyLeaderboard(ctx context.Context, date string, limit int) ([]Row, error) {
	return s.query(ctx, `
        WHERE r.mode = 'daily' AND r.date = ? AND r.user_id IS NOT NULL
        ORDER BY r.score DESC, (julianday(r.finished_at) - julianday(r.started_at)) ASC, r.created_at ASC
        LIMIT ?`, date, clamp(limit))
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT COALESCE(u.username, 'guest'), r.mode, COALESCE(r.date, ''), r.score,
               r.upper_bonus, r.yahtzee_bonus, r.started_at, r.finished_at
        FROM results r
        LEFT JOIN users u ON u.id = r.user_id`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		var started string
		if err := rows.Scan(&r.Username, &r.Mode, &r.Date, &r.Score, &r.UpperBonus, &r.YahtzeeBonus, &started, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.ElapsedMs = elapsed(started, r.FinishedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func elapsed(started, finished string) int64 {
	a, err1 := time.Parse(timeLayout, started)
	b, err2 := time.Parse(timeLayout, finished)
	if err1 != nil || err2 != nil {
		return 0
	}
	return b.Sub(a).Milliseconds()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func clamp(limit int) int {
	if limit <= 0 || limit > 100 {
		return defaultLimit
	}
	return limit
}
