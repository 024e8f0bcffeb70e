package results

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/yahtzee/apps/go-server/assets"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	migrations, err := assets.Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for _, m := range migrations {
		_, err := db.Exec(m.SQL)
		require.NoError(t, err, m.Name)
	}
	for _, u := range [][2]string{{"u1", "alice"}, {"u2", "bob"}} {
		_, err := db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
			u[0], u[1], "x", time.Now().UTC().Format(time.RFC3339))
		require.NoError(t, err)
	}
	return NewStore(db), db
}

func result(session, user, mode, date string, score int, took time.Duration) Result {
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return Result{
		SessionID: session, UserID: user, Mode: mode, Date: date, Score: score,
		StartedAt: start, FinishedAt: start.Add(took),
	}
}

func TestRecordAndTop(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, r := range []Result{
		result("s1", "u1", "normal", "", 210, time.Minute),
		result("s2", "u2", "normal", "", 305, time.Minute),
		result("s3", "", "normal", "", 250, time.Minute),
		result("s4", "u1", "daily", "2026-10-18", 180, time.Minute),
	} {
		ok, err := s.Record(ctx, r)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := s.Record(ctx, result("s1", "u1", "normal", "", 999, time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "a session is recorded once")

	top, err := s.Top(ctx, "normal", 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"bob", "guest", "alice"}, []string{top[0].Username, top[1].Username, top[2].Username})
	assert.Equal(t, int64(60000), top[0].ElapsedMs)

	all, err := s.Top(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mine, err := s.ForPlayer(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestDailyLeaderboard(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	day := "2026-10-18"

	for _, r := range []Result{
		result("a", "u1", "daily", day, 200, 5*time.Minute),
		result("b", "u2", "daily", day, 200, 3*time.Minute),
		result("c", "", "daily", day, 400, time.Minute),
		result("d", "u1", "daily", "2026-10-17", 300, time.Minute),
	} {
		_, err := s.Record(ctx, r)
		require.NoError(t, err)
	}

	ok, err := s.Record(ctx, result("e", "u1", "daily", day, 350, time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second daily game of the day is not ranked")

	played, err := s.PlayedDaily(ctx, "u1", day)
	require.NoError(t, err)
	assert.True(t, played)
	played, err = s.PlayedDaily(ctx, "u2", "2026-10-17")
	require.NoError(t, err)
	assert.False(t, played)

	lb, err := s.DailyLeaderboard(ctx, day, 20)
	require.NoError(t, err)
	require.Len(t, lb, 2)
	assert.Equal(t, "bob", lb[0].Username, "ties go to the faster finish")
	assert.Equal(t, "alice", lb[1].Username)
}
