// apps/go-server/internal/httpserver/routes_daily.go
//
// The "Daily Challenge" mode.
//   - POST /game/new {"mode":"daily"} → start (or resume) today's daily game
//   - GET  /daily/leaderboard         → top results for today (or ?date=YYYY-MM-DD)
//
// Everyone draws from the same seeded face stream on the same UTC date (HMAC of salt + date).
// Signed-in players have one ranked game per day; an unfinished one is resumed.
// Guests may play but are never ranked.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/daily"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/results"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/session"
)

var errAlreadyPlayed = errors.New("today's daily challenge has already been played")

// dailySession creates or reuses today's daily session for the caller.
func (s *Server) dailySession(r *http.Request) (*session.Session, error) {
	ctx := r.Context()
	now := s.now()
	date := daily.DateKey(now)
	uid := userID(r)

	if uid == "" {
		sess := s.newSession(session.ModeDaily, date, "", daily.Roller(now, s.cfg.DailySalt))
		return sess, s.store.Save(ctx, sess)
	}

	played, err := s.results.PlayedDaily(ctx, uid, date)
	if err != nil {
		return nil, err
	}
	if played {
		return nil, errAlreadyPlayed
	}

	key := dailyKey(uid, date)
	s.dailyMu.Lock()
	defer s.dailyMu.Unlock()
	s.pruneDaily(ctx, date)
	if id, ok := s.dailyIDs[key]; ok {
		if sess, err := s.store.Get(ctx, id); err == nil {
			return sess, nil
		}
	}
	sess := s.newSession(session.ModeDaily, date, uid, daily.Roller(now, s.cfg.DailySalt))
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.dailyIDs[key] = sess.ID
	log.Info().Str("user", uid).Str("date", date).Str("session", sess.ID).Msg("daily game started")
	return sess, nil
}

func dailyKey(uid, date string) string { return uid + "|" + date }

// pruneDaily drops unfinished daily sessions from earlier dates; they can no
// longer be resumed. Callers hold dailyMu.
func (s *Server) pruneDaily(ctx context.Context, today string) {
	for key, id := range s.dailyIDs {
		if strings.HasSuffix(key, "|"+today) {
			continue
		}
		_ = s.store.Delete(ctx, id)
		delete(s.dailyIDs, key)
	}
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []results.Row `json:"top"`
}

func (s *Server) handleDailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := daily.DateKey(s.now())
	if q := r.URL.Query().Get("date"); q != "" {
		var err error
		if date, err = daily.ParseDateKey(q); err != nil {
			writeError(w, http.StatusBadRequest, "bad_date", err.Error())
			return
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.results.DailyLeaderboard(r.Context(), date, limit)
	if err != nil {
		log.Error().Err(err).Msg("daily leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error", "server error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
