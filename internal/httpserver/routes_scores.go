package httpserver

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// mountScores registers the finished-game history routes.
//   - GET /scores/top?mode=normal|daily&limit=n
//   - GET /scores/mine (auth)
func (s *Server) mountScores() {
	s.r.Get("/scores/top", func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("mode")
		if mode != "" && mode != "normal" && mode != "daily" {
			writeError(w, http.StatusBadRequest, "bad_mode", "mode must be normal or daily")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := s.results.Top(r.Context(), mode, limit)
		if err != nil {
			log.Error().Err(err).Msg("top scores")
			writeError(w, http.StatusInternalServerError, "db_error", "server error")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	s.r.With(s.requireAuth()).Get("/scores/mine", func(w http.ResponseWriter, r *http.Request) {
		me := currentUser(r)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := s.results.ForPlayer(r.Context(), me.ID, limit)
		if err != nil {
			log.Error().Err(err).Str("user", me.ID).Msg("my scores")
			writeError(w, http.StatusInternalServerError, "db_error", "server error")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})
}
