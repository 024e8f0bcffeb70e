// apps/go-server/internal/httpserver/routes_game.go
//
// HTTP routes for playing a game and asking the advisor.
//   - POST /game/new                 → start a game ({"mode":"normal"|"daily"})
//   - GET  /game/{id}                → current state
//   - POST /game/{id}/roll           → roll unheld dice
//   - POST /game/{id}/hold           → toggle a die ({"die":0..4})
//   - POST /game/{id}/fill           → score the roll in a box ({"box":8} or {"box":"full-house"})
//   - PUT  /game/{id}/criterion      → {"kind":"expected-value"|"high-score","scoreToBeat":n}
//   - GET  /game/{id}/advice         → best hold / fill and the current distribution
//   - GET  /game/{id}/distribution   → ?box= distribution for filling one box
//
// Every mutating route answers with the new state.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/outcome"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/results"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/scoring"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/session"
)

type ctxSessionKey struct{}

func (s *Server) mountGame(r chi.Router) {
	r.Post("/new", s.handleNewGame)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(s.loadSession)
		r.Get("/", s.handleState)
		r.Post("/roll", s.handleRoll)
		r.Post("/hold", s.handleHold)
		r.Post("/fill", s.handleFill)
		r.Put("/criterion", s.handleCriterion)
		r.Get("/advice", s.handleAdvice)
		r.Get("/distribution", s.handleDistribution)
	})
}

// loadSession resolves {id} into a live session.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(ctxSessionKey{}).(*session.Session)
	return sess
}

// newSession builds a session wired to the server's oracles.
func (s *Server) newSession(mode session.Mode, date, playerID string, roller game.Roller) *session.Session {
	return session.New(session.Options{
		Mode:     mode,
		Date:     date,
		PlayerID: playerID,
		Roller:   roller,
		Scorer:   s.scorer,
		Outcome:  s.outcome,
		Logger:   log.Logger,
	})
}

// ------------------------------- /game/new ---------------------------------

type newGameReq struct {
	Mode session.Mode `json:"mode"`
}

type newGameRes struct {
	GameID string        `json:"gameId"`
	State  session.State `json:"state"`
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}

	var sess *session.Session
	switch req.Mode {
	case "", session.ModeNormal:
		sess = s.newSession(session.ModeNormal, "", userID(r), s.newRoller())
		if err := s.store.Save(r.Context(), sess); err != nil {
			log.Error().Err(err).Msg("save session")
			writeError(w, http.StatusInternalServerError, "save_failed", err.Error())
			return
		}
	case session.ModeDaily:
		var err error
		if sess, err = s.dailySession(r); err != nil {
			if errors.Is(err, errAlreadyPlayed) {
				writeError(w, http.StatusConflict, "already_played", err.Error())
				return
			}
			writeErr(w, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "bad_mode", fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}

	writeJSON(w, http.StatusOK, newGameRes{GameID: sess.ID, State: sess.State()})
}

// ------------------------------- actions -----------------------------------

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).State())
}

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.Roll(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

type holdReq struct {
	Die *int `json:"die"`
}

func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	var req holdReq
	if err := decodeJSON(r, &req); err != nil || req.Die == nil {
		writeError(w, http.StatusBadRequest, "bad_json", `expected {"die": 0-4}`)
		return
	}
	sess := sessionFrom(r)
	if err := sess.Hold(r.Context(), *req.Die); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

type fillReq struct {
	Box json.RawMessage `json:"box"`
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req fillReq
	if err := decodeJSON(r, &req); err != nil || len(req.Box) == 0 {
		writeError(w, http.StatusBadRequest, "bad_json", `expected {"box": index or name}`)
		return
	}
	box, err := parseBoxJSON(req.Box)
	if err != nil {
		writeErr(w, err)
		return
	}

	sess := sessionFrom(r)
	if err := sess.Fill(r.Context(), box); err != nil {
		writeErr(w, err)
		return
	}
	st := sess.State()
	if sum, ok := sess.TakeSummary(); ok {
		s.recordResult(r.Context(), sum)
		s.forget(r.Context(), sum)
	}
	writeJSON(w, http.StatusOK, st)
}

// forget drops a finished session. Its result is already recorded.
func (s *Server) forget(ctx context.Context, sum session.Summary) {
	if err := s.store.Delete(ctx, sum.SessionID); err != nil {
		log.Warn().Err(err).Str("session", sum.SessionID).Msg("delete session")
	}
	if sum.Mode == session.ModeDaily && sum.PlayerID != "" {
		s.dailyMu.Lock()
		delete(s.dailyIDs, dailyKey(sum.PlayerID, sum.Date))
		s.dailyMu.Unlock()
	}
}

// parseBoxJSON accepts 8, "8" or "full-house".
func parseBoxJSON(raw json.RawMessage) (game.Box, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return game.ParseBox(name)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", game.ErrBoxIndex, raw)
	}
	return game.ParseBox(strconv.Itoa(n))
}

// recordResult persists a finished game; failures are logged, not surfaced.
func (s *Server) recordResult(ctx context.Context, sum session.Summary) {
	ok, err := s.results.Record(ctx, results.Result{
		SessionID:    sum.SessionID,
		UserID:       sum.PlayerID,
		Mode:         string(sum.Mode),
		Date:         sum.Date,
		Score:        sum.Score,
		UpperBonus:   sum.UpperHalfBonus,
		YahtzeeBonus: sum.YahtzeeBonus,
		StartedAt:    sum.StartedAt,
		FinishedAt:   sum.FinishedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("session", sum.SessionID).Msg("record result")
		return
	}
	if !ok {
		log.Info().Str("session", sum.SessionID).Msg("result not ranked (duplicate)")
	}
}

// ------------------------------- advice ------------------------------------

func (s *Server) handleCriterion(w http.ResponseWriter, r *http.Request) {
	var cr outcome.Criterion
	if err := decodeJSON(r, &cr); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	sess := sessionFrom(r)
	if err := sess.SetCriterion(cr); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AdviceWait)
	defer cancel()
	adv, err := sessionFrom(r).Advice(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adv)
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	box, err := game.ParseBox(r.URL.Query().Get("box"))
	if err != nil {
		writeErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AdviceWait)
	defer cancel()
	bd, err := sessionFrom(r).Distribution(ctx, box)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bd)
}

// ------------------------------ /rest/v1/score -----------------------------

type scoreReq struct {
	Box  int               `json:"box"`
	Dice [game.NumDice]int `json:"dice"`
}

type scoreRes struct {
	Score int
}

// handleScore exposes the configured ScoringOracle over the analysis-server wire format.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	score, err := s.scorer.Score(r.Context(), game.Box(req.Box), req.Dice)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "scoring_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scoreRes{Score: score})
}
