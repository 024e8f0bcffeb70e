// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the Yahtzee backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/metrics", POST /rest/v1/score.
//   - Game endpoints (optional auth): /game/*, advice and distributions.
//   - Daily Challenge leaderboard: /daily/leaderboard.
//   - Auth + history endpoints: /auth/*, /scores/*.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token is present;
//     routes still run for guests.
//   - Every error body is {"error": code, "message": text}.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/config"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/outcome"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/results"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/session"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/store"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config  *config.Config
	Store   store.Store
	DB      *sql.DB
	Scorer  game.ScoringOracle
	Outcome outcome.Oracle // nil disables advice

	// NewRoller supplies dice for normal games. Defaults to game.RandomRoller.
	NewRoller func() game.Roller
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server bundles router, live sessions, and DB-backed stores.
type Server struct {
	r       *chi.Mux
	cfg     *config.Config
	store   store.Store
	db      *sql.DB
	results *results.Store
	scorer  game.ScoringOracle
	outcome outcome.Oracle

	newRoller func() game.Roller
	now       func() time.Time

	dailyMu  sync.Mutex
	dailyIDs map[string]string // userID|date → live daily session ID
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:         chi.NewRouter(),
		cfg:       d.Config,
		store:     d.Store,
		db:        d.DB,
		results:   results.NewStore(d.DB),
		scorer:    d.Scorer,
		outcome:   d.Outcome,
		newRoller: d.NewRoller,
		now:       d.Now,
		dailyIDs:  make(map[string]string),
	}
	if s.newRoller == nil {
		s.newRoller = game.RandomRoller
	}
	if s.now == nil {
		s.now = time.Now
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(accessLog)
	s.r.Use(chimw.Recoverer)
	// advice may wait on the oracle for up to AdviceWait
	s.r.Use(chimw.Timeout(s.cfg.AdviceWait + 5*time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "yahtzee-go",
			"advice":  s.outcome != nil,
			"endpoints": []string{
				"/health", "/metrics", "POST /game/new", "GET /game/{id}", "POST /game/{id}/roll",
				"POST /game/{id}/hold", "POST /game/{id}/fill", "GET /game/{id}/advice",
				"POST /rest/v1/score", "/auth/*", "/scores/*", "/daily/leaderboard",
			},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	s.r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.r.Post("/rest/v1/score", s.handleScore)

	// Game endpoints: OPTIONAL AUTH (guests can play)
	s.r.With(s.withOptionalAuth()).Route("/game", s.mountGame)

	// Daily Challenge
	s.r.Get("/daily/leaderboard", s.handleDailyLeaderboard)

	// Auth + history
	s.mountAuthRoutes()
	s.mountScores()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 10 * time.Second}
	return srv.ListenAndServe()
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ev := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

// ------------------------------- responses ---------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}

// writeErr maps domain errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrDieIndex), errors.Is(err, game.ErrBoxIndex):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, game.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, game.ErrScoring):
		status, code = http.StatusBadGateway, "scoring_failed"
	case errors.Is(err, outcome.ErrContractViolation):
		status, code = http.StatusBadGateway, "contract_violation"
	case errors.Is(err, outcome.ErrOracle):
		status, code = http.StatusBadGateway, "oracle_failed"
	case errors.Is(err, outcome.ErrCriterion):
		status, code = http.StatusBadRequest, "invalid_criterion"
	case errors.Is(err, outcome.ErrNoChoices):
		status, code = http.StatusConflict, "no_advice"
	case errors.Is(err, outcome.ErrStale):
		status, code = http.StatusConflict, "stale"
	case errors.Is(err, session.ErrAdviceDisabled):
		status, code = http.StatusServiceUnavailable, "advice_disabled"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

// decodeJSON reads a JSON body; an empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
