// apps/go-server/internal/session/session.go
//
// One player's game plus the advice engine attached to it.
// Responsibilities:
//   - Serialise turn actions (roll, hold, fill) coming from concurrent HTTP requests.
//   - Score fills through the ScoringOracle without holding the lock during the call.
//   - Keep the outcome Calculator pointed at the current decision point.
//   - Produce read models: state, advice, per-box distribution.
//
// Notes:
//   - While a fill is being scored the game sits in AwaitingFill, so any concurrent
//     action is rejected by the game itself.

package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/metrics"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/outcome"
)

// ErrAdviceDisabled is returned by advice queries when no outcome oracle is configured.
var ErrAdviceDisabled = errors.New("advice is not available on this server")

// Mode is how a session's dice are generated.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeDaily  Mode = "daily"
)

// Options configures New. Roller and Scorer are required.
type Options struct {
	Mode     Mode
	Date     string // daily challenge date, YYYY-MM-DD
	PlayerID string // empty for guests

	Roller  game.Roller
	Scorer  game.ScoringOracle
	Outcome outcome.Oracle // nil disables advice
	Logger  zerolog.Logger
}

// Session is a live game.
type Session struct {
	ID        string
	Mode      Mode
	Date      string
	PlayerID  string
	StartedAt time.Time

	roller game.Roller
	scorer game.ScoringOracle
	calc   *outcome.Calculator // nil when advice is disabled
	log    zerolog.Logger

	mu       sync.Mutex // guards game and finished
	game     *game.Game
	finished bool
}

// New starts a fresh game.
func New(opts Options) *Session {
	if opts.Mode == "" {
		opts.Mode = ModeNormal
	}
	id := uuid.NewString()
	logger := opts.Logger.With().Str("session", id).Str("mode", string(opts.Mode)).Logger()

	s := &Session{
		ID:        id,
		Mode:      opts.Mode,
		Date:      opts.Date,
		PlayerID:  opts.PlayerID,
		StartedAt: time.Now().UTC(),
		roller:    opts.Roller,
		scorer:    opts.Scorer,
		log:       logger,
		game:      game.New(),
	}
	if opts.Outcome != nil {
		s.calc = outcome.NewCalculator(opts.Outcome, logger)
	}
	return s
}

// --------------------------------- actions ---------------------------------

// Roll rerolls every unheld die.
func (s *Session) Roll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.game.Roll(s.roller)
	s.after(ctx, "roll", err)
	return err
}

// Hold toggles the held flag of die i.
func (s *Session) Hold(ctx context.Context, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.game.Hold(i)
	s.after(ctx, "hold", err)
	return err
}

// Fill scores the current roll in box and starts the next turn.
// The lock is released while the scoring oracle works.
func (s *Session) Fill(ctx context.Context, box game.Box) error {
	s.mu.Lock()
	req, err := s.game.BeginFill(box)
	if err != nil {
		s.after(ctx, "fill", err)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	score, scoreErr := s.scorer.Score(ctx, req.Box, req.Dice)

	s.mu.Lock()
	defer s.mu.Unlock()
	if scoreErr != nil {
		s.game.AbortFill()
		err = fmt.Errorf("%w: %w", game.ErrScoring, scoreErr)
	} else {
		err = s.game.CompleteFill(score)
	}
	s.after(ctx, "fill", err)
	if err == nil {
		s.log.Info().Stringer("box", box).Int("score", score).Int("turn", s.game.Turn).Msg("box filled")
		if s.game.GameOver() {
			metrics.GamesFinished.WithLabelValues(string(s.Mode)).Inc()
			s.log.Info().Int("total", s.game.GrandTotal()).Msg("game finished")
		}
	}
	return err
}

// after records the outcome of an action and, on success, prefetches advice
// for the new decision point. Caller holds s.mu.
func (s *Session) after(ctx context.Context, action string, err error) {
	switch {
	case err == nil:
		metrics.TurnActions.WithLabelValues(action, "ok").Inc()
		if s.calc != nil {
			s.calc.Refresh(ctx, s.game.Snapshot(), s.game.Key(), nil)
		}
	case errors.Is(err, game.ErrInvalidTransition):
		metrics.TurnActions.WithLabelValues(action, "rejected").Inc()
		s.log.Warn().Err(err).Str("action", action).Stringer("phase", s.game.Phase).Msg("action rejected")
	default:
		metrics.TurnActions.WithLabelValues(action, "failed").Inc()
		s.log.Error().Err(err).Str("action", action).Msg("action failed")
	}
}

// SetCriterion changes how advice ranks choices.
func (s *Session) SetCriterion(cr outcome.Criterion) error {
	if s.calc == nil {
		return ErrAdviceDisabled
	}
	return s.calc.SetCriterion(cr)
}

// --------------------------------- results ---------------------------------

// Summary is the final scorecard of a finished game.
type Summary struct {
	SessionID      string
	PlayerID       string
	Mode           Mode
	Date           string
	Score          int
	UpperHalfBonus int
	YahtzeeBonus   int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// TakeSummary returns the final scorecard once the game is over.
// It reports ok only on the first call after the last box is filled.
func (s *Session) TakeSummary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.game.GameOver() || s.finished {
		return Summary{}, false
	}
	s.finished = true
	return Summary{
		SessionID:      s.ID,
		PlayerID:       s.PlayerID,
		Mode:           s.Mode,
		Date:           s.Date,
		Score:          s.game.GrandTotal(),
		UpperHalfBonus: s.game.UpperHalfBonus(),
		YahtzeeBonus:   s.game.YahtzeeBonus,
		StartedAt:      s.StartedAt,
		FinishedAt:     time.Now().UTC(),
	}, true
}

// roundScore is Math.round for the non-negative scores used here.
func roundScore(f float64) int { return int(math.Floor(f + 0.5)) }
