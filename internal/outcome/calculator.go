// apps/go-server/internal/outcome/calculator.go
//
// Decision engine over outcome-oracle data.
// Responsibilities:
//   - Cache the oracle's choices for one decision point (turn, phase).
//   - Issue at most one oracle request per decision point; hold toggles never refetch.
//   - Drop responses that arrive after the decision point has moved on, and refuse
//     refreshes for a decision point older than the latest one seen.
//   - Rank cached choices under the active criterion and shift distributions for display.
//
// Notes:
//   - Oracle requests run on their own goroutine; mu guards everything below it.
//   - Ranking keeps the later of two equal scores (">=" scan).
package outcome

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/metrics"
)

// Calculator caches and ranks oracle choices for one game.
type Calculator struct {
	oracle Oracle
	log    zerolog.Logger

	mu        sync.Mutex
	criterion Criterion
	cached    bool        // holds/fills are valid for key
	holds     HoldChoices // nil at ReadyToFill
	fills     FillChoices // at hold phases, only if the oracle scored filling early
	key       game.Key
	latest    game.Key // newest key passed to Refresh; never moves backwards
	inflight  *request
}

// request is one outstanding oracle call and everyone waiting on it.
type request struct {
	key     game.Key
	waiters []func(error)
}

// NewCalculator returns a Calculator ranking by expected value.
// A nil oracle is allowed; every refresh then fails with ErrOracle.
func NewCalculator(oracle Oracle, logger zerolog.Logger) *Calculator {
	return &Calculator{
		oracle:    oracle,
		log:       logger,
		criterion: Criterion{Kind: ExpectedValue},
	}
}

// Criterion returns the active ranking rule.
func (c *Calculator) Criterion() Criterion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criterion
}

// SetCriterion changes the ranking rule. Cached choices stay valid.
func (c *Calculator) SetCriterion(cr Criterion) error {
	if err := cr.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.criterion = cr
	c.mu.Unlock()
	return nil
}

// Refresh makes sure the cache holds choices for key.
//
// A key older than one already seen is refused with ErrStale and changes nothing.
// Otherwise it is a no-op (done runs immediately) at Begin, while a fill is being
// scored, or when the cache already matches key. If a request for key is already in
// flight, done joins it. Otherwise a request is issued in the background. done, if
// non-nil, runs exactly once: with nil on success, ErrStale if key was superseded
// before the response arrived, or an ErrOracle-wrapped error.
func (c *Calculator) Refresh(ctx context.Context, snap game.Snapshot, key game.Key, done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	c.mu.Lock()
	if key.Before(c.latest) {
		c.mu.Unlock()
		done(ErrStale)
		return
	}
	c.latest = key
	if key.Phase == game.Begin || key.Phase == game.AwaitingFill {
		c.mu.Unlock()
		done(nil)
		return
	}
	if c.cached && c.key == key {
		c.mu.Unlock()
		done(nil)
		return
	}
	if c.inflight != nil && c.inflight.key == key {
		c.inflight.waiters = append(c.inflight.waiters, done)
		c.mu.Unlock()
		return
	}
	req := &request{key: key, waiters: []func(error){done}}
	c.inflight = req
	oracle := c.oracle
	c.mu.Unlock()

	if oracle == nil {
		c.finish(req, nil, errors.New("no outcome oracle configured"))
		return
	}

	c.log.Debug().Int("turn", key.Turn).Stringer("phase", key.Phase).Msg("requesting outcome distribution")
	// The request outlives whichever caller triggered it.
	bg := context.WithoutCancel(ctx)
	go func() {
		choices, err := oracle.Distribution(bg, snap)
		c.finish(req, choices, err)
	}()
}

// Update is Refresh that waits for the result.
func (c *Calculator) Update(ctx context.Context, snap game.Snapshot, key game.Key) error {
	ch := make(chan error, 1)
	c.Refresh(ctx, snap, key, func(err error) { ch <- err })
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Calculator) finish(req *request, choices Choices, err error) {
	if err == nil {
		err = validate(req.key, choices)
	}
	if err != nil && !errors.Is(err, ErrOracle) {
		err = fmt.Errorf("%w: %w", ErrOracle, err)
	}

	c.mu.Lock()
	if c.inflight == req {
		c.inflight = nil
	}
	switch {
	case err != nil:
		c.log.Warn().Err(err).Int("turn", req.key.Turn).Stringer("phase", req.key.Phase).Msg("outcome distribution failed")
	case req.key != c.latest:
		metrics.StaleResponses.Inc()
		c.log.Debug().Int("turn", req.key.Turn).Stringer("phase", req.key.Phase).Msg("dropping stale outcome distribution")
		err = ErrStale
	default:
		c.holds, c.fills = split(choices)
		c.cached = true
		c.key = req.key
	}
	waiters := req.waiters
	c.mu.Unlock()

	for _, w := range waiters {
		w(err)
	}
}

// Current reports whether the cache holds choices for key.
func (c *Calculator) Current(key game.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached && c.key == key
}

// CurrentHoldChoice finds the cached hold choice whose dice equal held (sorted faces).
func (c *Calculator) CurrentHoldChoice(held []int) (HoldChoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.holds) == 0 {
		return HoldChoice{}, ErrNoChoices
	}
	for _, hc := range c.holds {
		if slices.Equal(hc.HeldDice, held) {
			return hc, nil
		}
	}
	return HoldChoice{}, fmt.Errorf("%w: no hold choice for held dice %v", ErrContractViolation, held)
}

// BestHoldChoice returns the highest-ranked cached hold choice.
func (c *Calculator) BestHoldChoice() (HoldChoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.holds) == 0 {
		return HoldChoice{}, ErrNoChoices
	}
	cr := c.criterion
	return best(c.holds, func(hc HoldChoice) float64 { return cr.Score(hc.Outcome) }), nil
}

// BestFillChoice returns the highest-ranked cached fill choice. Before the third
// roll there is one only if the oracle scored filling early.
func (c *Calculator) BestFillChoice() (FillChoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fills) == 0 {
		return FillChoice{}, ErrNoChoices
	}
	cr := c.criterion
	return best(c.fills, func(fc FillChoice) float64 { return cr.Score(fc.Outcome) }), nil
}

// FillChoiceFor returns the cached fill choice for box.
func (c *Calculator) FillChoiceFor(box game.Box) (FillChoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fills) == 0 {
		return FillChoice{}, ErrNoChoices
	}
	for _, fc := range c.fills {
		if fc.BoxFilled == box {
			return fc, nil
		}
	}
	return FillChoice{}, fmt.Errorf("%w: %s", ErrNoChoices, box)
}

// best scans items in order and keeps the later item on ties.
// items must be non-empty.
func best[T any](items []T, score func(T) float64) T {
	out := items[0]
	top := math.Inf(-1)
	for _, it := range items {
		if s := score(it); s >= top {
			out, top = it, s
		}
	}
	return out
}

// DisplayDistribution shifts a distribution so index 0 is the current grand total:
// grandTotal leading entries of 1 followed by the full distribution.
func DisplayDistribution(o Outcome, grandTotal int) []float64 {
	if grandTotal < 0 {
		grandTotal = 0
	}
	out := make([]float64, grandTotal+len(o.FinalScoreDistribution))
	for i := 0; i < grandTotal; i++ {
		out[i] = 1
	}
	copy(out[grandTotal:], o.FinalScoreDistribution)
	return out
}

// split unpacks a validated response into the hold and fill lists.
func split(choices Choices) (HoldChoices, FillChoices) {
	switch cs := choices.(type) {
	case HoldChoices:
		return cs, nil
	case FillChoices:
		return nil, cs
	case HoldPhaseChoices:
		return cs.Holds, cs.Fills
	}
	return nil, nil
}

// validate checks an oracle response against the decision point it was requested for.
func validate(key game.Key, choices Choices) error {
	wantHolds := key.Phase < game.ReadyToFill
	switch cs := choices.(type) {
	case HoldChoices:
		if !wantHolds {
			return fmt.Errorf("%w: hold choices returned at %s", ErrOracle, key.Phase)
		}
		return validateHolds(cs)
	case HoldPhaseChoices:
		if !wantHolds {
			return fmt.Errorf("%w: hold choices returned at %s", ErrOracle, key.Phase)
		}
		if err := validateHolds(cs.Holds); err != nil {
			return err
		}
		if len(cs.Fills) == 0 {
			return nil
		}
		return validateFills(cs.Fills)
	case FillChoices:
		if wantHolds {
			return fmt.Errorf("%w: fill choices returned at %s", ErrOracle, key.Phase)
		}
		return validateFills(cs)
	}
	return fmt.Errorf("%w: empty response", ErrOracle)
}

func validateHolds(cs HoldChoices) error {
	if len(cs) == 0 {
		return fmt.Errorf("%w: empty hold choices", ErrOracle)
	}
	for _, hc := range cs {
		if len(hc.HeldDice) > game.NumDice || !slices.IsSorted(hc.HeldDice) {
			return fmt.Errorf("%w: bad held dice %v", ErrOracle, hc.HeldDice)
		}
		for _, d := range hc.HeldDice {
			if d < 1 || d > game.NumSides {
				return fmt.Errorf("%w: bad held dice %v", ErrOracle, hc.HeldDice)
			}
		}
		if err := validateOutcome(hc.Outcome); err != nil {
			return err
		}
	}
	return nil
}

func validateFills(cs FillChoices) error {
	if len(cs) == 0 {
		return fmt.Errorf("%w: empty fill choices", ErrOracle)
	}
	for _, fc := range cs {
		if !fc.BoxFilled.Valid() {
			return fmt.Errorf("%w: bad box %d", ErrOracle, int(fc.BoxFilled))
		}
		if err := validateOutcome(fc.Outcome); err != nil {
			return err
		}
	}
	return nil
}

func validateOutcome(o Outcome) error {
	if len(o.FinalScoreDistribution) != DistributionLen {
		return fmt.Errorf("%w: distribution has %d entries, want %d", ErrOracle, len(o.FinalScoreDistribution), DistributionLen)
	}
	if math.IsNaN(o.ExpectedFinalScore) {
		return fmt.Errorf("%w: expected score is NaN", ErrOracle)
	}
	for _, p := range o.FinalScoreDistribution {
		if math.IsNaN(p) || p < 0 {
			return fmt.Errorf("%w: invalid probability %v", ErrOracle, p)
		}
	}
	return nil
}
