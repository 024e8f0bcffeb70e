package outcome

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
)

func flatDist(v float64) []float64 {
	d := make([]float64, DistributionLen)
	for i := range d {
		d[i] = v
	}
	return d
}

func hold(expected float64, held ...int) HoldChoice {
	if held == nil {
		held = []int{}
	}
	return HoldChoice{HeldDice: held, Outcome: Outcome{ExpectedFinalScore: expected, FinalScoreDistribution: flatDist(0)}}
}

func fill(box game.Box, expected float64) FillChoice {
	return FillChoice{BoxFilled: box, Outcome: Outcome{ExpectedFinalScore: expected, FinalScoreDistribution: flatDist(0)}}
}

// countingOracle answers every request with choices appropriate to the phase.
type countingOracle struct {
	calls atomic.Int32
	holds HoldChoices
	fills FillChoices
}

func (o *countingOracle) Distribution(_ context.Context, snap game.Snapshot) (Choices, error) {
	o.calls.Add(1)
	if snap.Phase == game.ReadyToFill {
		return o.fills, nil
	}
	return o.holds, nil
}

func newOracle() *countingOracle {
	return &countingOracle{
		holds: HoldChoices{hold(200), hold(210, 6, 6)},
		fills: FillChoices{fill(game.Chance, 180), fill(game.Sixes, 190)},
	}
}

func key(turn int, phase game.TurnPhase) (game.Snapshot, game.Key) {
	return game.Snapshot{Phase: phase}, game.Key{Turn: turn, Phase: phase}
}

func TestRefreshSkipsBeginPhase(t *testing.T) {
	o := newOracle()
	c := NewCalculator(o, zerolog.Nop())

	snap, k := key(0, game.Begin)
	require.NoError(t, c.Update(context.Background(), snap, k))
	assert.Equal(t, int32(0), o.calls.Load())
	assert.False(t, c.Current(k))
}

func TestRefreshOncePerDecisionPoint(t *testing.T) {
	o := newOracle()
	c := NewCalculator(o, zerolog.Nop())
	ctx := context.Background()

	snap, k := key(0, game.AfterRoll1)
	for i := 0; i < 5; i++ {
		// e.g. one refresh per hold toggle
		require.NoError(t, c.Update(ctx, snap, k))
	}
	assert.Equal(t, int32(1), o.calls.Load())
	assert.True(t, c.Current(k))

	snap, k = key(0, game.AfterRoll2)
	require.NoError(t, c.Update(ctx, snap, k))
	snap, k = key(0, game.ReadyToFill)
	require.NoError(t, c.Update(ctx, snap, k))
	require.NoError(t, c.Update(ctx, snap, k))
	assert.Equal(t, int32(3), o.calls.Load())

	fc, err := c.BestFillChoice()
	require.NoError(t, err)
	assert.Equal(t, game.Sixes, fc.BoxFilled)
}

func TestRefreshJoinsInflightRequest(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := NewCalculator(OracleFunc(func(context.Context, game.Snapshot) (Choices, error) {
		calls.Add(1)
		<-release
		return HoldChoices{hold(100)}, nil
	}), zerolog.Nop())

	snap, k := key(2, game.AfterRoll1)
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		c.Refresh(context.Background(), snap, k, func(err error) { results <- err })
	}
	close(release)

	for i := 0; i < 3; i++ {
		select {
		case err := <-results:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never completed")
		}
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestStaleResponseIsDropped(t *testing.T) {
	releaseOld := make(chan struct{})
	c := NewCalculator(OracleFunc(func(_ context.Context, snap game.Snapshot) (Choices, error) {
		if snap.Phase == game.AfterRoll1 {
			<-releaseOld
			return HoldChoices{hold(111)}, nil
		}
		return HoldChoices{hold(222)}, nil
	}), zerolog.Nop())
	ctx := context.Background()

	oldSnap, oldKey := key(0, game.AfterRoll1)
	oldDone := make(chan error, 1)
	c.Refresh(ctx, oldSnap, oldKey, func(err error) { oldDone <- err })

	newSnap, newKey := key(0, game.AfterRoll2)
	require.NoError(t, c.Update(ctx, newSnap, newKey))

	close(releaseOld)
	select {
	case err := <-oldDone:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(2 * time.Second):
		t.Fatal("stale request never completed")
	}

	assert.True(t, c.Current(newKey))
	hc, err := c.BestHoldChoice()
	require.NoError(t, err)
	assert.Equal(t, 222.0, hc.ExpectedFinalScore)
}

func TestOlderKeyIsRefused(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	calls := map[game.TurnPhase]int{}
	c := NewCalculator(OracleFunc(func(_ context.Context, snap game.Snapshot) (Choices, error) {
		mu.Lock()
		calls[snap.Phase]++
		mu.Unlock()
		if snap.Phase == game.AfterRoll2 {
			<-release
		}
		return HoldChoices{hold(300)}, nil
	}), zerolog.Nop())
	ctx := context.Background()

	// a reader that snapshotted before the second roll arrives after it
	newSnap, newKey := key(4, game.AfterRoll2)
	newDone := make(chan error, 1)
	c.Refresh(ctx, newSnap, newKey, func(err error) { newDone <- err })

	oldSnap, oldKey := key(4, game.AfterRoll1)
	assert.ErrorIs(t, c.Update(ctx, oldSnap, oldKey), ErrStale)

	close(release)
	select {
	case err := <-newDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
	}
	require.NoError(t, c.Update(ctx, newSnap, newKey))

	assert.True(t, c.Current(newKey))
	assert.False(t, c.Current(oldKey))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls[game.AfterRoll2])
	assert.Equal(t, 0, calls[game.AfterRoll1])
}

func TestEarlyFillsAtHoldPhase(t *testing.T) {
	c := NewCalculator(OracleFunc(func(context.Context, game.Snapshot) (Choices, error) {
		return HoldPhaseChoices{
			Holds: HoldChoices{hold(150), hold(190, 2, 3, 4, 5, 6)},
			Fills: FillChoices{fill(game.Chance, 170), fill(game.LargeStraight, 190)},
		}, nil
	}), zerolog.Nop())
	snap, k := key(0, game.AfterRoll1)
	require.NoError(t, c.Update(context.Background(), snap, k))

	hc, err := c.BestHoldChoice()
	require.NoError(t, err)
	assert.Len(t, hc.HeldDice, game.NumDice)

	fc, err := c.BestFillChoice()
	require.NoError(t, err)
	assert.Equal(t, game.LargeStraight, fc.BoxFilled)

	fc, err = c.FillChoiceFor(game.Chance)
	require.NoError(t, err)
	assert.Equal(t, 170.0, fc.ExpectedFinalScore)
	_, err = c.FillChoiceFor(game.Yahtzee)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestNoFillsWithoutEarlyFills(t *testing.T) {
	c := NewCalculator(newOracle(), zerolog.Nop())
	snap, k := key(0, game.AfterRoll1)
	require.NoError(t, c.Update(context.Background(), snap, k))

	_, err := c.BestFillChoice()
	assert.ErrorIs(t, err, ErrNoChoices)
	_, err = c.FillChoiceFor(game.Chance)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestTieBreakKeepsLaterChoice(t *testing.T) {
	o := &countingOracle{
		holds: HoldChoices{hold(5, 1), hold(7, 2), hold(7, 3), hold(3, 4)},
		fills: FillChoices{fill(game.Ones, 5), fill(game.Twos, 7), fill(game.Threes, 7), fill(game.Fours, 3)},
	}
	c := NewCalculator(o, zerolog.Nop())
	ctx := context.Background()

	snap, k := key(0, game.AfterRoll1)
	require.NoError(t, c.Update(ctx, snap, k))
	hc, err := c.BestHoldChoice()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, hc.HeldDice)

	_, err = c.BestFillChoice()
	assert.ErrorIs(t, err, ErrNoChoices)

	snap, k = key(0, game.ReadyToFill)
	require.NoError(t, c.Update(ctx, snap, k))
	fc, err := c.BestFillChoice()
	require.NoError(t, err)
	assert.Equal(t, game.Threes, fc.BoxFilled)
}

func TestTargetScoreCriterion(t *testing.T) {
	at := func(box game.Box, expected, p float64) FillChoice {
		fc := fill(box, expected)
		fc.FinalScoreDistribution = flatDist(0)
		fc.FinalScoreDistribution[250] = p
		return fc
	}
	o := &countingOracle{fills: FillChoices{at(game.Chance, 240, 0.40), at(game.Yahtzee, 230, 0.45), at(game.Ones, 245, 0.10)}}
	c := NewCalculator(o, zerolog.Nop())
	snap, k := key(4, game.ReadyToFill)
	require.NoError(t, c.Update(context.Background(), snap, k))

	fc, err := c.BestFillChoice()
	require.NoError(t, err)
	assert.Equal(t, game.Ones, fc.BoxFilled)

	require.NoError(t, c.SetCriterion(Criterion{Kind: TargetScore, Threshold: 250}))
	fc, err = c.BestFillChoice()
	require.NoError(t, err)
	assert.Equal(t, game.Yahtzee, fc.BoxFilled)

	assert.ErrorIs(t, c.SetCriterion(Criterion{Kind: TargetScore, Threshold: 501}), ErrCriterion)
	assert.ErrorIs(t, c.SetCriterion(Criterion{Kind: "fastest"}), ErrCriterion)
	assert.Equal(t, Criterion{Kind: TargetScore, Threshold: 250}, c.Criterion())
}

func TestCurrentHoldChoice(t *testing.T) {
	c := NewCalculator(newOracle(), zerolog.Nop())
	snap, k := key(0, game.AfterRoll1)
	require.NoError(t, c.Update(context.Background(), snap, k))

	hc, err := c.CurrentHoldChoice([]int{6, 6})
	require.NoError(t, err)
	assert.Equal(t, 210.0, hc.ExpectedFinalScore)

	hc, err = c.CurrentHoldChoice([]int{})
	require.NoError(t, err)
	assert.Equal(t, 200.0, hc.ExpectedFinalScore)

	_, err = c.CurrentHoldChoice([]int{1, 2})
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestFillChoiceFor(t *testing.T) {
	c := NewCalculator(newOracle(), zerolog.Nop())
	snap, k := key(0, game.ReadyToFill)
	require.NoError(t, c.Update(context.Background(), snap, k))

	fc, err := c.FillChoiceFor(game.Chance)
	require.NoError(t, err)
	assert.Equal(t, 180.0, fc.ExpectedFinalScore)

	_, err = c.FillChoiceFor(game.Yahtzee)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestMalformedResponsesAreRejected(t *testing.T) {
	short := hold(100)
	short.FinalScoreDistribution = short.FinalScoreDistribution[:500]

	for name, resp := range map[string]Choices{
		"wrong variant":      FillChoices{fill(game.Chance, 100)},
		"empty":              HoldChoices{},
		"nil":                nil,
		"short distribution": HoldChoices{short},
		"unsorted held dice": HoldChoices{hold(100, 5, 2)},
		"bad face":           HoldChoices{hold(100, 7)},
		"bad early fill":     HoldPhaseChoices{Holds: HoldChoices{hold(100)}, Fills: FillChoices{fill(game.Box(13), 100)}},
		"early fills only":   HoldPhaseChoices{Fills: FillChoices{fill(game.Chance, 100)}},
	} {
		t.Run(name, func(t *testing.T) {
			c := NewCalculator(OracleFunc(func(context.Context, game.Snapshot) (Choices, error) {
				return resp, nil
			}), zerolog.Nop())
			snap, k := key(0, game.AfterRoll1)
			err := c.Update(context.Background(), snap, k)
			assert.ErrorIs(t, err, ErrOracle)
			assert.False(t, c.Current(k))
		})
	}
}

func TestOracleFailureIsWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewCalculator(OracleFunc(func(context.Context, game.Snapshot) (Choices, error) {
		return nil, boom
	}), zerolog.Nop())
	snap, k := key(0, game.AfterRoll1)
	err := c.Update(context.Background(), snap, k)
	assert.ErrorIs(t, err, ErrOracle)
	assert.ErrorIs(t, err, boom)

	err = NewCalculator(nil, zerolog.Nop()).Update(context.Background(), snap, k)
	assert.ErrorIs(t, err, ErrOracle)
}

func TestDisplayDistribution(t *testing.T) {
	o := Outcome{FinalScoreDistribution: flatDist(0)}
	o.FinalScoreDistribution[0] = 0.25
	o.FinalScoreDistribution[500] = 0.5

	got := DisplayDistribution(o, 50)
	require.Len(t, got, 551)
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1.0, got[i])
	}
	if diff := cmp.Diff(o.FinalScoreDistribution, got[50:]); diff != "" {
		t.Errorf("shifted distribution mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, DisplayDistribution(o, 0), DistributionLen)
}
