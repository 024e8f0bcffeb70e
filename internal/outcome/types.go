// apps/go-server/internal/outcome/types.go
//
// Value types exchanged with the outcome oracle.
// Defines:
//   - Outcome: a final-score distribution and its expectation.
//   - HoldChoice / FillChoice: one candidate decision each.
//   - Choices: tagged union of what an oracle returns for one decision point.
//   - Criterion: how candidates are ranked.

package outcome

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
)

// DistributionLen is the number of final scores an oracle distribution covers (0–500).
const DistributionLen = 501

var (
	// ErrOracle wraps every outcome-oracle failure, including malformed responses.
	ErrOracle = errors.New("outcome oracle failure")
	// ErrContractViolation means the oracle and engine disagree on the legal choices.
	ErrContractViolation = errors.New("outcome oracle contract violation")
	// ErrNoChoices is returned when no data is cached for the requested variant.
	ErrNoChoices = errors.New("no outcome data for this decision")
	ErrStale     = errors.New("outcome data is for a different decision point")
	ErrCriterion = errors.New("invalid criterion")
)

// Outcome is the final-score distribution reachable from one choice.
type Outcome struct {
	ExpectedFinalScore     float64   `json:"expectedFinalScore"`
	FinalScoreDistribution []float64 `json:"finalScoreDistribution"`
}

// HoldChoice is keeping HeldDice (sorted faces) and rerolling the rest.
type HoldChoice struct {
	HeldDice []int `json:"heldDice"`
	Outcome
}

// FillChoice is playing the current roll in BoxFilled.
type FillChoice struct {
	BoxFilled game.Box `json:"boxFilled"`
	Outcome
}

// Choices is HoldChoices or HoldPhaseChoices before the third roll, FillChoices after it.
type Choices interface {
	isChoices()
	Len() int
}

type HoldChoices []HoldChoice

type FillChoices []FillChoice

// HoldPhaseChoices answers a hold decision together with the outcomes of stopping
// early and filling a box with the current roll. Fills may be empty.
type HoldPhaseChoices struct {
	Holds HoldChoices
	Fills FillChoices
}

func (HoldChoices) isChoices()      {}
func (FillChoices) isChoices()      {}
func (HoldPhaseChoices) isChoices() {}
func (c HoldChoices) Len() int      { return len(c) }
func (c FillChoices) Len() int      { return len(c) }
func (c HoldPhaseChoices) Len() int { return len(c.Holds) }

// Oracle computes the choices available at a decision point.
// Before the third roll it returns HoldChoices, or HoldPhaseChoices when it also
// scores filling early; at ReadyToFill it returns FillChoices.
type Oracle interface {
	Distribution(ctx context.Context, snap game.Snapshot) (Choices, error)
}

// OracleFunc adapts an ordinary function to Oracle.
type OracleFunc func(ctx context.Context, snap game.Snapshot) (Choices, error)

func (f OracleFunc) Distribution(ctx context.Context, snap game.Snapshot) (Choices, error) {
	return f(ctx, snap)
}

// CriterionKind selects how choices are ranked.
type CriterionKind string

const (
	// ExpectedValue ranks by expected final score.
	ExpectedValue CriterionKind = "expected-value"
	// TargetScore ranks by the distribution value at Threshold ("score to beat").
	TargetScore CriterionKind = "high-score"
)

// Criterion is the active ranking rule.
type Criterion struct {
	Kind      CriterionKind `json:"kind"`
	Threshold int           `json:"scoreToBeat"`
}

// Validate checks the kind and, for TargetScore, the threshold range.
func (c Criterion) Validate() error {
	switch c.Kind {
	case ExpectedValue:
		return nil
	case TargetScore:
		if c.Threshold < 0 || c.Threshold >= DistributionLen {
			return fmt.Errorf("%w: score to beat %d outside [0,%d)", ErrCriterion, c.Threshold, DistributionLen)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrCriterion, c.Kind)
}

// Score is the scalar a choice is ranked by.
func (c Criterion) Score(o Outcome) float64 {
	if c.Kind == TargetScore {
		if c.Threshold < 0 || c.Threshold >= len(o.FinalScoreDistribution) {
			return 0
		}
		return o.FinalScoreDistribution[c.Threshold]
	}
	return o.ExpectedFinalScore
}
