package oracle

import (
	"fmt"
	"slices"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/outcome"
)

// Wire shapes of the /rest/v1 endpoints. Only the score request uses lowercase keys;
// everything else is keyed by the plain Go field names.

type ScoreRequest struct {
	Box  int               `json:"box"`
	Dice [game.NumDice]int `json:"dice"`
}

type ScoreResponse struct {
	Score int
}

type GameState struct {
	Filled               [game.NumBoxes]bool
	YahtzeeBonusEligible bool
	UpperHalfScore       int
}

// TurnState.Step is 1, 2 or 3 for the hold after the first roll, the hold after
// the second roll and the fill after the third.
type TurnState struct {
	Step int
	Dice [game.NumDice]int
}

type OutcomeDistributionRequest struct {
	GameState GameState
	TurnState TurnState
}

type HoldChoice struct {
	HeldDice               []int
	ExpectedFinalScore     float64
	FinalScoreDistribution []float64
}

type FillChoice struct {
	BoxFilled              int
	ExpectedFinalScore     float64
	FinalScoreDistribution []float64
}

// OutcomeDistributionResponse carries HoldChoices before the third roll and
// FillChoices always; older servers leave FillChoices empty at hold phases.
type OutcomeDistributionResponse struct {
	HoldChoices []HoldChoice
	FillChoices []FillChoice
}

// NewOutcomeDistributionRequest converts a snapshot into the wire request.
func NewOutcomeDistributionRequest(snap game.Snapshot) (OutcomeDistributionRequest, error) {
	switch snap.Phase {
	case game.AfterRoll1, game.AfterRoll2, game.ReadyToFill:
	default:
		return OutcomeDistributionRequest{}, fmt.Errorf("oracle: no decision to make at %s", snap.Phase)
	}
	return OutcomeDistributionRequest{
		GameState: GameState{
			Filled:               snap.Filled,
			YahtzeeBonusEligible: snap.YahtzeeBonusEligible,
			UpperHalfScore:       snap.UpperHalfScore,
		},
		TurnState: TurnState{Step: int(snap.Phase), Dice: snap.Dice},
	}, nil
}

// Choices picks the variant that belongs to phase and converts it. Before the
// third roll, fill choices sent alongside the holds are kept as early fills.
func (r OutcomeDistributionResponse) Choices(phase game.TurnPhase) (outcome.Choices, error) {
	if phase == game.ReadyToFill {
		if len(r.FillChoices) == 0 {
			return nil, fmt.Errorf("%w: no fill choices", ErrMalformed)
		}
		return fillChoices(r.FillChoices), nil
	}

	if len(r.HoldChoices) == 0 {
		return nil, fmt.Errorf("%w: no hold choices", ErrMalformed)
	}
	holds := make(outcome.HoldChoices, 0, len(r.HoldChoices))
	for _, hc := range r.HoldChoices {
		held := slices.Clone(hc.HeldDice)
		if held == nil {
			held = []int{}
		}
		slices.Sort(held)
		holds = append(holds, outcome.HoldChoice{
			HeldDice: held,
			Outcome:  outcome.Outcome{ExpectedFinalScore: hc.ExpectedFinalScore, FinalScoreDistribution: hc.FinalScoreDistribution},
		})
	}
	if len(r.FillChoices) == 0 {
		return holds, nil
	}
	return outcome.HoldPhaseChoices{Holds: holds, Fills: fillChoices(r.FillChoices)}, nil
}

func fillChoices(in []FillChoice) outcome.FillChoices {
	out := make(outcome.FillChoices, 0, len(in))
	for _, fc := range in {
		out = append(out, outcome.FillChoice{
			BoxFilled: game.Box(fc.BoxFilled),
			Outcome:   outcome.Outcome{ExpectedFinalScore: fc.ExpectedFinalScore, FinalScoreDistribution: fc.FinalScoreDistribution},
		})
	}
	return out
}
