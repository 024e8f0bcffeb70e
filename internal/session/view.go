package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
	"github.com/robalobadob/yahtzee/apps/go-server/internal/outcome"
)

// State is the JSON read model of a session.
type State struct {
	ID       string `json:"id"`
	Mode     Mode   `json:"mode"`
	Date     string `json:"date,omitempty"`
	Turn     int    `json:"turn"`
	Phase    string `json:"phase"`
	GameOver bool   `json:"gameOver"`

	Dice  [game.NumDice]game.Die `json:"dice"`
	Boxes [game.NumBoxes]*int    `json:"boxes"`

	UpperHalfScore       int  `json:"upperHalfScore"`
	UpperHalfBonus       int  `json:"upperHalfBonus"`
	UpperHalfBonusKnown  bool `json:"upperHalfBonusKnown"`
	UpperHalfTotal       int  `json:"upperHalfTotal"`
	LowerHalfTotal       int  `json:"lowerHalfTotal"`
	YahtzeeBonus         int  `json:"yahtzeeBonus"`
	YahtzeeBonusEligible bool `json:"yahtzeeBonusEligible"`
	GrandTotal           int  `json:"grandTotal"`

	AdviceEnabled bool               `json:"adviceEnabled"`
	AdviceReady   bool               `json:"adviceReady"`
	Criterion     *outcome.Criterion `json:"criterion,omitempty"`
}

// State returns the current read model.
func (s *Session) State() State {
	s.mu.Lock()
	g := s.game
	st := State{
		ID:                   s.ID,
		Mode:                 s.Mode,
		Date:                 s.Date,
		Turn:                 g.Turn,
		Phase:                g.Phase.String(),
		GameOver:             g.GameOver(),
		Dice:                 g.Dice,
		UpperHalfScore:       g.UpperHalfScore(),
		UpperHalfBonus:       g.UpperHalfBonus(),
		UpperHalfBonusKnown:  g.UpperHalfBonusKnown(),
		UpperHalfTotal:       g.UpperHalfTotal(),
		LowerHalfTotal:       g.LowerHalfTotal(),
		YahtzeeBonus:         g.YahtzeeBonus,
		YahtzeeBonusEligible: g.YahtzeeBonusEligible(),
		GrandTotal:           g.GrandTotal(),
	}
	for i, b := range g.Boxes {
		if b != nil {
			v := *b
			st.Boxes[i] = &v
		}
	}
	key := g.Key()
	s.mu.Unlock()

	if s.calc != nil {
		cr := s.calc.Criterion()
		st.AdviceEnabled = true
		st.AdviceReady = s.calc.Current(key)
		st.Criterion = &cr
	}
	return st
}

// Action is what the advisor recommends doing next.
type Action string

const (
	ActionRoll Action = "roll" // hold Advice.BestHold.HeldDice and roll again
	ActionFill Action = "fill" // stop rolling and fill Advice.BestFill.BoxFilled
)

// Advice is the advisor's view of the current decision point.
type Advice struct {
	Turn      int               `json:"turn"`
	Phase     string            `json:"phase"`
	Criterion outcome.Criterion `json:"criterion"`
	Action    Action            `json:"action"`

	// BestHold is set before the third roll. BestFill is set at ReadyToFill, and
	// earlier when the oracle scored filling early.
	BestHold *outcome.HoldChoice `json:"bestHold,omitempty"`
	BestFill *outcome.FillChoice `json:"bestFill,omitempty"`

	// Current is the outcome of the player's present choice: the hold matching the
	// dice they have held, or the best fill.
	Current       outcome.Outcome `json:"current"`
	ExpectedScore int             `json:"expectedScore"`
	Distribution  []float64       `json:"distribution"`
}

// decision snapshots what an advice query needs under the session lock.
func (s *Session) decision() (game.Snapshot, game.Key, int, []int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game
	switch {
	case g.GameOver():
		return game.Snapshot{}, game.Key{}, 0, nil, fmt.Errorf("%w: game over", outcome.ErrNoChoices)
	case g.Phase == game.Begin:
		return game.Snapshot{}, game.Key{}, 0, nil, fmt.Errorf("%w: roll first", outcome.ErrNoChoices)
	case g.Phase == game.AwaitingFill:
		return game.Snapshot{}, game.Key{}, 0, nil, fmt.Errorf("%w: fill in progress", outcome.ErrNoChoices)
	}
	return g.Snapshot(), g.Key(), g.GrandTotal(), g.HeldFaces(), nil
}

// staleRetries bounds how often a query restarts because a concurrent action moved
// the game to a newer decision point while it waited.
const staleRetries = 3

// Advice waits (bounded by ctx) for the outcome data of the current decision point
// and ranks it under the active criterion.
func (s *Session) Advice(ctx context.Context) (Advice, error) {
	if s.calc == nil {
		return Advice{}, ErrAdviceDisabled
	}
	for i := 0; ; i++ {
		adv, err := s.advice(ctx)
		if !errors.Is(err, outcome.ErrStale) || i == staleRetries {
			return adv, err
		}
	}
}

func (s *Session) advice(ctx context.Context) (Advice, error) {
	snap, key, grandTotal, held, err := s.decision()
	if err != nil {
		return Advice{}, err
	}
	if err := s.calc.Update(ctx, snap, key); err != nil {
		return Advice{}, err
	}

	adv := Advice{Turn: key.Turn, Phase: key.Phase.String(), Criterion: s.calc.Criterion()}
	bestFill, fillErr := s.calc.BestFillChoice()
	if fillErr == nil {
		adv.BestFill = &bestFill
	}
	if key.Phase == game.ReadyToFill {
		if fillErr != nil {
			return Advice{}, fillErr
		}
		adv.Action = ActionFill
		adv.Current = bestFill.Outcome
	} else {
		best, err := s.calc.BestHoldChoice()
		if err != nil {
			return Advice{}, err
		}
		cur, err := s.calc.CurrentHoldChoice(held)
		if err != nil {
			return Advice{}, err
		}
		adv.Action = ActionRoll
		// keeping all five dice means stop rolling, but only if a box can be named
		if len(best.HeldDice) == game.NumDice && adv.BestFill != nil {
			adv.Action = ActionFill
		}
		adv.BestHold = &best
		adv.Current = cur.Outcome
	}
	if !s.calc.Current(key) {
		return Advice{}, outcome.ErrStale
	}
	adv.ExpectedScore = grandTotal + roundScore(adv.Current.ExpectedFinalScore)
	adv.Distribution = outcome.DisplayDistribution(adv.Current, grandTotal)
	return adv, nil
}

// BoxDistribution is the outcome of filling one specific box with the current roll.
type BoxDistribution struct {
	Box           game.Box  `json:"box"`
	Name          string    `json:"name"`
	ExpectedScore int       `json:"expectedScore"`
	Distribution  []float64 `json:"distribution"`
}

// Distribution returns the display distribution for filling box with the current
// roll. Before the third roll it exists only if the oracle scored filling early.
func (s *Session) Distribution(ctx context.Context, box game.Box) (BoxDistribution, error) {
	if s.calc == nil {
		return BoxDistribution{}, ErrAdviceDisabled
	}
	if !box.Valid() {
		return BoxDistribution{}, game.ErrBoxIndex
	}
	for i := 0; ; i++ {
		bd, err := s.distribution(ctx, box)
		if !errors.Is(err, outcome.ErrStale) || i == staleRetries {
			return bd, err
		}
	}
}

func (s *Session) distribution(ctx context.Context, box game.Box) (BoxDistribution, error) {
	snap, key, grandTotal, _, err := s.decision()
	if err != nil {
		return BoxDistribution{}, err
	}
	if err := s.calc.Update(ctx, snap, key); err != nil {
		return BoxDistribution{}, err
	}
	fc, err := s.calc.FillChoiceFor(box)
	if err != nil {
		return BoxDistribution{}, err
	}
	if !s.calc.Current(key) {
		return BoxDistribution{}, outcome.ErrStale
	}
	return BoxDistribution{
		Box:           box,
		Name:          box.String(),
		ExpectedScore: grandTotal + roundScore(fc.ExpectedFinalScore),
		Distribution:  outcome.DisplayDistribution(fc.Outcome, grandTotal),
	}, nil
}
