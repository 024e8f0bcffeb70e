// apps/go-server/internal/game/engine.go
//
// Turn state machine for a single Yahtzee game.
// Responsibilities:
//   - Roll unheld dice and advance the turn phase (begin → roll 1 → roll 2 → fill).
//   - Toggle held dice between rolls.
//   - Fill a box through the scoring oracle, committing score and joker bonus together.
//   - Derive totals (upper half, bonus, lower half, grand total) from the scorecard.
//
// Notes:
//   - Every mutating call either commits fully or returns an error and leaves state untouched.
//   - A fill is split into BeginFill / CompleteFill / AbortFill so callers can release locks
//     while the oracle is working; the game sits in AwaitingFill meanwhile.
package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidTransition is wrapped by every rejected roll/hold/fill.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrNotRolled     = fmt.Errorf("%w: dice have not been rolled this turn", ErrInvalidTransition)
	ErrMustFill      = fmt.Errorf("%w: no rolls left, a box must be filled", ErrInvalidTransition)
	ErrBoxFilled     = fmt.Errorf("%w: box already filled", ErrInvalidTransition)
	ErrFillPending   = fmt.Errorf("%w: waiting for fill to be scored", ErrInvalidTransition)
	ErrNoPendingFill = fmt.Errorf("%w: no fill in progress", ErrInvalidTransition)
	ErrGameOver      = fmt.Errorf("%w: game over", ErrInvalidTransition)
	ErrDieIndex      = fmt.Errorf("%w: die index out of range", ErrInvalidTransition)
	ErrBoxIndex      = fmt.Errorf("%w: box index out of range", ErrInvalidTransition)

	// ErrScoring wraps failures reported by (or about) the scoring oracle.
	ErrScoring = errors.New("scoring oracle failure")
)

// New constructs an empty game at turn 0.
func New() *Game {
	return &Game{}
}

// Hold toggles the held flag of die i.
func (g *Game) Hold(i int) error {
	if g.pending != nil {
		return ErrFillPending
	}
	if i < 0 || i >= NumDice {
		return ErrDieIndex
	}
	if g.Phase == Begin {
		return ErrNotRolled
	}
	g.Dice[i].Held = !g.Dice[i].Held
	return nil
}

// Roll rerolls every unheld die and advances the phase by one step.
func (g *Game) Roll(r Roller) error {
	switch {
	case g.pending != nil:
		return ErrFillPending
	case g.GameOver():
		return ErrGameOver
	case g.Phase >= ReadyToFill:
		return ErrMustFill
	}
	for i := range g.Dice {
		if !g.Dice[i].Held {
			g.Dice[i].Side = r.Intn(NumSides) + 1
		}
	}
	g.Phase++
	return nil
}

// FillRequest is what the scoring oracle must score for a pending fill.
type FillRequest struct {
	Box  Box
	Dice [NumDice]int
}

// BeginFill validates a fill of box and moves the game into AwaitingFill.
// The caller must follow with CompleteFill or AbortFill.
func (g *Game) BeginFill(box Box) (FillRequest, error) {
	switch {
	case g.pending != nil:
		return FillRequest{}, ErrFillPending
	case !box.Valid():
		return FillRequest{}, ErrBoxIndex
	case g.GameOver():
		return FillRequest{}, ErrGameOver
	case g.Phase == Begin:
		return FillRequest{}, ErrNotRolled
	case g.IsFilled(box):
		return FillRequest{}, ErrBoxFilled
	}

	dice := g.CurrentRoll()
	g.pending = &pendingFill{
		box:   box,
		prev:  g.Phase,
		dice:  dice,
		bonus: IsYahtzee(dice) && g.YahtzeeBonusEligible(),
	}
	g.Phase = AwaitingFill
	return FillRequest{Box: box, Dice: dice}, nil
}

// CompleteFill records score for the pending fill, credits the joker bonus when
// it applies, and starts the next turn. A negative score aborts the fill.
func (g *Game) CompleteFill(score int) error {
	p := g.pending
	if p == nil {
		return ErrNoPendingFill
	}
	if score < 0 {
		g.AbortFill()
		return fmt.Errorf("%w: negative score %d for %s", ErrScoring, score, p.box)
	}

	if p.bonus {
		g.YahtzeeBonus += YahtzeeBonusValue
	}
	s := score
	g.Boxes[p.box] = &s
	g.Turn++
	g.Phase = Begin
	for i := range g.Dice {
		g.Dice[i] = Die{}
	}
	g.pending = nil
	return nil
}

// AbortFill returns a pending fill to the phase it started from.
func (g *Game) AbortFill() {
	if g.pending == nil {
		return
	}
	g.Phase = g.pending.prev
	g.pending = nil
}

// Fill scores the current roll in box using oracle and commits it.
// On oracle failure the game is left exactly as before.
func (g *Game) Fill(ctx context.Context, oracle ScoringOracle, box Box) error {
	req, err := g.BeginFill(box)
	if err != nil {
		return err
	}
	score, err := oracle.Score(ctx, req.Box, req.Dice)
	if err != nil {
		g.AbortFill()
		return fmt.Errorf("%w: %w", ErrScoring, err)
	}
	return g.CompleteFill(score)
}

// --------------------------- derived queries -------------------------------

// IsFilled reports whether box already holds a score.
func (g *Game) IsFilled(box Box) bool {
	return box.Valid() && g.Boxes[box] != nil
}

// GameOver reports whether all 13 boxes are filled.
func (g *Game) GameOver() bool { return g.Turn >= NumBoxes }

// UpperHalfScore sums the filled upper-half boxes.
func (g *Game) UpperHalfScore() int {
	total := 0
	for b := Ones; b <= Sixes; b++ {
		if g.Boxes[b] != nil {
			total += *g.Boxes[b]
		}
	}
	return total
}

// UpperHalfBonus is 35 once the upper half reaches 63, else 0.
func (g *Game) UpperHalfBonus() int {
	if g.UpperHalfScore() >= UpperHalfBonusThreshold {
		return UpperHalfBonusValue
	}
	return 0
}

// UpperHalfBonusKnown is false while the bonus could still be earned.
func (g *Game) UpperHalfBonusKnown() bool {
	return g.UpperHalfBonus() > 0 || g.UpperHalfFilled()
}

func (g *Game) UpperHalfTotal() int { return g.UpperHalfScore() + g.UpperHalfBonus() }

// LowerHalfTotal sums boxes 6–12 (the Yahtzee box included, joker bonus excluded).
func (g *Game) LowerHalfTotal() int {
	total := 0
	for b := ThreeOfAKind; b <= Yahtzee; b++ {
		if g.Boxes[b] != nil {
			total += *g.Boxes[b]
		}
	}
	return total
}

func (g *Game) GrandTotal() int {
	return g.UpperHalfTotal() + g.LowerHalfTotal() + g.YahtzeeBonus
}

// UpperHalfFilled reports whether boxes 0–5 are all filled.
func (g *Game) UpperHalfFilled() bool {
	for b := Ones; b <= Sixes; b++ {
		if g.Boxes[b] == nil {
			return false
		}
	}
	return true
}

// YahtzeeBonusEligible reports whether the Yahtzee box holds a positive score.
func (g *Game) YahtzeeBonusEligible() bool {
	y := g.Boxes[Yahtzee]
	return y != nil && *y > 0
}

// CurrentRoll returns the dice faces in dice order (0 for unrolled dice).
func (g *Game) CurrentRoll() [NumDice]int {
	var out [NumDice]int
	for i, d := range g.Dice {
		out[i] = d.Side
	}
	return out
}

// HeldFaces returns the faces of the held dice, sorted ascending.
func (g *Game) HeldFaces() []int {
	out := make([]int, 0, NumDice)
	for _, d := range g.Dice {
		if d.Held {
			out = append(out, d.Side)
		}
	}
	sort.Ints(out)
	return out
}

// Key identifies the current decision point.
func (g *Game) Key() Key { return Key{Turn: g.Turn, Phase: g.Phase} }

// Snapshot captures what the outcome oracle needs for the current decision.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		YahtzeeBonusEligible: g.YahtzeeBonusEligible(),
		UpperHalfScore:       g.UpperHalfScore(),
		Phase:                g.Phase,
		Dice:                 g.CurrentRoll(),
	}
	for i, b := range g.Boxes {
		s.Filled[i] = b != nil
	}
	return s
}

// IsYahtzee reports whether all five dice show the same rolled face.
func IsYahtzee(dice [NumDice]int) bool {
	if dice[0] == 0 {
		return false
	}
	for _, d := range dice[1:] {
		if d != dice[0] {
			return false
		}
	}
	return true
}
