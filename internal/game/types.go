// apps/go-server/internal/game/types.go
//
// Core type definitions for the Yahtzee turn engine.
// Defines:
//   - Box: the 13 scorecard categories.
//   - TurnPhase: progress through a turn's roll → roll → roll → fill cycle.
//   - Die / Game: scorecard, dice and turn counters for one game.
//   - Key / Snapshot: the read-only views handed to the outcome oracle.

package game

import (
	"context"
	"fmt"
	"strconv"
)

const (
	NumDice  = 5
	NumBoxes = 13
	NumSides = 6

	UpperHalfBonusThreshold = 63
	UpperHalfBonusValue     = 35
	YahtzeeBonusValue       = 100
)

// Box identifies a scorecard category.
// 0–5 are the upper half, 6–11 the lower half, 12 is Yahtzee.
type Box int

const (
	Ones Box = iota
	Twos
	Threes
	Fours
	Fives
	Sixes
	ThreeOfAKind
	FourOfAKind
	FullHouse
	SmallStraight
	LargeStraight
	Chance
	Yahtzee
)

var boxNames = [NumBoxes]string{
	"ones", "twos", "threes", "fours", "fives", "sixes",
	"three-of-a-kind", "four-of-a-kind", "full-house",
	"small-straight", "large-straight", "chance", "yahtzee",
}

func (b Box) String() string {
	if !b.Valid() {
		return fmt.Sprintf("box(%d)", int(b))
	}
	return boxNames[b]
}

// ParseBox accepts a box name ("full-house") or its index ("8").
func ParseBox(s string) (Box, error) {
	for i, name := range boxNames {
		if s == name {
			return Box(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Box(n).Valid() {
		return Box(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBoxIndex, s)
}

// Valid reports whether b names one of the 13 categories.
func (b Box) Valid() bool { return b >= Ones && b <= Yahtzee }

// IsUpperHalf reports whether b scores toward the upper-half bonus.
func (b Box) IsUpperHalf() bool { return b >= Ones && b <= Sixes }

// TurnPhase tracks progress within a turn.
// The first four values are the "Step" numbers used on the oracle wire.
type TurnPhase int

const (
	Begin TurnPhase = iota
	AfterRoll1
	AfterRoll2
	ReadyToFill
	// AwaitingFill is entered while the scoring oracle is scoring a fill.
	// Every roll/hold/fill is rejected until the fill completes or aborts.
	AwaitingFill
)

func (p TurnPhase) String() string {
	switch p {
	case Begin:
		return "begin"
	case AfterRoll1:
		return "after-roll-1"
	case AfterRoll2:
		return "after-roll-2"
	case ReadyToFill:
		return "ready-to-fill"
	case AwaitingFill:
		return "awaiting-fill"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Die is a single die. Side 0 means not rolled this turn.
type Die struct {
	Side int  `json:"side"`
	Held bool `json:"held"`
}

// Game holds the state of a single Yahtzee game.
type Game struct {
	Boxes        [NumBoxes]*int // nil while the box is empty
	Dice         [NumDice]Die
	YahtzeeBonus int       // accumulated joker bonus, multiples of 100
	Turn         int       // number of boxes filled so far
	Phase        TurnPhase // position within the current turn

	pending *pendingFill
}

// pendingFill remembers a fill that is waiting on the scoring oracle.
type pendingFill struct {
	box   Box
	prev  TurnPhase
	dice  [NumDice]int
	bonus bool
}

// Key identifies a decision point; oracle data is valid for exactly one Key.
type Key struct {
	Turn  int       `json:"turn"`
	Phase TurnPhase `json:"phase"`
}

// Before reports whether k is an earlier decision point than o.
// Keys only ever increase over a game: by turn, then by phase.
func (k Key) Before(o Key) bool {
	if k.Turn != o.Turn {
		return k.Turn < o.Turn
	}
	return k.Phase < o.Phase
}

// Snapshot is the state the outcome oracle needs to enumerate choices.
type Snapshot struct {
	Filled               [NumBoxes]bool
	YahtzeeBonusEligible bool
	UpperHalfScore       int
	Phase                TurnPhase
	Dice                 [NumDice]int
}

// Roller is a uniform integer source; Intn returns a value in [0, n).
type Roller interface {
	Intn(n int) int
}

// ScoringOracle scores a finished roll for a box.
type ScoringOracle interface {
	Score(ctx context.Context, box Box, dice [NumDice]int) (int, error)
}

// ScoringOracleFunc adapts an ordinary function to ScoringOracle.
type ScoringOracleFunc func(ctx context.Context, box Box, dice [NumDice]int) (int, error)

func (f ScoringOracleFunc) Score(ctx context.Context, box Box, dice [NumDice]int) (int, error) {
	return f(ctx, box, dice)
}
