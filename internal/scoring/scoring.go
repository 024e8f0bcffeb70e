// apps/go-server/internal/scoring/scoring.go
//
// Local scoring oracle: the standard Yahtzee box rules.
//
//   - Upper half:      face × count of that face.
//   - Three/four of a kind: sum of all dice when at least 3/4 dice match.
//   - Full house:      25 for a 3 + 2 split.
//   - Small straight:  30 for 4 in a row; large straight: 40 for 5 in a row.
//   - Chance:          sum of all dice.
//   - Yahtzee:         50 for five of a kind.
//
// Bonuses are not included; the game engine owns the upper-half and joker bonuses.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalobadob/yahtzee/apps/go-server/internal/game"
)

const (
	fullHouseScore     = 25
	smallStraightScore = 30
	largeStraightScore = 40
	yahtzeeScore       = 50
)

// Score returns the points for playing dice in box.
func Score(box game.Box, dice [game.NumDice]int) int {
	counts := countFaces(dice)
	if box.IsUpperHalf() {
		face := int(box) + 1
		return face * counts[face]
	}

	switch box {
	case game.ThreeOfAKind:
		if maxCount(counts) >= 3 {
			return sum(dice)
		}
	case game.FourOfAKind:
		if maxCount(counts) >= 4 {
			return sum(dice)
		}
	case game.FullHouse:
		if isFullHouse(counts) {
			return fullHouseScore
		}
	case game.SmallStraight:
		if longestRun(counts) >= 4 {
			return smallStraightScore
		}
	case game.LargeStraight:
		if longestRun(counts) >= 5 {
			return largeStraightScore
		}
	case game.Chance:
		return sum(dice)
	case game.Yahtzee:
		if game.IsYahtzee(dice) {
			return yahtzeeScore
		}
	}
	return 0
}

// ErrInvalidInput is returned by Oracle for an unknown box or a die face outside 1–6.
var ErrInvalidInput = errors.New("scoring: invalid input")

// Oracle implements game.ScoringOracle in-process.
type Oracle struct{}

func (Oracle) Score(_ context.Context, box game.Box, dice [game.NumDice]int) (int, error) {
	if !box.Valid() {
		return 0, fmt.Errorf("%w: box %d", ErrInvalidInput, int(box))
	}
	for _, d := range dice {
		if d < 1 || d > game.NumSides {
			return 0, fmt.Errorf("%w: die face %d", ErrInvalidInput, d)
		}
	}
	return Score(box, dice), nil
}

// countFaces indexes counts by face value 1..6 (index 0 unused).
func countFaces(dice [game.NumDice]int) [game.NumSides + 1]int {
	var counts [game.NumSides + 1]int
	for _, d := range dice {
		if d >= 1 && d <= game.NumSides {
			counts[d]++
		}
	}
	return counts
}

func maxCount(counts [game.NumSides + 1]int) int {
	best := 0
	for _, c := range counts[1:] {
		if c > best {
			best = c
		}
	}
	return best
}

func isFullHouse(counts [game.NumSides + 1]int) bool {
	three, two := false, false
	for _, c := range counts[1:] {
		switch c {
		case 3:
			three = true
		case 2:
			two = true
		}
	}
	return three && two
}

// longestRun is the length of the longest run of consecutive faces present.
func longestRun(counts [game.NumSides + 1]int) int {
	best, run := 0, 0
	for face := 1; face <= game.NumSides; face++ {
		if counts[face] > 0 {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

func sum(dice [game.NumDice]int) int {
	total := 0
	for _, d := range dice {
		total += d
	}
	return total
}
