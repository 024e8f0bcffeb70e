package game

import "lukechampine.com/frand"

type randomRoller struct{}

func (randomRoller) Intn(n int) int { return frand.Intn(n) }

// RandomRoller returns a Roller backed by the process-wide CSPRNG.
func RandomRoller() Roller { return randomRoller{} }

// SeededRoller returns a deterministic Roller for a 32-byte seed.
// Two rollers built from the same seed produce the same stream of faces.
func SeededRoller(seed [32]byte) Roller {
	return frand.NewCustom(seed[:], 1024, 12)
}
