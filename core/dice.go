package core

import "math/rand/v2"

// Dice produces uniform integers in [1, 6]. Implementations are not required
// to be safe for concurrent use; each goroutine should own its own Dice.
type Dice interface {
	Roll() int
}

// RandDice rolls a d6 from a private generator.
type RandDice struct {
	rng *rand.Rand
}

// NewRandDice returns dice backed by an independently seeded PCG source.
func NewRandDice() *RandDice {
	return NewSeededDice(rand.Uint64(), rand.Uint64())
}

// NewSeededDice returns dice with a fixed seed, for reproducible tests.
func NewSeededDice(seed1, seed2 uint64) *RandDice {
	return &RandDice{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Roll returns a uniform value in [1, 6].
func (d *RandDice) Roll() int {
	return d.rng.IntN(6) + 1
}
