package core

import (
	"math"
	"math/rand/v2"
)

// RandomWalk displaces actors by a uniform heading and a uniform distance up
// to their kind's speed. A RandomWalk is owned by a single goroutine.
type RandomWalk struct {
	rng *rand.Rand
}

// NewRandomWalk returns a walk with an independently seeded generator.
func NewRandomWalk() *RandomWalk {
	return NewSeededRandomWalk(rand.Uint64(), rand.Uint64())
}

// NewSeededRandomWalk returns a walk with a fixed seed.
func NewSeededRandomWalk(seed1, seed2 uint64) *RandomWalk {
	return &RandomWalk{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Next returns the position reached from p in one tick, clamped into bounds.
func (w *RandomWalk) Next(p Point, speed int, bounds Bounds) Point {
	if speed <= 0 {
		return bounds.Clamp(p)
	}
	heading := w.rng.Float64() * 2 * math.Pi
	dist := w.rng.Float64() * float64(speed)
	return bounds.Clamp(p.Displace(heading, dist))
}

// Step applies one tick of movement to a.
func (w *RandomWalk) Step(a *Actor) {
	next := w.Next(a.Position(), a.Kind().Stats().Speed, a.bounds)
	a.SetPosition(next.X, next.Y)
}
