package core

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/signalsfoundry/npc-arena/model"
)

// state bits; an actor can be moving only while it is alive, so the two
// flags share one atomic word and always change together.
const (
	stateAlive uint32 = 1 << iota
	stateMoving
)

// Actor is a simulated NPC. Name and kind never change after construction;
// position, liveness and the moving flag are individually synchronised so
// the scanner and the combat worker never need a shared lock.
type Actor struct {
	name   string
	kind   model.Kind
	bounds Bounds

	pos   atomic.Uint64 // packed int32 x | int32 y
	state atomic.Uint32
}

func newActor(kind model.Kind, p Point, name string, bounds Bounds) *Actor {
	a := &Actor{name: name, kind: kind, bounds: bounds}
	a.pos.Store(packPoint(p))
	a.state.Store(stateAlive | stateMoving)
	return a
}

// Name returns the unique actor name.
func (a *Actor) Name() string { return a.name }

// Kind returns the actor's species.
func (a *Actor) Kind() model.Kind { return a.kind }

// Position returns the last position written by the scanner.
func (a *Actor) Position() Point {
	return unpackPoint(a.pos.Load())
}

// SetPosition moves the actor. Coordinates outside the map bounds are
// ignored.
func (a *Actor) SetPosition(x, y int) {
	p := Point{X: x, Y: y}
	if !a.bounds.Contains(p) {
		return
	}
	a.pos.Store(packPoint(p))
}

// IsAlive reports whether the actor has not been killed.
func (a *Actor) IsAlive() bool {
	return a.state.Load()&stateAlive != 0
}

// IsMoving reports whether the scanner should displace the actor.
func (a *Actor) IsMoving() bool {
	return a.state.Load()&stateMoving != 0
}

// Kill marks the actor dead and not moving. It returns true only for the
// call that performed the transition; later or racing calls return false.
func (a *Actor) Kill() bool {
	for {
		old := a.state.Load()
		if old&stateAlive == 0 {
			return false
		}
		if a.state.CompareAndSwap(old, 0) {
			return true
		}
	}
}

// SetMoving toggles the moving flag of a live actor. It returns false when
// the actor is dead, in which case nothing changes.
func (a *Actor) SetMoving(moving bool) bool {
	for {
		old := a.state.Load()
		if old&stateAlive == 0 {
			return false
		}
		next := old &^ stateMoving
		if moving {
			next |= stateMoving
		}
		if old == next || a.state.CompareAndSwap(old, next) {
			return true
		}
	}
}

// RollCombatDice draws a fresh (attack, defense) pair.
func (a *Actor) RollCombatDice(d Dice) (attack, defense int) {
	return d.Roll(), d.Roll()
}

// DistanceTo returns the Euclidean distance to other, or +Inf when other is
// nil.
func (a *Actor) DistanceTo(other *Actor) float64 {
	if other == nil {
		return math.Inf(1)
	}
	return a.Position().DistanceTo(other.Position())
}

// String renders the actor in record form: "<type> <x> <y> <name>".
func (a *Actor) String() string {
	p := a.Position()
	return fmt.Sprintf("%s %d %d %s", a.kind, p.X, p.Y, a.name)
}

// Describe renders the actor for survivor listings.
func (a *Actor) Describe() string {
	p := a.Position()
	return fmt.Sprintf("%s '%s' at (%d, %d)", a.kind, a.name, p.X, p.Y)
}

func packPoint(p Point) uint64 {
	return uint64(uint32(int32(p.X)))<<32 | uint64(uint32(int32(p.Y)))
}

func unpackPoint(v uint64) Point {
	return Point{X: int(int32(uint32(v >> 32))), Y: int(int32(uint32(v)))}
}
