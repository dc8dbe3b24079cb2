package kb

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/model"
)

var (
	// ErrDuplicateName indicates an actor name is already registered.
	ErrDuplicateName = errors.New("actor name already registered")
	// ErrNilActor indicates a nil actor was passed for insertion.
	ErrNilActor = errors.New("nil actor")
)

// Handle is a non-owning reference to a registered actor. It resolves only
// while the registry generation it was issued under is current, so queued
// handles never keep actors of a discarded population reachable.
type Handle struct {
	gen uint64
	idx int
}

// AliveRecorder receives per-kind alive counts after membership changes.
type AliveRecorder interface {
	SetAlive(kind model.Kind, n int)
}

// Registry owns the actor population. Membership is guarded by a single
// RWMutex; per-actor state is synchronised by the actors themselves, so
// callbacks may call actor mutators while holding the shared lock.
type Registry struct {
	mu sync.RWMutex

	factory *core.Factory
	gen     uint64
	actors  []*core.Actor
	names   map[string]struct{}

	metrics AliveRecorder
}

// Option customises Registry construction.
type Option func(*Registry)

// WithAliveRecorder attaches a recorder that is refreshed whenever the
// membership changes or Census is called.
func WithAliveRecorder(m AliveRecorder) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry whose random spawns are built by f.
// A nil factory selects core.NewFactory().
func NewRegistry(f *core.Factory, opts ...Option) *Registry {
	if f == nil {
		f = core.NewFactory()
	}
	r := &Registry{
		factory: f,
		gen:     1,
		names:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Factory returns the factory used by SpawnRandom.
func (r *Registry) Factory() *core.Factory {
	return r.factory
}

// Add inserts actors in order. The batch is all-or-nothing: a duplicate
// name, either against registered actors or within the batch, rejects the
// whole batch.
func (r *Registry) Add(actors ...*core.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkInsertLocked(actors); err != nil {
		return err
	}
	r.insertLocked(actors)
	return nil
}

// Load inserts a batch produced by a record loader.
func (r *Registry) Load(actors []*core.Actor) error {
	return r.Add(actors...)
}

// SpawnRandom creates count actors of uniformly random kind at uniformly
// random positions inside both the map and the factory's spawn range, named
// "<Kind>_<n>". Construction or naming failures reject the whole batch.
func (r *Registry) SpawnRandom(count int, rng *rand.Rand) error {
	if count < 0 {
		return fmt.Errorf("%w: negative spawn count %d", core.ErrInvalidArgument, count)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	area := r.factory.MapBounds.Intersect(r.factory.SpawnRange)
	if area.Width < 0 || area.Height < 0 {
		return fmt.Errorf("%w: empty spawn area %dx%d", core.ErrInvalidArgument, area.Width, area.Height)
	}
	base := len(r.actors)
	batch := make([]*core.Actor, 0, count)
	for i := 0; i < count; i++ {
		kind := model.Kinds[rng.IntN(len(model.Kinds))]
		x := rng.IntN(area.Width + 1)
		y := rng.IntN(area.Height + 1)
		name := fmt.Sprintf("%s_%d", kind, base+i)

		a, err := r.factory.Construct(kind, x, y, name)
		if err != nil {
			return fmt.Errorf("spawn %s: %w", name, err)
		}
		batch = append(batch, a)
	}
	if err := r.checkInsertLocked(batch); err != nil {
		return err
	}
	r.insertLocked(batch)
	return nil
}

// Resolve returns the actor behind h, or false if the handle was issued
// before the last Clear.
func (r *Registry) Resolve(h Handle) (*core.Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h.gen != r.gen || h.idx < 0 || h.idx >= len(r.actors) {
		return nil, false
	}
	return r.actors[h.idx], true
}

// Len returns the number of registered actors, dead ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// Clear discards the population. Every handle issued so far stops
// resolving.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.actors = nil
	r.names = make(map[string]struct{})
	r.recordLocked()
}

// WithReadLock runs fn while holding the shared lock. fn must not call other
// Registry methods; use the View instead.
func (r *Registry) WithReadLock(fn func(View)) {
	if fn == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(View{r: r})
}

// ForEachLive calls fn for every live actor in registry order.
func (r *Registry) ForEachLive(fn func(Handle, *core.Actor)) {
	r.WithReadLock(func(v View) { v.ForEachLive(fn) })
}

// ForEachLiveMoving calls fn for every live, moving actor in registry order.
func (r *Registry) ForEachLiveMoving(fn func(Handle, *core.Actor)) {
	r.WithReadLock(func(v View) { v.ForEachLiveMoving(fn) })
}

// Census counts live actors per kind and pushes the counts to the attached
// recorder.
func (r *Registry) Census() map[model.Kind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recordLocked()
}

// View iterates the registry without taking the lock. It is only valid
// inside WithReadLock.
type View struct {
	r *Registry
}

// ForEachLive calls fn for every live actor.
func (v View) ForEachLive(fn func(Handle, *core.Actor)) {
	for i, a := range v.r.actors {
		if a.IsAlive() {
			fn(Handle{gen: v.r.gen, idx: i}, a)
		}
	}
}

// ForEachLiveMoving calls fn for every live, moving actor.
func (v View) ForEachLiveMoving(fn func(Handle, *core.Actor)) {
	for i, a := range v.r.actors {
		if a.IsAlive() && a.IsMoving() {
			fn(Handle{gen: v.r.gen, idx: i}, a)
		}
	}
}

func (r *Registry) checkInsertLocked(actors []*core.Actor) error {
	seen := make(map[string]struct{}, len(actors))
	for _, a := range actors {
		if a == nil {
			return ErrNilActor
		}
		name := a.Name()
		if _, exists := r.names[name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q appears twice in batch", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (r *Registry) insertLocked(actors []*core.Actor) {
	for _, a := range actors {
		r.actors = append(r.actors, a)
		r.names[a.Name()] = struct{}{}
	}
	r.recordLocked()
}

func (r *Registry) recordLocked() map[model.Kind]int {
	counts := make(map[model.Kind]int, len(model.Kinds))
	for _, a := range r.actors {
		if a.IsAlive() {
			counts[a.Kind()]++
		}
	}
	if r.metrics != nil {
		for _, k := range model.Kinds {
			r.metrics.SetAlive(k, counts[k])
		}
	}
	return counts
}
