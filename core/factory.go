package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/npc-arena/model"
)

// ErrInvalidArgument is returned for unknown kinds, empty names and
// coordinates outside the accepted spawn range.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	// DefaultMapSize is the width and height of the simulated map.
	DefaultMapSize = 100
	// DefaultSpawnLimit bounds the coordinates accepted at construction.
	DefaultSpawnLimit = 500
)

// Factory builds validated actors. SpawnRange limits the coordinates an
// actor may be created at; MapBounds is the area the actor may later move
// within.
type Factory struct {
	SpawnRange Bounds
	MapBounds  Bounds
}

// NewFactory returns a factory with the default 500x500 spawn range and a
// 100x100 map.
func NewFactory() *Factory {
	return &Factory{
		SpawnRange: Bounds{Width: DefaultSpawnLimit, Height: DefaultSpawnLimit},
		MapBounds:  Bounds{Width: DefaultMapSize, Height: DefaultMapSize},
	}
}

// Construct creates a live, moving actor of the given kind.
func (f *Factory) Construct(kind model.Kind, x, y int, name string) (*Actor, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown NPC kind %d", ErrInvalidArgument, int(kind))
	}
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\r\n") {
		return nil, fmt.Errorf("%w: NPC name %q must be a single non-empty word", ErrInvalidArgument, name)
	}
	p := Point{X: x, Y: y}
	if !f.SpawnRange.Contains(p) {
		return nil, fmt.Errorf("%w: coordinates (%d, %d) out of range [0, %d]x[0, %d]",
			ErrInvalidArgument, x, y, f.SpawnRange.Width, f.SpawnRange.Height)
	}
	return newActor(kind, p, name, f.MapBounds), nil
}

// ConstructRecord is Construct with the kind given by its record name.
func (f *Factory) ConstructRecord(typeName string, x, y int, name string) (*Actor, error) {
	kind, err := model.ParseKind(typeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return f.Construct(kind, x, y, name)
}
