package model

import (
	"fmt"
	"strings"
)

// Kind identifies an NPC species. The set is closed: combat rules are
// dispatched on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindBear
	KindBittern
	KindDesman
)

// Kinds lists every spawnable kind in a stable order.
var Kinds = []Kind{KindBear, KindBittern, KindDesman}

// Stats carries the movement and perception parameters of a kind.
type Stats struct {
	// Speed is the maximum distance travelled per scanner tick, in map units.
	Speed int
	// KillRange is the distance at or below which this kind perceives
	// another actor as a combat candidate.
	KillRange int
}

var kindStats = map[Kind]Stats{
	KindBear:    {Speed: 5, KillRange: 10},
	KindBittern: {Speed: 50, KillRange: 10},
	KindDesman:  {Speed: 5, KillRange: 20},
}

// Stats returns the movement table entry for k. Unknown kinds neither move
// nor perceive anything.
func (k Kind) Stats() Stats {
	return kindStats[k]
}

// String returns the record name of the kind ("Bear", "Bittern", "Desman").
func (k Kind) String() string {
	switch k {
	case KindBear:
		return "Bear"
	case KindBittern:
		return "Bittern"
	case KindDesman:
		return "Desman"
	default:
		return "Unknown"
	}
}

// Symbol is the single-letter tag used in compact status output.
func (k Kind) Symbol() byte {
	switch k {
	case KindBear:
		return 'B'
	case KindBittern:
		return 'I'
	case KindDesman:
		return 'D'
	default:
		return '?'
	}
}

// Valid reports whether k is one of the spawnable kinds.
func (k Kind) Valid() bool {
	_, ok := kindStats[k]
	return ok
}

// ParseKind maps a record name to a Kind. Matching is exact, mirroring the
// on-disk record format.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown NPC type %q (want one of %s)", s, kindNames())
}

func kindNames() string {
	names := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
