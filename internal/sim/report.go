package sim

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/kb"
	"github.com/signalsfoundry/npc-arena/model"
)

// WriteSurvivors prints every live actor in registry order followed by the
// total. Call it only after the simulation has stopped.
func WriteSurvivors(w io.Writer, reg *kb.Registry, duration time.Duration) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== SURVIVORS AFTER %d SECONDS ===\n", int(duration.Seconds()))
	count := 0
	reg.ForEachLive(func(_ kb.Handle, a *core.Actor) {
		b.WriteString(a.Describe())
		b.WriteByte('\n')
		count++
	})
	fmt.Fprintf(&b, "Total survivors: %d\n", count)
	b.WriteString(strings.Repeat("=", 47))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return count, err
}

// FormatCensus renders per-kind alive counts as "Bear=3 Bittern=0 Desman=7".
func FormatCensus(counts map[model.Kind]int) string {
	parts := make([]string, 0, len(model.Kinds))
	for _, k := range model.Kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

// MapGridSize is the side of the square grid WriteMap draws.
const MapGridSize = 20

// WriteMap draws live actors on a coarse grid, one symbol per cell: '.' is
// empty, '*' marks a cell holding more than one actor. Actors outside the
// map are not drawn.
func WriteMap(w io.Writer, reg *kb.Registry, elapsed time.Duration) error {
	bounds := reg.Factory().MapBounds
	cellW := max(bounds.Width/MapGridSize, 1)
	cellH := max(bounds.Height/MapGridSize, 1)

	grid := make([][]byte, MapGridSize)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", MapGridSize))
	}
	reg.ForEachLive(func(_ kb.Handle, a *core.Actor) {
		p := a.Position()
		gx, gy := p.X/cellW, p.Y/cellH
		if p.X < 0 || p.Y < 0 || gx >= MapGridSize || gy >= MapGridSize {
			return
		}
		if grid[gy][gx] == '.' {
			grid[gy][gx] = a.Kind().Symbol()
		} else {
			grid[gy][gx] = '*'
		}
	})

	var b strings.Builder
	fmt.Fprintf(&b, "=== MAP (%ds) ===\n", int(elapsed.Seconds()))
	for _, row := range grid {
		b.Write(row)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("=", 17))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
