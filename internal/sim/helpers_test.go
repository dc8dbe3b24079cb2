package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/kb"
	"github.com/signalsfoundry/npc-arena/model"
)

// pinnedFactory spawns actors whose map collapses to the origin, so every
// move lands them on the same point.
func pinnedFactory() *core.Factory {
	f := core.NewFactory()
	f.MapBounds = core.Bounds{}
	return f
}

type spawn struct {
	kind model.Kind
	x, y int
	name string
}

func newTestRegistry(t *testing.T, f *core.Factory, spawns ...spawn) *kb.Registry {
	t.Helper()
	reg := kb.NewRegistry(f)
	actors := make([]*core.Actor, 0, len(spawns))
	for _, s := range spawns {
		a, err := f.Construct(s.kind, s.x, s.y, s.name)
		require.NoError(t, err, "Construct(%s %q)", s.kind, s.name)
		actors = append(actors, a)
	}
	require.NoError(t, reg.Add(actors...))
	return reg
}

func handlesByName(reg *kb.Registry) map[string]kb.Handle {
	out := make(map[string]kb.Handle)
	reg.ForEachLive(func(h kb.Handle, a *core.Actor) {
		out[a.Name()] = h
	})
	return out
}

// recordingSink collects delivered messages.
type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *recordingSink) Notify(message string) {
	s.mu.Lock()
	s.msgs = append(s.msgs, message)
	s.mu.Unlock()
}

func (s *recordingSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

// countingMetrics is a MetricsRecorder that keeps totals.
type countingMetrics struct {
	mu         sync.Mutex
	ticks      int
	candidates int
	resolved   int
	discarded  int
	kills      map[model.Kind]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{kills: make(map[model.Kind]int)}
}

func (m *countingMetrics) ObserveTick(_ time.Duration, _ int, candidates int) {
	m.mu.Lock()
	m.ticks++
	m.candidates += candidates
	m.mu.Unlock()
}

func (m *countingMetrics) SetQueueDepth(int) {}

func (m *countingMetrics) EncounterResolved() {
	m.mu.Lock()
	m.resolved++
	m.mu.Unlock()
}

func (m *countingMetrics) PairDiscarded() {
	m.mu.Lock()
	m.discarded++
	m.mu.Unlock()
}

func (m *countingMetrics) KillRecorded(killer, _ model.Kind, _ string) {
	m.mu.Lock()
	m.kills[killer]++
	m.mu.Unlock()
}
