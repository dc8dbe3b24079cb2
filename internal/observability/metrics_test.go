package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/internal/combat"
	"github.com/signalsfoundry/npc-arena/kb"
	"github.com/signalsfoundry/npc-arena/model"
)

func TestSimCollectorRecordsLoopMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	require.NoError(t, err)

	collector.ObserveTick(3*time.Millisecond, 7, 4)
	collector.ObserveTick(time.Millisecond, 6, 2)
	collector.SetQueueDepth(5)
	collector.EncounterResolved()
	collector.PairDiscarded()
	collector.PairDiscarded()
	collector.KillRecorded(model.KindDesman, model.KindBear, combat.RuleSpecial)

	require.Equal(t, 2.0, testutil.ToFloat64(collector.Ticks))
	require.Equal(t, 6.0, testutil.ToFloat64(collector.Candidates))
	require.Equal(t, 6.0, testutil.ToFloat64(collector.Movers))
	require.Equal(t, 5.0, testutil.ToFloat64(collector.QueueDepth))
	require.Equal(t, 2.0, testutil.ToFloat64(collector.StalePairs))
	require.Equal(t, 1.0, testutil.ToFloat64(collector.Kills.WithLabelValues("Desman", "Bear", "special")))
	require.Equal(t, uint64(2), histogramSampleCount(t, reg, "arena_scanner_tick_duration_seconds", nil))
}

func TestSimCollectorTracksRegistryCensus(t *testing.T) {
	promReg := prometheus.NewRegistry()
	collector, err := NewSimCollector(promReg)
	require.NoError(t, err)

	f := core.NewFactory()
	registry := kb.NewRegistry(f, kb.WithAliveRecorder(collector))
	var actors []*core.Actor
	for _, tc := range []struct {
		kind model.Kind
		name string
	}{
		{model.KindBear, "b1"}, {model.KindBear, "b2"}, {model.KindDesman, "d1"},
	} {
		a, err := f.Construct(tc.kind, 1, 1, tc.name)
		require.NoError(t, err)
		actors = append(actors, a)
	}
	require.NoError(t, registry.Add(actors...))

	require.Equal(t, 2.0, testutil.ToFloat64(collector.Alive.WithLabelValues("Bear")))
	require.Equal(t, 0.0, testutil.ToFloat64(collector.Alive.WithLabelValues("Bittern")))

	actors[0].Kill()
	registry.Census()
	require.Equal(t, 1.0, testutil.ToFloat64(collector.Alive.WithLabelValues("Bear")))

	registry.Clear()
	require.Equal(t, 0.0, testutil.ToFloat64(collector.Alive.WithLabelValues("Desman")))
}

func TestNewSimCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	require.NoError(t, err)
	second, err := NewSimCollector(reg)
	require.NoError(t, err)

	second.EncounterResolved()
	require.Equal(t, 1.0, testutil.ToFloat64(first.Encounters), "shared encounters counter")
}

func TestNewSimCollectorRejectsIncompatibleCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arena_scanner_tick_duration_seconds",
		Help: "Time spent moving actors and detecting candidates in one tick.",
	}))

	_, err := NewSimCollector(reg)
	require.Error(t, err)
}

func TestMetricsHandlerExposesArenaMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	require.NoError(t, err)
	collector.ObserveTick(time.Millisecond, 1, 0)
	collector.SetAlive(model.KindBittern, 9)
	collector.KillRecorded(model.KindBear, model.KindBittern, combat.RuleRoll)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, metric := range []string{
		"arena_scanner_ticks_total",
		"arena_scanner_tick_duration_seconds",
		"arena_battle_queue_depth",
		`arena_alive_actors{kind="Bittern"} 9`,
		`arena_kills_total{killer="Bear",rule="roll",victim="Bittern"} 1`,
	} {
		require.Contains(t, body, metric)
	}
}

func TestNilSimCollectorIsSafe(t *testing.T) {
	var c *SimCollector
	c.ObserveTick(time.Second, 1, 1)
	c.SetQueueDepth(1)
	c.EncounterResolved()
	c.PairDiscarded()
	c.KillRecorded(model.KindBear, model.KindDesman, combat.RuleRoll)
	c.SetAlive(model.KindBear, 1)
	require.Nil(t, c.Gatherer())
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	require.NoError(t, err)
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
