package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/npc-arena/model"
)

// SimCollector bundles Prometheus metrics for the arena simulation. It
// satisfies sim.MetricsRecorder and kb.AliveRecorder so the loops and the
// registry can drive it directly.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Movers       prometheus.Gauge
	Candidates   prometheus.Counter
	QueueDepth   prometheus.Gauge
	Encounters   prometheus.Counter
	StalePairs   prometheus.Counter
	Kills        *prometheus.CounterVec
	Alive        *prometheus.GaugeVec
}

// NewSimCollector registers arena metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Registering twice
// against the same registry returns the existing collectors.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_scanner_ticks_total",
		Help: "Number of completed scanner ticks.",
	}), "arena_scanner_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_scanner_tick_duration_seconds",
		Help:    "Time spent moving actors and detecting candidates in one tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "arena_scanner_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	movers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arena_scanner_movers",
		Help: "Live, moving actors seen by the last scanner tick.",
	}), "arena_scanner_movers")
	if err != nil {
		return nil, err
	}

	candidates, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_candidate_pairs_total",
		Help: "Candidate pairs queued by the scanner.",
	}), "arena_candidate_pairs_total")
	if err != nil {
		return nil, err
	}

	depth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arena_battle_queue_depth",
		Help: "Candidate pairs waiting for the battle worker.",
	}), "arena_battle_queue_depth")
	if err != nil {
		return nil, err
	}

	encounters, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_encounters_resolved_total",
		Help: "Encounters resolved in both directions by the battle worker.",
	}), "arena_encounters_resolved_total")
	if err != nil {
		return nil, err
	}

	stale, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_stale_pairs_total",
		Help: "Queued pairs discarded because a participant died or disappeared.",
	}), "arena_stale_pairs_total")
	if err != nil {
		return nil, err
	}

	kills, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_kills_total",
		Help: "Kills, labeled by killer kind, victim kind and deciding rule.",
	}, []string{"killer", "victim", "rule"}), "arena_kills_total")
	if err != nil {
		return nil, err
	}

	alive, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arena_alive_actors",
		Help: "Live actors per kind at the last census.",
	}, []string{"kind"}), "arena_alive_actors")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:     gatherer,
		Ticks:        ticks,
		TickDuration: tickDuration,
		Movers:       movers,
		Candidates:   candidates,
		QueueDepth:   depth,
		Encounters:   encounters,
		StalePairs:   stale,
		Kills:        kills,
		Alive:        alive,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one scanner pass.
func (c *SimCollector) ObserveTick(d time.Duration, movers, candidates int) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.Movers.Set(float64(movers))
	c.Candidates.Add(float64(candidates))
}

// SetQueueDepth updates the battle queue gauge.
func (c *SimCollector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

// EncounterResolved counts one fully resolved pair.
func (c *SimCollector) EncounterResolved() {
	if c == nil {
		return
	}
	c.Encounters.Inc()
}

// PairDiscarded counts one stale pair.
func (c *SimCollector) PairDiscarded() {
	if c == nil {
		return
	}
	c.StalePairs.Inc()
}

// KillRecorded counts one kill.
func (c *SimCollector) KillRecorded(killer, victim model.Kind, rule string) {
	if c == nil {
		return
	}
	c.Kills.WithLabelValues(killer.String(), victim.String(), rule).Inc()
}

// SetAlive updates the live count for kind.
func (c *SimCollector) SetAlive(kind model.Kind, n int) {
	if c == nil {
		return
	}
	c.Alive.WithLabelValues(kind.String()).Set(float64(n))
}
