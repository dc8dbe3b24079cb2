package sim

import (
	"time"

	"github.com/signalsfoundry/npc-arena/model"
)

// MetricsRecorder receives simulation measurements. The Prometheus
// collector in internal/observability implements it.
type MetricsRecorder interface {
	ObserveTick(d time.Duration, movers, candidates int)
	SetQueueDepth(n int)
	EncounterResolved()
	PairDiscarded()
	KillRecorded(killer, victim model.Kind, rule string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveTick(time.Duration, int, int)         {}
func (nopMetrics) SetQueueDepth(int)                           {}
func (nopMetrics) EncounterResolved()                          {}
func (nopMetrics) PairDiscarded()                              {}
func (nopMetrics) KillRecorded(model.Kind, model.Kind, string) {}
