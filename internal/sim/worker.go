package sim

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/internal/combat"
	"github.com/signalsfoundry/npc-arena/internal/logging"
	"github.com/signalsfoundry/npc-arena/internal/notify"
	"github.com/signalsfoundry/npc-arena/kb"
)

// Worker drains the battle queue, re-validates each pair and resolves it in
// both directions.
type Worker struct {
	reg      *kb.Registry
	queue    *Queue
	resolver *combat.Resolver
	sink     notify.Sink
	log      logging.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer
}

// NewWorker wires a worker. A nil resolver selects one with fresh dice; a
// nil sink drops messages.
func NewWorker(reg *kb.Registry, queue *Queue, resolver *combat.Resolver, sink notify.Sink, log logging.Logger, metrics MetricsRecorder) *Worker {
	if resolver == nil {
		resolver = combat.NewResolver(nil)
	}
	if sink == nil {
		sink = notify.NewSubject()
	}
	if log == nil {
		log = logging.Noop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Worker{
		reg:      reg,
		queue:    queue,
		resolver: resolver,
		sink:     sink,
		log:      log,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// Run pops pairs until the queue is stopped and empty.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Debug(ctx, "battle worker started")
	defer w.log.Debug(ctx, "battle worker stopped")

	for {
		p, ok := w.queue.Pop()
		if !ok {
			return nil
		}
		w.Handle(ctx, p)
		w.metrics.SetQueueDepth(w.queue.Len())
	}
}

// Handle resolves one pair and returns the outcomes that produced a kill.
// Stale pairs, whose handles no longer resolve or whose actors are dead,
// are dropped silently.
func (w *Worker) Handle(ctx context.Context, p Pair) []combat.Outcome {
	a, okA := w.reg.Resolve(p.A)
	b, okB := w.reg.Resolve(p.B)
	if !okA || !okB || a == b || !a.IsAlive() || !b.IsAlive() {
		w.metrics.PairDiscarded()
		return nil
	}

	_, span := w.tracer.Start(ctx, "battle.resolve", trace.WithAttributes(
		attribute.String("battle.a", a.Name()),
		attribute.String("battle.b", b.Name()),
	))
	defer span.End()

	var kills []combat.Outcome
	// The rules are asymmetric, so each side acts once.
	for _, dir := range [2][2]*core.Actor{{a, b}, {b, a}} {
		out := w.resolver.Resolve(dir[0], dir[1])
		if !out.Occurred {
			continue
		}
		kills = append(kills, out)
		w.metrics.KillRecorded(out.Winner.Kind(), out.Loser.Kind(), out.Rule)
		w.sink.Notify(out.Message)
	}

	w.metrics.EncounterResolved()
	span.SetAttributes(attribute.Int("battle.kills", len(kills)))
	return kills
}
