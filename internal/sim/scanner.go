package sim

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/internal/logging"
	"github.com/signalsfoundry/npc-arena/kb"
)

const tracerName = "github.com/signalsfoundry/npc-arena/internal/sim"

// DefaultTickInterval is the scanner sleep between ticks.
const DefaultTickInterval = 100 * time.Millisecond

type mover struct {
	h kb.Handle
	a *core.Actor
}

// Scanner moves every live, moving actor once per tick and queues the pairs
// that end the tick within kill range.
type Scanner struct {
	reg      *kb.Registry
	queue    *Queue
	walk     *core.RandomWalk
	interval time.Duration
	log      logging.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer

	movers     []mover
	candidates []Pair
}

// NewScanner wires a scanner. A nil walk selects an independently seeded
// core.RandomWalk.
func NewScanner(reg *kb.Registry, queue *Queue, walk *core.RandomWalk, interval time.Duration, log logging.Logger, metrics MetricsRecorder) *Scanner {
	if walk == nil {
		walk = core.NewRandomWalk()
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if log == nil {
		log = logging.Noop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Scanner{
		reg:      reg,
		queue:    queue,
		walk:     walk,
		interval: interval,
		log:      log,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// Run ticks until ctx is cancelled. The queue is left open; stopping it is
// the driver's job.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.Debug(ctx, "scanner started", logging.Duration("interval", s.interval))
	defer s.log.Debug(ctx, "scanner stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.Tick(ctx)

		timer.Reset(s.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Tick performs one movement and detection pass and returns the number of
// candidate pairs queued.
func (s *Scanner) Tick(ctx context.Context) int {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scanner.tick")
	defer span.End()

	s.movers = s.movers[:0]
	s.candidates = s.candidates[:0]

	s.reg.WithReadLock(func(v kb.View) {
		v.ForEachLiveMoving(func(h kb.Handle, a *core.Actor) {
			s.movers = append(s.movers, mover{h: h, a: a})
		})

		// All moves land before any distance is measured.
		for _, m := range s.movers {
			if m.a.IsMoving() {
				s.walk.Step(m.a)
			}
		}

		for i, m := range s.movers {
			if !m.a.IsMoving() {
				continue
			}
			// The scanning actor's own range decides whether it perceives
			// the other; ranges are not symmetric across kinds.
			killRange := float64(m.a.Kind().Stats().KillRange)
			for j, other := range s.movers {
				if i == j || !other.a.IsMoving() {
					continue
				}
				if m.a.DistanceTo(other.a) <= killRange {
					s.candidates = append(s.candidates, Pair{A: m.h, B: other.h})
				}
			}
		}
	})

	// Queue after releasing the registry lock so no goroutine ever holds the
	// registry and queue locks together.
	for _, p := range s.candidates {
		s.queue.Push(p)
	}

	movers, found := len(s.movers), len(s.candidates)
	s.metrics.ObserveTick(time.Since(start), movers, found)
	s.metrics.SetQueueDepth(s.queue.Len())
	span.SetAttributes(
		attribute.Int("scanner.movers", movers),
		attribute.Int("scanner.candidates", found),
	)
	if found > 0 {
		s.log.Debug(ctx, "scanner queued candidates",
			logging.Int("movers", movers),
			logging.Int("candidates", found),
		)
	}

	// Release actor pointers held by the scratch buffer between ticks.
	clear(s.movers)
	return found
}
