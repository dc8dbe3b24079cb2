package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/internal/combat"
	"github.com/signalsfoundry/npc-arena/internal/logging"
	"github.com/signalsfoundry/npc-arena/internal/notify"
	"github.com/signalsfoundry/npc-arena/kb"
	"github.com/signalsfoundry/npc-arena/timectrl"
)

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("simulation already started")

// State is the driver lifecycle stage.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option customises a Simulation.
type Option func(*Simulation)

// WithTickInterval sets the scanner sleep between ticks.
func WithTickInterval(d time.Duration) Option {
	return func(s *Simulation) { s.interval = d }
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Simulation) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDice sets the generator owned by the battle worker.
func WithDice(d core.Dice) Option {
	return func(s *Simulation) { s.dice = d }
}

// WithRandomWalk sets the movement generator owned by the scanner.
func WithRandomWalk(w *core.RandomWalk) Option {
	return func(s *Simulation) { s.walk = w }
}

// Simulation owns the scanner and battle worker goroutines over one
// registry. It moves Idle -> Running -> Stopping -> Stopped and never
// restarts.
type Simulation struct {
	reg   *kb.Registry
	queue *Queue
	sink  notify.Sink

	interval time.Duration
	dice     core.Dice
	walk     *core.RandomWalk
	log      logging.Logger
	metrics  MetricsRecorder

	scanner *Scanner
	worker  *Worker

	// mu serialises lifecycle transitions; state is readable without it.
	mu       sync.Mutex
	state    atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// New builds an idle simulation over reg that reports kills to sink.
func New(reg *kb.Registry, sink notify.Sink, opts ...Option) *Simulation {
	s := &Simulation{
		reg:      reg,
		queue:    NewQueue(),
		sink:     sink,
		interval: DefaultTickInterval,
		log:      logging.Noop(),
		metrics:  nopMetrics{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.scanner = NewScanner(reg, s.queue, s.walk, s.interval, s.log.With(logging.String("loop", "scanner")), s.metrics)
	s.worker = NewWorker(reg, s.queue, combat.NewResolver(s.dice), sink, s.log.With(logging.String("loop", "battle")), s.metrics)
	return s
}

// State returns the current lifecycle stage.
func (s *Simulation) State() State {
	return State(s.state.Load())
}

// Queue exposes the battle queue, mainly for tests and metrics.
func (s *Simulation) Queue() *Queue {
	return s.queue
}

// Registry returns the simulated population.
func (s *Simulation) Registry() *kb.Registry {
	return s.reg
}

// Start launches the scanner and the battle worker. Cancelling ctx has the
// same effect as Stop.
func (s *Simulation) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateIdle {
		return ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Store(int32(StateRunning))

	g, gctx := errgroup.WithContext(runCtx)
	// A blocked Pop does not observe the context, so the stop signal is
	// forwarded to the queue explicitly.
	context.AfterFunc(gctx, func() {
		s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		s.queue.Stop()
	})
	g.Go(func() error { return s.scanner.Run(gctx) })
	g.Go(func() error { return s.worker.Run(gctx) })

	s.log.Info(ctx, "simulation started",
		logging.Int("actors", s.reg.Len()),
		logging.Duration("tick", s.interval),
	)

	go func() {
		err := g.Wait()
		cancel()
		s.finish(err)
	}()
	return nil
}

// Stop requests shutdown. It is idempotent and does not wait; use Wait or
// Done for that.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateIdle:
		s.state.Store(int32(StateStopped))
		s.queue.Stop()
		s.finishLocked(nil)
	case StateRunning:
		s.state.Store(int32(StateStopping))
		s.cancel()
	}
}

// Done is closed once both loops have exited.
func (s *Simulation) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until both loops have exited and returns the first loop
// error, if any.
func (s *Simulation) Wait() error {
	<-s.done
	return s.err
}

// Run starts the simulation, calls onStatus every statusEvery, and stops
// after duration (or when ctx is cancelled). It returns once both loops have
// exited, so callers may read actor state freely afterwards.
func (s *Simulation) Run(ctx context.Context, duration, statusEvery time.Duration, onStatus func(elapsed time.Duration)) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	tc := timectrl.NewTimeController(statusEvery)
	tc.AddListener(onStatus)

	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	select {
	case <-tc.Start(tickCtx, duration):
		if ctx.Err() == nil {
			s.log.Info(ctx, "time's up, stopping simulation", logging.Duration("elapsed", tc.Elapsed()))
		}
	case <-s.Done():
	}

	s.Stop()
	return s.Wait()
}

func (s *Simulation) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Store(int32(StateStopped))
	s.finishLocked(err)
}

func (s *Simulation) finishLocked(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		s.log.Info(context.Background(), "simulation stopped", logging.Int("queued", s.queue.Len()))
		close(s.done)
	})
}
