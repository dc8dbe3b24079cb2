package timectrl

import (
	"context"
	"sync"
	"time"
)

// TimeController emits a tick every Tick of wall-clock time and notifies
// registered listeners with the elapsed run time. It drives status output
// and the overall run deadline; it does not pace the simulation loops.
type TimeController struct {
	mu   sync.RWMutex
	Tick time.Duration

	elapsed   time.Duration
	listeners []func(elapsed time.Duration)
}

// NewTimeController constructs a controller.
func NewTimeController(tick time.Duration) *TimeController {
	if tick <= 0 {
		tick = time.Second
	}
	return &TimeController{Tick: tick}
}

// Elapsed returns the time advanced so far.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.elapsed
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(elapsed time.Duration)) {
	if fn == nil {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller in a separate goroutine until duration has
// elapsed (forever when duration <= 0) or ctx is cancelled. The returned
// channel is closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		tc.elapsed = 0
		tc.mu.Unlock()

		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()

		// The deadline is independent of the tick so a duration that is not
		// a multiple of it still ends on time.
		var deadline <-chan time.Time
		if duration > 0 {
			timer := time.NewTimer(duration)
			defer timer.Stop()
			deadline = timer.C
		}

		elapsed := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline:
				tc.mu.Lock()
				tc.elapsed = duration
				tc.mu.Unlock()
				return
			case <-ticker.C:
			}
			elapsed += tc.Tick
			if duration > 0 && elapsed > duration {
				elapsed = duration
			}

			tc.mu.Lock()
			tc.elapsed = elapsed
			listeners := append([]func(time.Duration){}, tc.listeners...)
			tc.mu.Unlock()

			for _, fn := range listeners {
				fn(elapsed)
			}
		}
	}()
	return done
}
