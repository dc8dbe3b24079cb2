package timectrl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeControllerRunsForDuration(t *testing.T) {
	tc := NewTimeController(10 * time.Millisecond)

	var mu sync.Mutex
	var seen []time.Duration
	tc.AddListener(func(elapsed time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, elapsed)
	})

	select {
	case <-tc.Start(context.Background(), 50*time.Millisecond):
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	// The deadline and the last tick race, so the final tick may be lost.
	require.GreaterOrEqual(t, len(seen), 3, "%v", seen)
	require.LessOrEqual(t, len(seen), 5, "%v", seen)
	for i, e := range seen {
		require.Equal(t, time.Duration(i+1)*10*time.Millisecond, e, "tick %d", i)
	}
	require.Equal(t, 50*time.Millisecond, tc.Elapsed())
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	tc := NewTimeController(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller ignored cancellation")
	}
}

func TestTimeControllerDeadlineIndependentOfTick(t *testing.T) {
	tc := NewTimeController(time.Hour)
	calls := 0
	tc.AddListener(func(time.Duration) { calls++ })

	select {
	case <-tc.Start(context.Background(), 30*time.Millisecond):
	case <-time.After(2 * time.Second):
		t.Fatalf("controller waited for the tick instead of the deadline")
	}
	require.Zero(t, calls)
	require.Equal(t, 30*time.Millisecond, tc.Elapsed())
}

func TestNewTimeControllerDefaultsTick(t *testing.T) {
	require.Equal(t, time.Second, NewTimeController(0).Tick)
	NewTimeController(time.Second).AddListener(nil)
}
