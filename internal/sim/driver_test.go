package sim

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/kb"
	"github.com/signalsfoundry/npc-arena/model"
)

func waitDone(t *testing.T, s *Simulation) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("simulation did not stop, state=%s", s.State())
	}
}

func TestSimulation_Lifecycle(t *testing.T) {
	reg := newTestRegistry(t, core.NewFactory(), spawn{model.KindBear, 10, 10, "b"})
	s := New(reg, nil, WithTickInterval(5*time.Millisecond))

	require.Equal(t, StateIdle, s.State())
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, StateRunning, s.State())
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	s.Stop()
	s.Stop()
	waitDone(t, s)
	require.NoError(t, s.Wait())
	require.Equal(t, StateStopped, s.State())
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted, "restart")
	s.Stop()
}

func TestSimulation_StopBeforeStart(t *testing.T) {
	s := New(kb.NewRegistry(nil), nil)
	s.Stop()
	waitDone(t, s)
	require.Equal(t, StateStopped, s.State())
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestSimulation_ContextCancelStops(t *testing.T) {
	s := New(kb.NewRegistry(nil), nil, WithTickInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	waitDone(t, s)
	require.Equal(t, StateStopped, s.State())
}

func TestSimulation_ShutdownDrainsBacklog(t *testing.T) {
	reg := newTestRegistry(t, core.NewFactory(),
		spawn{model.KindBittern, 400, 400, "i1"},
		spawn{model.KindBittern, 400, 400, "i2"},
	)
	h := handlesByName(reg)
	m := newCountingMetrics()
	s := New(reg, nil, WithMetrics(m), WithTickInterval(time.Hour))

	// Stale handles are discarded; live ones are resolved harmlessly.
	for i := 0; i < 5000; i++ {
		if i%2 == 0 {
			s.Queue().Push(Pair{})
		} else {
			s.Queue().Push(Pair{A: h["i1"], B: h["i2"]})
		}
	}
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	waitDone(t, s)

	require.Zero(t, s.Queue().Len())
	m.mu.Lock()
	defer m.mu.Unlock()
	require.GreaterOrEqual(t, m.resolved+m.discarded, 5000)
}

func TestSimulation_RunReportsEveryDeathOnce(t *testing.T) {
	var spawns []spawn
	for i, k := range []model.Kind{
		model.KindBear, model.KindBittern, model.KindDesman,
		model.KindBear, model.KindBittern, model.KindDesman,
		model.KindBear, model.KindDesman,
	} {
		spawns = append(spawns, spawn{k, 0, 0, fmt.Sprintf("%s_%d", k, i)})
	}
	reg := newTestRegistry(t, pinnedFactory(), spawns...)
	sink := &recordingSink{}
	s := New(reg, sink,
		WithTickInterval(2*time.Millisecond),
		WithDice(core.NewSeededDice(7, 8)),
		WithRandomWalk(core.NewSeededRandomWalk(9, 10)),
	)

	var statuses atomic.Int32
	err := s.Run(context.Background(), 200*time.Millisecond, 50*time.Millisecond, func(time.Duration) {
		statuses.Add(1)
	})
	require.NoError(t, err)
	require.Equal(t, StateStopped, s.State())
	require.NotZero(t, statuses.Load(), "status callback never fired")

	alive := 0
	reg.ForEachLive(func(kb.Handle, *core.Actor) { alive++ })
	dead := reg.Len() - alive

	msgs := sink.Messages()
	require.Len(t, msgs, dead, "kill messages: %v", msgs)
	require.NotZero(t, dead, "no fights on a single-point map")

	killerRe := regexp.MustCompile(`^(\S+) kills (\S+) \(`)
	victims := make(map[string]bool)
	for _, msg := range msgs {
		m := killerRe.FindStringSubmatch(msg)
		require.NotNil(t, m, "malformed message %q", msg)
		require.False(t, strings.HasPrefix(m[1], "Bittern_"), "bittern credited with a kill: %q", msg)
		require.False(t, victims[m[2]], "%s reported dead twice", m[2])
		victims[m[2]] = true
	}
}

func TestSimulation_RunStopsOnContextCancel(t *testing.T) {
	s := New(kb.NewRegistry(nil), nil, WithTickInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Hour, time.Hour, nil) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("Run ignored cancellation")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:     "idle",
		StateRunning:  "running",
		StateStopping: "stopping",
		StateStopped:  "stopped",
		State(42):     "unknown",
	} {
		require.Equal(t, want, s.String(), "State(%d)", int(s))
	}
}
