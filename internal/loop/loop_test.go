package loop_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/loop"
)

func startLoop(t *testing.T) *loop.Loop {
	t.Helper()

	l := loop.New(logger.NewNoOpLogger())
	ctx, cancel := context.WithCancel(context.Background())

	go func() { _ = l.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	return l
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := range 5 {
		l.Post("append", func() { got = append(got, i) })
	}

	require.NoError(t, l.Call(context.Background(), "sync", func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l := startLoop(t)

	l.Post("boom", func() { panic("tick failed") })

	ran := false
	require.NoError(t, l.Call(context.Background(), "after", func() { ran = true }))
	assert.True(t, ran, "Tasks after a panic should still run")
}

func TestLoop_PostFromTask(t *testing.T) {
	l := startLoop(t)

	done := make(chan struct{})
	l.Post("outer", func() {
		l.Post("inner", func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Nested post did not run")
	}
}

func TestLoop_EveryNeverOverlaps(t *testing.T) {
	l := startLoop(t)

	var active, overlaps, ticks atomic.Int32
	timer := l.Every("tick", time.Millisecond, func() {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(3 * time.Millisecond)
		ticks.Add(1)
		active.Add(-1)
	})
	defer timer.Stop()

	require.Eventually(t, func() bool { return ticks.Load() >= 5 }, 2*time.Second, time.Millisecond)
	assert.Zero(t, overlaps.Load())
}

func TestLoop_StopFromTaskIsImmediate(t *testing.T) {
	l := startLoop(t)

	var ticks atomic.Int32
	var timer *loop.Timer
	timer = l.Every("tick", time.Millisecond, func() {
		if ticks.Add(1) == 3 {
			timer.Stop()
		}
	})

	require.Eventually(t, timer.Stopped, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Call(context.Background(), "sync", func() {}))
	assert.Equal(t, int32(3), ticks.Load())
}

func TestLoop_AfterFiresOnce(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Int32
	timer := l.After("once", 5*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, timer.Stopped())
}

func TestLoop_AfterStoppedNeverFires(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Bool
	timer := l.After("once", 10*time.Millisecond, func() { fired.Store(true) })
	timer.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestLoop_WhenPrefersReadySignal(t *testing.T) {
	l := startLoop(t)

	ready := make(chan struct{})
	var fired atomic.Bool
	l.When("claim", ready, time.Hour, func() { fired.Store(true) })

	close(ready)
	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
}

func TestLoop_WhenFallsBackToDelay(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Bool
	l.When("claim", nil, 5*time.Millisecond, func() { fired.Store(true) })

	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
}

func TestLoop_PostAfterStop(t *testing.T) {
	l := loop.New(logger.NewNoOpLogger())
	ctx, cancel := context.WithCancel(context.Background())

	go func() { _ = l.Run(ctx) }()
	cancel()
	<-l.Done()

	assert.False(t, l.Post("late", func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), "late", func() {}), loop.ErrStopped)
}

func TestLoop_RunTwice(t *testing.T) {
	l := startLoop(t)

	// Wait until the first Run has claimed the loop
	require.NoError(t, l.Call(context.Background(), "sync", func() {}))
	assert.Error(t, l.Run(context.Background()))
}
