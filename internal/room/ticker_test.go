package room

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTaskManagerRunsAndCancels(t *testing.T) {
	tm := NewTaskManager(zap.NewNop())
	var calls atomic.Int32
	var sawStep atomic.Bool

	tm.Start(context.Background(), "face", 5*time.Millisecond, func(ctx context.Context, step time.Duration) {
		if step > 0 {
			sawStep.Store(true)
		}
		calls.Add(1)
	})
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, sawStep.Load())
	assert.True(t, tm.Running("face"))

	assert.True(t, tm.Cancel("face"))
	assert.False(t, tm.Running("face"))
	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())

	assert.False(t, tm.Cancel("face"))
}

func TestTaskManagerShutdown(t *testing.T) {
	tm := NewTaskManager(zap.NewNop())
	noop := func(context.Context, time.Duration) {}
	tm.Start(context.Background(), "a", time.Millisecond, noop)
	tm.Start(context.Background(), "b", time.Millisecond, noop)

	tm.Shutdown()
	assert.False(t, tm.Running("a"))
	assert.False(t, tm.Running("b"))
}

func TestTaskStopsWithParentContext(t *testing.T) {
	tm := NewTaskManager(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	tm.Start(ctx, "elapsed", time.Millisecond, func(context.Context, time.Duration) { calls.Add(1) })
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}
