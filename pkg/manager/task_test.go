package manager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskSingleInstance(t *testing.T) {
	var tk task
	var ticks atomic.Int32
	tick := func(context.Context) bool {
		ticks.Add(1)
		return false
	}

	assert.True(t, tk.start(t.Context(), 5*time.Millisecond, tick))
	assert.False(t, tk.start(t.Context(), 5*time.Millisecond, tick))
	assert.False(t, tk.start(t.Context(), 5*time.Millisecond, tick))
	assert.Equal(t, 1, tk.starts())

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
	tk.stop()
	assert.False(t, tk.running())
}

func TestTaskEndsWhenTickReportsDone(t *testing.T) {
	var tk task
	var ticks atomic.Int32
	assert.True(t, tk.start(t.Context(), time.Millisecond, func(context.Context) bool {
		return ticks.Add(1) == 3
	}))

	assert.Eventually(t, func() bool { return !tk.running() }, time.Second, time.Millisecond)
	assert.Equal(t, int32(3), ticks.Load())

	assert.True(t, tk.start(t.Context(), time.Millisecond, func(context.Context) bool { return true }))
	assert.Equal(t, 2, tk.starts())
	tk.stop()
}

func TestTaskStopWhenIdle(t *testing.T) {
	var tk task
	tk.stop()
	assert.False(t, tk.running())
}
