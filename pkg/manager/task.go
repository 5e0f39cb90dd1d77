package manager

import (
	"context"
	"sync"
	"time"
)

type taskState int

const (
	taskIdle taskState = iota
	taskRunning
	taskCancelRequested
)

// task is a periodic background loop with at most one live instance.
type task struct {
	mu     sync.Mutex
	state  taskState
	cancel context.CancelFunc
	done   chan struct{}
	runs   int
}

// start runs tick every interval until tick reports done or the task is stopped.
// It returns false when an instance is already live.
func (t *task) start(parent context.Context, interval time.Duration, tick func(ctx context.Context) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != taskIdle {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	t.state = taskRunning
	t.cancel = cancel
	t.done = done
	t.runs++

	go func() {
		defer close(done)
		defer t.finish(cancel)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if tick(ctx) {
					return
				}
			}
		}
	}()
	return true
}

func (t *task) finish(cancel context.CancelFunc) {
	cancel()
	t.mu.Lock()
	t.state = taskIdle
	t.cancel = nil
	t.mu.Unlock()
}

// stop cancels a live instance and waits for it to exit.
func (t *task) stop() {
	t.mu.Lock()
	if t.state != taskRunning {
		done := t.done
		t.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	t.state = taskCancelRequested
	t.cancel()
	done := t.done
	t.mu.Unlock()
	<-done
}

func (t *task) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != taskIdle
}

func (t *task) starts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}
