// Package scheduler runs periodic tasks that can be cancelled through the
// handle returned when they are started.
package scheduler

import (
	"sync"
	"time"
)

// Task is the cancellation handle of a periodic task.
type Task interface {
	// Stop cancels the task. No fire starts after Stop returns.
	// A fire already running is not interrupted. Stop is idempotent.
	Stop()
}

// Scheduler starts periodic tasks.
type Scheduler interface {
	// Every calls fn every period until the returned Task is stopped.
	// The first call happens one period after Every returns.
	Every(name string, period time.Duration, fn func()) Task
}

// Ticker is the real Scheduler, one goroutine and time.Ticker per task.
type Ticker struct{}

// New returns the real scheduler.
func New() *Ticker {
	return &Ticker{}
}

type tickerTask struct {
	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
}

// Every starts fn on its own goroutine.
func (Ticker) Every(name string, period time.Duration, fn func()) Task {
	t := &tickerTask{stop: make(chan struct{})}
	go t.run(period, fn)
	return t
}

func (t *tickerTask) run(period time.Duration, fn func()) {
	tk := time.NewTicker(period)
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tk.C:
			// The ticker and stop channel can both be ready; re-check.
			t.mu.Lock()
			stopped := t.stopped
			t.mu.Unlock()
			if stopped {
				return
			}
			fn()
		}
	}
}

func (t *tickerTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}
