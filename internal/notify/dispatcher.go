package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the queue has no room.
var ErrQueueFull = errors.New("dispatch queue full")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher closed")

// DefaultQueueSize is the number of jobs that may wait for the worker.
const DefaultQueueSize = 32

// jobTimeout bounds a single delivery attempt.
const jobTimeout = 30 * time.Second

type job struct {
	id   string
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher runs outbound work on a single worker in submission order.
// Submit never blocks, so it is safe to call while holding a lock.
type Dispatcher struct {
	jobs   chan job
	done   chan struct{}
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker. size <= 0 uses DefaultQueueSize.
func NewDispatcher(size int, logger *zap.SugaredLogger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	d := &Dispatcher{
		jobs:   make(chan job, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.work()
	return d
}

// Submit queues fn. The returned id identifies the job in the logs.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrClosed
	}

	j := job{id: uuid.NewString(), name: name, fn: fn}
	select {
	case d.jobs <- j:
		return j.id, nil
	default:
		d.logger.Warnw("dispatch queue full, dropping job", "job", name, "id", j.id)
		return "", ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

func (d *Dispatcher) work() {
	defer close(d.done)
	for j := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		start := time.Now()
		err := j.fn(ctx)
		cancel()
		if err != nil {
			d.logger.Warnw("job failed", "job", j.name, "id", j.id, "error", err)
			continue
		}
		d.logger.Debugw("job done", "job", j.name, "id", j.id, "took", time.Since(start))
	}
}

// Close stops accepting jobs and waits for queued ones to finish, or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
