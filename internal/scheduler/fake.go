package scheduler

import (
	"sync"
	"time"
)

// FakeTask is a task created by Fake.
type FakeTask struct {
	Name   string
	Period time.Duration

	mu      sync.Mutex
	fn      func()
	stopped bool
}

// Stop marks the task stopped.
func (t *FakeTask) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Stopped reports whether Stop was called.
func (t *FakeTask) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fake is a test double that only fires tasks when told to.
type Fake struct {
	mu    sync.Mutex
	tasks []*FakeTask
}

// NewFake creates a Fake scheduler.
func NewFake() *Fake {
	return &Fake{}
}

// Every records the task without starting anything.
func (f *Fake) Every(name string, period time.Duration, fn func()) Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &FakeTask{Name: name, Period: period, fn: fn}
	f.tasks = append(f.tasks, t)
	return t
}

// Fire runs every live task named name once and returns how many ran.
func (f *Fake) Fire(name string) int {
	n := 0
	for _, t := range f.Live(name) {
		t.fn()
		n++
	}
	return n
}

// FireStopped runs every task named name, including stopped ones. It models
// a fire that was already in flight when the task was stopped.
func (f *Fake) FireStopped(name string) int {
	n := 0
	for _, t := range f.All(name) {
		if t.Stopped() {
			t.fn()
			n++
		}
	}
	return n
}

// All returns every task ever created with name.
func (f *Fake) All(name string) []*FakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*FakeTask
	for _, t := range f.tasks {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out
}

// Live returns the tasks named name that have not been stopped.
func (f *Fake) Live(name string) []*FakeTask {
	var out []*FakeTask
	for _, t := range f.All(name) {
		if !t.Stopped() {
			out = append(out, t)
		}
	}
	return out
}
