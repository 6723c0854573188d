package power

import (
	"context"
	"sync"
	"time"
)

// FakeRestarter records restart requests.
type FakeRestarter struct {
	mu      sync.Mutex
	reasons []string
}

// NewFakeRestarter creates a FakeRestarter.
func NewFakeRestarter() *FakeRestarter {
	return &FakeRestarter{}
}

// Restart records reason.
func (f *FakeRestarter) Restart(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
}

// Reasons returns the recorded reasons.
func (f *FakeRestarter) Reasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reasons))
	copy(out, f.reasons)
	return out
}

// Requested reports whether any restart was requested.
func (f *FakeRestarter) Requested() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons) > 0
}

// FakeSleeper records sleep requests and returns immediately.
type FakeSleeper struct {
	mu        sync.Mutex
	durations []time.Duration

	// SleepError, if set, will be returned by Sleep().
	SleepError error
}

// NewFakeSleeper creates a FakeSleeper.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{}
}

// Sleep records d.
func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SleepError != nil {
		return f.SleepError
	}
	f.durations = append(f.durations, d)
	return nil
}

// Durations returns the recorded sleep durations.
func (f *FakeSleeper) Durations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.durations))
	copy(out, f.durations)
	return out
}
