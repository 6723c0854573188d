package gpio

import (
	"errors"
	"sync"
)

// FakeOutput is a test double that records every value written.
type FakeOutput struct {
	mu sync.Mutex

	// Values holds every value successfully written, in order.
	Values []bool

	// SetError, if set, will be returned by Set() and the value not recorded.
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the value.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	return nil
}

// State returns the last value written, false if none.
func (f *FakeOutput) State() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return false
	}
	return f.Values[len(f.Values)-1]
}

// Writes returns the number of successful writes.
func (f *FakeOutput) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Values)
}

// FailWith sets the error returned by subsequent writes. nil restores them.
func (f *FakeOutput) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetError = err
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeInput is a test double that returns scripted GPIO values.
type FakeInput struct {
	mu sync.Mutex

	// Samples contains scripted values to return.
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeInput creates a FakeInput with the given samples.
func NewFakeInput(samples ...bool) *FakeInput {
	return &FakeInput{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInput) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset resets the input to the beginning of samples.
func (f *FakeInput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Closed = false
}
