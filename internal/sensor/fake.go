package sensor

import (
	"errors"
	"sync"
)

// Reading is one scripted sensor result.
type Reading struct {
	Temp float64
	Err  error
}

// OK returns a successful scripted reading.
func OK(temp float64) Reading {
	return Reading{Temp: temp}
}

// Disconnected returns a scripted disconnected reading.
func Disconnected() Reading {
	return Reading{Err: ErrDisconnected}
}

// FakeSensor is a test double that returns scripted readings.
type FakeSensor struct {
	mu sync.Mutex

	// Readings contains the scripted results. Each call to ReadTemperature
	// consumes the next one; the last is repeated once exhausted.
	Readings []Reading

	index int

	// Calls counts ReadTemperature calls.
	Calls int
}

// NewFakeSensor creates a FakeSensor with the given readings.
func NewFakeSensor(readings ...Reading) *FakeSensor {
	return &FakeSensor{Readings: readings}
}

// ReadTemperature returns the next scripted reading.
func (f *FakeSensor) ReadTemperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++

	if len(f.Readings) == 0 {
		return 0, errors.New("no readings configured")
	}

	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r.Temp, r.Err
}
