package logic

import "time"

// PressDetector recognises a button held down for a minimum duration.
// It fires at most once per press; the button must be released before it
// can fire again.
type PressDetector struct {
	hold         time.Duration
	pressed      bool
	pressedSince time.Time
	fired        bool
}

// NewPressDetector creates a detector that fires after the button has been
// held for at least hold.
func NewPressDetector(hold time.Duration) *PressDetector {
	return &PressDetector{hold: hold}
}

// Process takes a new button sample and reports whether a long press
// completed on this sample.
func (d *PressDetector) Process(pressed bool, now time.Time) bool {
	if !pressed {
		d.pressed = false
		d.fired = false
		return false
	}

	if !d.pressed {
		// Start observing
		d.pressed = true
		d.pressedSince = now
		return false
	}

	if d.fired {
		return false
	}

	if now.Sub(d.pressedSince) >= d.hold {
		d.fired = true
		return true
	}
	return false
}

// Held reports how long the current press has lasted, zero when released.
func (d *PressDetector) Held(now time.Time) time.Duration {
	if !d.pressed {
		return 0
	}
	return now.Sub(d.pressedSince)
}
