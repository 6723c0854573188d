// Package gpio provides the alarm, LED and button lines with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives a single output line.
type Output interface {
	// Set drives the line high (on) or low.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Input reads a single input line.
type Input interface {
	// Read returns the logical state of the line.
	// The button is wired active-low: raw 0 = pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	PinAlarm  = 23 // Alarm relay / buzzer
	PinLED    = 24 // Status LED
	PinButton = 25 // Mode button
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
