//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// RealOutput drives an output line on actual hardware.
type RealOutput struct {
	line *gpiocdev.Line
}

// NewRealOutput requests pin as an output, initially low.
func NewRealOutput(chip string, pin int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{line: line}, nil
}

// Set drives the line.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.line.Offset(), err)
	}
	return nil
}

// Close releases the line.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing so the relay is not left energised across a restart.
func (o *RealOutput) Close() error {
	if o.line == nil {
		return nil
	}
	var errs error
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reconfigure pin %d: %w", o.line.Offset(), err))
	}
	if err := o.line.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close pin %d: %w", o.line.Offset(), err))
	}
	return errs
}

// RealInput reads an active-low button line on actual hardware.
type RealInput struct {
	line *gpiocdev.Line
}

// NewRealInput requests pin as an input with pull-up.
func NewRealInput(chip string, pin int) (*RealInput, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	return &RealInput{line: line}, nil
}

// Read returns true while the button is pressed.
// Inverts raw GPIO: raw 0 = pressed.
func (i *RealInput) Read() (bool, error) {
	raw, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", i.line.Offset(), err)
	}
	return raw == 0, nil
}

// Close releases the line.
func (i *RealInput) Close() error {
	if i.line == nil {
		return nil
	}
	if err := i.line.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", i.line.Offset(), err)
	}
	return nil
}
