// Package power handles restarts and RTC-timed suspend.
package power

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Restarter requests that the daemon restart itself.
type Restarter interface {
	Restart(reason string)
}

// Sleeper suspends the machine for d.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ChannelRestarter delivers restart requests to the main loop.
// Only the first request is kept; later ones are redundant.
type ChannelRestarter struct {
	ch chan string
}

// NewChannelRestarter creates a ChannelRestarter.
func NewChannelRestarter() *ChannelRestarter {
	return &ChannelRestarter{ch: make(chan string, 1)}
}

// Restart queues a restart request without blocking.
func (r *ChannelRestarter) Restart(reason string) {
	select {
	case r.ch <- reason:
	default:
	}
}

// C returns the channel carrying restart reasons.
func (r *ChannelRestarter) C() <-chan string {
	return r.ch
}

// Default sysfs paths.
const (
	DefaultWakeAlarm  = "/sys/class/rtc/rtc0/wakealarm"
	DefaultPowerState = "/sys/power/state"
)

// ErrSuspendUnavailable is returned when the RTC or suspend interface is missing.
var ErrSuspendUnavailable = errors.New("suspend unavailable")

// RTCSleeper arms the RTC wake alarm and suspends to RAM.
// The write to the power state file returns after wake-up.
type RTCSleeper struct {
	WakeAlarm  string
	PowerState string
	Now        func() time.Time
}

// NewRTCSleeper uses the default sysfs paths.
func NewRTCSleeper() *RTCSleeper {
	return &RTCSleeper{WakeAlarm: DefaultWakeAlarm, PowerState: DefaultPowerState, Now: time.Now}
}

// Sleep arms the wake alarm d from now and suspends.
func (s *RTCSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.WakeAlarm); err != nil {
		return fmt.Errorf("%w: %v", ErrSuspendUnavailable, err)
	}

	// The alarm must be cleared before a new time is accepted.
	if err := os.WriteFile(s.WakeAlarm, []byte("0"), 0); err != nil {
		return fmt.Errorf("clear wake alarm: %w", err)
	}
	wake := s.Now().Add(d).Unix()
	if err := os.WriteFile(s.WakeAlarm, []byte(strconv.FormatInt(wake, 10)), 0); err != nil {
		return fmt.Errorf("arm wake alarm: %w", err)
	}
	if err := os.WriteFile(s.PowerState, []byte("mem"), 0); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	return nil
}

// Wait blocks for d or until ctx is done. It stands in for suspend when
// the hardware cannot sleep.
func Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
