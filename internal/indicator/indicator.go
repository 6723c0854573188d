// Package indicator drives the status LED in one of a few fixed patterns.
package indicator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/gpio"
	"github.com/sweeney/fridge-sensor/internal/scheduler"
)

// Pattern is an LED pattern.
type Pattern string

const (
	Off          Pattern = "off"
	On           Pattern = "on"
	NormalBlink  Pattern = "normal"  // connected
	OfflineBlink Pattern = "offline" // no network
)

const (
	normalPeriod  = 500 * time.Millisecond
	offlinePeriod = 200 * time.Millisecond
)

// Indicator owns the LED line.
type Indicator struct {
	mu      sync.Mutex
	led     gpio.Output
	sched   scheduler.Scheduler
	logger  *zap.SugaredLogger
	pattern Pattern
	lit     bool
	blink   scheduler.Task
}

// New returns an indicator with the LED off.
func New(led gpio.Output, sched scheduler.Scheduler, logger *zap.SugaredLogger) *Indicator {
	return &Indicator{led: led, sched: sched, logger: logger, pattern: Off}
}

// Set switches to pattern, replacing the current one.
func (i *Indicator) Set(p Pattern) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.blink != nil {
		i.blink.Stop()
		i.blink = nil
	}
	i.pattern = p

	switch p {
	case On:
		i.write(true)
	case NormalBlink, OfflineBlink:
		period := normalPeriod
		if p == OfflineBlink {
			period = offlinePeriod
		}
		i.write(true)
		i.blink = i.sched.Every("led-"+string(p), period, i.toggle)
	default:
		i.pattern = Off
		i.write(false)
	}
}

// Pattern returns the current pattern.
func (i *Indicator) Pattern() Pattern {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pattern
}

func (i *Indicator) toggle() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.pattern != NormalBlink && i.pattern != OfflineBlink {
		return
	}
	i.write(!i.lit)
}

func (i *Indicator) write(on bool) {
	if err := i.led.Set(on); err != nil {
		i.logger.Debugw("led write failed", "error", err)
		return
	}
	i.lit = on
}
