package controller

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/settings"
)

// SwitchMode persists mode and requests a restart. The restart is requested
// even when persisting fails.
func (c *Controller) SwitchMode(mode logic.Mode, reason string) {
	c.mu.Lock()
	from := c.cfg.Mode
	c.cfg.Mode = mode
	c.persistLocked()
	c.mu.Unlock()

	c.log.Infow("mode switch, restarting", "from", from, "to", mode, "reason", reason)
	c.opts.Restarter.Restart(reason)
}

// ApplyUpdate applies string-typed values from the configuration UI. Keys
// that fail are reported together and the rest are still applied. The record
// is persisted when any key was given. A MODE different from the running
// one is stored with the rest and then triggers a restart.
func (c *Controller) ApplyUpdate(values map[string]string) (settings.Config, error) {
	c.mu.Lock()

	if len(values) == 0 {
		defer c.mu.Unlock()
		return c.cfg.Clone(), nil
	}

	var (
		errs      error
		switchTo  logic.Mode
		rest      = make(map[string]string, len(values))
		reminders = c.cfg.ReminderMinutes
	)
	for k, v := range values {
		if !strings.EqualFold(k, "MODE") {
			rest[k] = v
			continue
		}
		m, err := logic.ParseMode(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		if m != c.cfg.Mode {
			switchTo = m
		}
	}

	errs = multierr.Append(errs, c.cfg.Apply(rest))

	if c.cfg.ReminderMinutes != reminders && c.reminder != nil {
		c.disarmReminderLocked()
		c.armReminderLocked()
	}
	if c.opts.Tracker != nil {
		c.opts.Tracker.SetThresholds(c.cfg.Thresholds())
	}

	from := c.cfg.Mode
	if switchTo != "" {
		c.cfg.Mode = switchTo
	}
	c.persistLocked()
	out := c.cfg.Clone()
	c.mu.Unlock()

	if errs != nil {
		c.log.Warnw("configuration update partly rejected", "error", errs)
	}
	if switchTo != "" {
		c.log.Infow("mode switch, restarting", "from", from, "to", switchTo, "reason", ReasonModeChange)
		c.opts.Restarter.Restart(ReasonModeChange)
	}
	return out, errs
}
