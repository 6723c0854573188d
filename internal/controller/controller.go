// Package controller owns the alarm state, the running configuration and the
// operating mode. Every mutation happens under one mutex: samples, reminder
// fires, configuration updates and mode switches are serialized.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/gpio"
	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/metrics"
	"github.com/sweeney/fridge-sensor/internal/mqtt"
	"github.com/sweeney/fridge-sensor/internal/notify"
	"github.com/sweeney/fridge-sensor/internal/power"
	"github.com/sweeney/fridge-sensor/internal/scheduler"
	"github.com/sweeney/fridge-sensor/internal/sensor"
	"github.com/sweeney/fridge-sensor/internal/settings"
	"github.com/sweeney/fridge-sensor/internal/status"
	"github.com/sweeney/fridge-sensor/internal/store"
)

// Defaults for Options.
const (
	DefaultSampleInterval = 10 * time.Second
	DefaultLongPress      = 5 * time.Second
	DefaultButtonPoll     = 100 * time.Millisecond
)

// Task names registered with the scheduler.
const (
	TaskSample   = "sample"
	TaskReminder = "reminder"
	TaskButton   = "button"
)

// Restart reasons.
const (
	ReasonLongPress  = "LONG_PRESS"
	ReasonModeChange = "MODE_CHANGE"
	ReasonEscalate   = "DEEP_SLEEP_ESCALATE"
	ReasonWake       = "DEEP_SLEEP_WAKE"
)

// Queue runs outbound work in submission order without blocking the caller.
type Queue interface {
	Submit(name string, fn func(ctx context.Context) error) (string, error)
}

// Options are the collaborators of a Controller. Events, Tracker and Metrics
// may be nil.
type Options struct {
	Store     store.Store
	Alarm     gpio.Output
	Gateway   notify.Gateway
	Queue     Queue
	Events    mqtt.Publisher
	Scheduler scheduler.Scheduler
	Restarter power.Restarter
	Tracker   *status.Tracker
	Metrics   *metrics.Metrics
	Logger    *zap.SugaredLogger
	Now       func() time.Time

	SampleInterval time.Duration
	LongPress      time.Duration
	ButtonPoll     time.Duration
}

// Controller is the alarm and mode state machine.
type Controller struct {
	opts Options
	log  *zap.SugaredLogger

	mu          sync.Mutex
	cfg         settings.Config
	outputDirty bool
	reminder    scheduler.Task
	reminderGen uint64
	tasks       []scheduler.Task
}

// New returns a controller running cfg.
func New(cfg settings.Config, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.LongPress <= 0 {
		opts.LongPress = DefaultLongPress
	}
	if opts.ButtonPoll <= 0 {
		opts.ButtonPoll = DefaultButtonPoll
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Controller{
		opts:        opts,
		log:         opts.Logger,
		cfg:         cfg.Clone(),
		outputDirty: true, // the line state is unknown until first driven
	}
}

// Settings returns a copy of the running configuration.
func (c *Controller) Settings() settings.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// ReminderArmed reports whether the reminder task exists.
func (c *Controller) ReminderArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reminder != nil
}

// Sample reads s once and feeds the result to OnSample.
func (c *Controller) Sample(s sensor.Sensor) logic.Transition {
	temp, err := s.ReadTemperature()
	return c.OnSample(temp, err)
}

// OnSample applies one sensor result. A failed reading changes nothing.
func (c *Controller) OnSample(reading float64, readErr error) logic.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	if readErr != nil {
		result := metrics.ResultError
		if errors.Is(readErr, sensor.ErrDisconnected) {
			result = metrics.ResultDisconnected
		}
		c.log.Warnw("sensor read failed, sample skipped", "error", readErr)
		c.opts.Metrics.SampleFailed(result)
		if c.opts.Tracker != nil {
			c.opts.Tracker.RecordDisconnected()
		}
		return logic.TransitionNone
	}

	if c.outputDirty {
		c.driveLocked(c.cfg.Alarm)
	}

	now := c.opts.Now()
	temp := logic.RoundReading(reading)
	c.cfg.FridgeTemp = temp

	ex, minChanged, maxChanged := logic.UpdateExtrema(c.cfg.Extrema(), temp)
	if minChanged {
		v := ex.Min
		c.cfg.MinTemp = &v
	}
	if maxChanged {
		v := ex.Max
		c.cfg.MaxTemp = &v
	}
	if minChanged || maxChanged {
		c.log.Debugw("extrema changed", "min", ex.Min, "max", ex.Max)
		c.persistLocked()
	}

	th := c.cfg.Thresholds()
	tr := logic.Evaluate(temp, th, c.cfg.Alarm)
	switch tr {
	case logic.TransitionAssert:
		c.cfg.Alarm = true
		c.driveLocked(true)
		c.persistLocked()
		c.log.Warnw("alarm asserted", "temp", temp, "target", th.Target)
		if c.cfg.Notification {
			c.notifyLocked("alarm", notify.AlarmText(c.cfg.Hostname, temp, th.Target))
		}
		c.publishLocked(logic.EventAlarmOn, now, temp, th)
		c.armReminderLocked()
	case logic.TransitionClear:
		c.cfg.Alarm = false
		c.driveLocked(false)
		c.persistLocked()
		c.disarmReminderLocked()
		c.log.Infow("alarm cleared", "temp", temp, "clear_below", th.ClearBelow())
		c.publishLocked(logic.EventAlarmOff, now, temp, th)
	default:
		c.log.Debugw("sample", "temp", temp, "alarm", c.cfg.Alarm)
	}

	c.opts.Metrics.Sample(temp)
	c.opts.Metrics.Alarm(c.cfg.Alarm, tr != logic.TransitionNone)
	if c.opts.Tracker != nil {
		c.opts.Tracker.RecordSample(now, temp, c.cfg.Extrema(), logic.StateOf(c.cfg.Alarm))
		c.opts.Tracker.RecordTransition(tr)
	}
	return tr
}

func (c *Controller) armReminderLocked() {
	if c.reminder != nil {
		return
	}
	c.reminderGen++
	gen := c.reminderGen
	period := time.Duration(c.cfg.ReminderMinutes) * time.Minute
	c.reminder = c.opts.Scheduler.Every(TaskReminder, period, func() { c.fireReminder(gen) })
	c.log.Debugw("reminder armed", "every", period)
}

func (c *Controller) disarmReminderLocked() {
	if c.reminder == nil {
		return
	}
	c.reminder.Stop()
	c.reminder = nil
	c.log.Debugw("reminder disarmed")
}

// fireReminder runs on the scheduler. A fire belonging to a reminder that
// has since been disarmed is dropped.
func (c *Controller) fireReminder(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reminder == nil || gen != c.reminderGen || !c.cfg.Alarm {
		c.log.Debugw("stale reminder fire dropped")
		return
	}
	if !c.cfg.Notification {
		return
	}
	c.notifyLocked("reminder", notify.ReminderText(c.cfg.Hostname, c.cfg.FridgeTemp))
}

// notifyLocked queues text for every recipient. The recipients and text are
// captured now; delivery happens on the queue.
func (c *Controller) notifyLocked(kind, text string) {
	recipients := c.cfg.Recipients()
	if len(recipients) == 0 {
		c.log.Warnw("notifications enabled but no recipients configured", "kind", kind)
		return
	}
	gw, m, log := c.opts.Gateway, c.opts.Metrics, c.log
	_, err := c.opts.Queue.Submit("notify-"+kind, func(ctx context.Context) error {
		err := notify.Broadcast(ctx, gw, recipients, text)
		failed := len(multierr.Errors(err))
		for i := 0; i < len(recipients)-failed; i++ {
			m.Notification(kind, metrics.ResultOK)
		}
		for i := 0; i < failed; i++ {
			m.Notification(kind, metrics.ResultError)
		}
		if err != nil {
			log.Warnw("notification failed", "kind", kind, "failed", failed, "error", err)
		}
		return err
	})
	if err != nil {
		m.Notification(kind, metrics.ResultDropped)
		c.log.Warnw("notification not queued", "kind", kind, "error", err)
	}
}

func (c *Controller) publishLocked(typ logic.EventType, at time.Time, temp float64, th logic.Thresholds) {
	if c.opts.Events == nil {
		return
	}
	ev := logic.Event{Timestamp: at, Type: typ, Temp: temp, Thresholds: th}
	events := c.opts.Events
	if _, err := c.opts.Queue.Submit("publish-"+string(typ), func(ctx context.Context) error {
		return events.Publish(ev)
	}); err != nil {
		c.log.Warnw("event not queued", "event", typ, "error", err)
	}
}

// driveLocked sets the alarm line. A failed write is retried on the next sample.
func (c *Controller) driveLocked(on bool) {
	if err := c.opts.Alarm.Set(on); err != nil {
		c.outputDirty = true
		c.log.Errorw("alarm output write failed", "on", on, "error", err)
		return
	}
	c.outputDirty = false
}

// persistLocked saves the running configuration. On failure the in-memory
// record stays authoritative.
func (c *Controller) persistLocked() {
	if err := c.opts.Store.Save(c.cfg.Clone()); err != nil {
		c.log.Errorw("persist configuration failed", "error", err)
	}
}

// Stop cancels every task started by Boot.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		t.Stop()
	}
	c.tasks = nil
	c.disarmReminderLocked()
}
