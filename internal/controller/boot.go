package controller

import (
	"context"
	"time"

	"github.com/sweeney/fridge-sensor/internal/gpio"
	"github.com/sweeney/fridge-sensor/internal/indicator"
	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/network"
	"github.com/sweeney/fridge-sensor/internal/power"
	"github.com/sweeney/fridge-sensor/internal/scheduler"
	"github.com/sweeney/fridge-sensor/internal/sensor"
	"github.com/sweeney/fridge-sensor/internal/status"
)

// Platform is the hardware the boot sequence drives. Button may be nil.
type Platform struct {
	Sensor  sensor.Sensor
	Network network.Network
	Button  gpio.Input
	LED     *indicator.Indicator
	Sleeper power.Sleeper
}

// BootResult tells the daemon what to run after Boot.
type BootResult struct {
	Mode    logic.Mode
	Network string // network.ModeStation, ModeAccessPoint or ModeOffline
	Serve   bool   // start the web server
	Updates bool   // accept firmware uploads
}

// Boot runs the start-up sequence of the persisted mode. In DEEP_SLEEP it
// blocks while the machine sleeps and always ends with a restart request.
func (c *Controller) Boot(ctx context.Context, p Platform) BootResult {
	c.mu.Lock()
	cfg := c.cfg.Clone()
	c.driveLocked(cfg.Alarm)
	c.mu.Unlock()

	if c.opts.Tracker != nil {
		c.opts.Tracker.SetMode(cfg.Mode, cfg.Thresholds())
	}
	c.log.Infow("booting", "mode", cfg.Mode, "alarm", cfg.Alarm, "version", cfg.Version)

	switch cfg.Mode {
	case logic.ModeNormal:
		return c.bootNormal(ctx, p)
	case logic.ModeDeepSleep:
		return c.bootDeepSleep(ctx, p)
	default:
		return c.bootConfig(ctx, p)
	}
}

func (c *Controller) bootNormal(ctx context.Context, p Platform) BootResult {
	res := BootResult{Mode: logic.ModeNormal, Network: network.ModeOffline}

	c.Sample(p.Sensor)

	c.mu.Lock()
	c.tasks = append(c.tasks, c.opts.Scheduler.Every(TaskSample, c.opts.SampleInterval, func() {
		c.Sample(p.Sensor)
	}))
	if c.cfg.Alarm {
		c.armReminderLocked()
	}
	if p.Button != nil {
		c.tasks = append(c.tasks, c.watchButtonLocked(p.Button))
	}
	ssid, password := c.cfg.WifiSTASSID, c.cfg.WifiSTAPassword
	c.mu.Unlock()

	if err := p.Network.JoinStation(ctx, ssid, password); err != nil {
		c.log.Warnw("station join failed, monitoring offline", "ssid", ssid, "error", err)
		p.LED.Set(indicator.OfflineBlink)
		c.setNetwork(network.ModeOffline, ssid, "")
		return res
	}

	c.log.Infow("station joined", "ssid", ssid, "ip", p.Network.Address())
	p.LED.Set(indicator.NormalBlink)
	c.setNetwork(network.ModeStation, ssid, p.Network.Address())
	res.Network = network.ModeStation
	res.Serve = true
	res.Updates = true
	return res
}

// watchButtonLocked polls the button and switches to CONFIG on a long press.
func (c *Controller) watchButtonLocked(button gpio.Input) scheduler.Task {
	det := logic.NewPressDetector(c.opts.LongPress)
	return c.opts.Scheduler.Every(TaskButton, c.opts.ButtonPoll, func() {
		pressed, err := button.Read()
		if err != nil {
			c.log.Debugw("button read failed", "error", err)
			return
		}
		if det.Process(pressed, c.opts.Now()) {
			c.log.Infow("long press detected", "held", c.opts.LongPress)
			c.SwitchMode(logic.ModeConfig, ReasonLongPress)
		}
	})
}

func (c *Controller) bootConfig(ctx context.Context, p Platform) BootResult {
	res := BootResult{Mode: logic.ModeConfig, Network: network.ModeOffline}

	ssid := c.Settings().WifiAPSSID
	if err := p.Network.StartAccessPoint(ctx, ssid); err != nil {
		c.log.Errorw("access point failed", "ssid", ssid, "error", err)
		p.LED.Set(indicator.OfflineBlink)
		c.setNetwork(network.ModeOffline, ssid, "")
		return res
	}

	c.log.Infow("access point up", "ssid", ssid)
	p.LED.Set(indicator.On)
	c.setNetwork(network.ModeAccessPoint, ssid, p.Network.Address())
	res.Network = network.ModeAccessPoint
	res.Serve = true
	return res
}

func (c *Controller) bootDeepSleep(ctx context.Context, p Platform) BootResult {
	res := BootResult{Mode: logic.ModeDeepSleep, Network: network.ModeOffline}
	p.LED.Set(indicator.Off)

	// A failed read leaves FRIDGE_TEMP at its last stored value, which
	// still decides the escalation.
	c.Sample(p.Sensor)

	cfg := c.Settings()
	if logic.ShouldEscalate(cfg.FridgeTemp, cfg.TargetTemp) {
		c.log.Warnw("too warm, leaving deep sleep", "temp", cfg.FridgeTemp, "target", cfg.TargetTemp)
		c.SwitchMode(logic.ModeNormal, ReasonEscalate)
		return res
	}

	d := time.Duration(cfg.DeepSleepMinutes) * time.Minute
	c.log.Infow("sleeping", "for", d, "temp", cfg.FridgeTemp)
	if err := p.Sleeper.Sleep(ctx, d); err != nil {
		c.log.Warnw("suspend failed, waiting instead", "error", err)
		if err := power.Wait(ctx, d); err != nil {
			return res
		}
	}
	c.opts.Restarter.Restart(ReasonWake)
	return res
}

func (c *Controller) setNetwork(mode, ssid, ip string) {
	if c.opts.Tracker != nil {
		c.opts.Tracker.SetNetwork(&status.NetworkInfo{Mode: mode, SSID: ssid, IP: ip})
	}
}
