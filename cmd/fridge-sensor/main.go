// Command fridge-sensor monitors a fridge temperature probe, drives the alarm
// output and notifies configured recipients when the fridge gets too warm.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/controller"
	"github.com/sweeney/fridge-sensor/internal/gpio"
	"github.com/sweeney/fridge-sensor/internal/indicator"
	"github.com/sweeney/fridge-sensor/internal/logging"
	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/metrics"
	"github.com/sweeney/fridge-sensor/internal/mqtt"
	"github.com/sweeney/fridge-sensor/internal/network"
	"github.com/sweeney/fridge-sensor/internal/notify"
	"github.com/sweeney/fridge-sensor/internal/ota"
	"github.com/sweeney/fridge-sensor/internal/power"
	"github.com/sweeney/fridge-sensor/internal/scheduler"
	"github.com/sweeney/fridge-sensor/internal/sensor"
	"github.com/sweeney/fridge-sensor/internal/settings"
	"github.com/sweeney/fridge-sensor/internal/status"
	"github.com/sweeney/fridge-sensor/internal/store"
	"github.com/sweeney/fridge-sensor/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 5 * time.Second

type options struct {
	store      string
	state      string
	sample     time.Duration
	broker     string
	httpAddr   string
	logDir     string
	debug      bool
	chip       string
	pinAlarm   int
	pinLED     int
	pinButton  int
	w1Device   string
	wlan       string
	longPress  time.Duration
	heartbeat  time.Duration
	printState bool
}

func main() {
	var o options
	flag.StringVar(&o.store, "store", "file", `Configuration store: "file" or "sqlite"`)
	flag.StringVar(&o.state, "state", "/var/lib/fridge-sensor/config.json", "Configuration store path")
	flag.DurationVar(&o.sample, "sample", controller.DefaultSampleInterval, "Temperature sampling interval")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP address (empty to disable)")
	flag.StringVar(&o.logDir, "log-dir", "", "Directory for the rotating JSON log (empty for console only)")
	flag.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO character device")
	flag.IntVar(&o.pinAlarm, "pin-alarm", gpio.PinAlarm, "BCM pin number for the alarm output")
	flag.IntVar(&o.pinLED, "pin-led", gpio.PinLED, "BCM pin number for the status LED")
	flag.IntVar(&o.pinButton, "pin-button", gpio.PinButton, "BCM pin number for the button (-1 to disable)")
	flag.StringVar(&o.w1Device, "w1-device", "", "One-wire device id (empty to auto-detect)")
	flag.StringVar(&o.wlan, "wlan", "wlan0", "Wireless interface")
	flag.DurationVar(&o.longPress, "long-press", controller.DefaultLongPress, "Button hold time that enters CONFIG mode")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.BoolVar(&o.printState, "print-state", false, "Print current state and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	logger, err := logging.New(o.logDir, o.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logging: %v\n", err)
		os.Exit(1)
	}
	log := logger.Sugar()

	restart, err := run(o, log)
	if err != nil {
		log.Errorw("fatal", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()

	if restart {
		if err := reexec(); err != nil {
			log.Errorw("restart failed", "error", err)
			logger.Sync()
			os.Exit(1)
		}
	}
}

func run(o options, log *zap.SugaredLogger) (restart bool, err error) {
	st, err := openStore(o.store, o.state)
	if err != nil {
		return false, err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	cfg := store.LoadOrDefault(st, version, log)
	probe, err := newSensor(o.w1Device)
	if err != nil {
		return false, err
	}

	if o.printState {
		printState(os.Stdout, cfg, probe)
		return false, nil
	}

	alarmOut, err := gpio.NewRealOutput(o.chip, o.pinAlarm)
	if err != nil {
		return false, fmt.Errorf("init alarm output: %w", err)
	}
	defer func() { err = multierr.Append(err, alarmOut.Close()) }()

	ledOut, err := gpio.NewRealOutput(o.chip, o.pinLED)
	if err != nil {
		return false, fmt.Errorf("init led: %w", err)
	}
	defer func() { err = multierr.Append(err, ledOut.Close()) }()

	var button gpio.Input
	if o.pinButton >= 0 {
		in, inErr := gpio.NewRealInput(o.chip, o.pinButton)
		if inErr != nil {
			return false, fmt.Errorf("init button: %w", inErr)
		}
		defer func() { err = multierr.Append(err, in.Close()) }()
		button = in
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleMs:    o.sample.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPPort:    o.httpAddr,
		Store:       o.store,
		Version:     version,
	})

	var (
		events     mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if o.broker != "" {
		pub, err := mqtt.NewRealPublisher(o.broker, "fridge-sensor", log)
		if err != nil {
			log.Warnw("mqtt unavailable, events disabled", "broker", o.broker, "error", err)
		} else {
			defer pub.Close()
			events, mqttStatus = pub, pub
		}
	}

	dispatcher := notify.NewDispatcher(notify.DefaultQueueSize, log)
	m := metrics.New()
	sched := scheduler.New()
	restarter := power.NewChannelRestarter()
	wifi := network.NewNMCLI(o.wlan)

	ctrl := controller.New(cfg, controller.Options{
		Store:          st,
		Alarm:          alarmOut,
		Gateway:        notify.NewCallMeBot(),
		Queue:          dispatcher,
		Events:         events,
		Scheduler:      sched,
		Restarter:      restarter,
		Tracker:        tracker,
		Metrics:        m,
		Logger:         log,
		SampleInterval: o.sample,
		LongPress:      o.longPress,
	})

	publishSystem(events, mqttStatus, tracker, log, "STARTUP", "")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	bootCtx, stopBoot := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	res := ctrl.Boot(bootCtx, controller.Platform{
		Sensor:  probe,
		Network: wifi,
		Button:  button,
		LED:     indicator.New(ledOut, sched, log),
		Sleeper: power.NewRTCSleeper(),
	})
	stopBoot()
	log.Infow("started", "mode", res.Mode, "network", res.Network, "sample", o.sample, "broker", o.broker, "heartbeat", o.heartbeat)

	var srv *web.Server
	if res.Serve && o.httpAddr != "" {
		srv = web.New(o.httpAddr, web.Options{
			Config:    ctrl,
			Tracker:   tracker,
			System:    status.NewCollector(tracker, filepath.Dir(o.state), wifi),
			Updater:   newUpdater(res.Updates, log),
			Restarter: restarter,
			Metrics:   m.Handler(),
			Logger:    log,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "error", err)
			}
		}()
		log.Infow("http server listening", "addr", o.httpAddr)
	}

	var heartbeat <-chan time.Time
	if res.Mode == logic.ModeNormal && o.heartbeat > 0 {
		ticker := time.NewTicker(o.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	restart = runLoop(events, mqttStatus, tracker, log, heartbeat, restarter.C(), sigCh)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnw("http shutdown", "error", err)
		}
	}
	ctrl.Stop()
	if err := dispatcher.Close(ctx); err != nil {
		log.Warnw("notification queue not drained", "pending", dispatcher.Pending(), "error", err)
	}
	return restart, nil
}

// runLoop waits for a signal or a restart request and publishes SHUTDOWN with
// the cause. It reports whether the daemon should re-execute itself.
func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, log *zap.SugaredLogger, heartbeat <-chan time.Time, restarts <-chan string, sig <-chan os.Signal) bool {
	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s)
			publishSystem(publisher, mqttStatus, tracker, log, "SHUTDOWN", signalName(s))
			return false

		case reason := <-restarts:
			log.Infow("restarting", "reason", reason)
			publishSystem(publisher, mqttStatus, tracker, log, "SHUTDOWN", reason)
			return true

		case <-heartbeat:
			snap := publishSystem(publisher, mqttStatus, tracker, log, "HEARTBEAT", "")
			log.Infow("heartbeat",
				"uptime", snap.Uptime().Truncate(time.Second),
				"samples", snap.Counts.Samples,
				"disconnected", snap.Counts.Disconnected,
				"alarm_on", snap.Counts.AlarmOn,
				"alarm_off", snap.Counts.AlarmOff)
		}
	}
}

// publishSystem publishes a lifecycle event carrying the full status snapshot.
// STARTUP and SHUTDOWN are retained. publisher may be nil.
func publishSystem(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, log *zap.SugaredLogger, event, reason string) status.Snapshot {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	if publisher == nil {
		return snap
	}

	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		log.Warnw("failed to publish system event", "event", event, "error", err)
	} else {
		log.Debugw("published system event", "event", event)
	}
	return snap
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func openStore(kind, path string) (store.Store, error) {
	switch kind {
	case "file":
		return store.NewFileStore(path), nil
	case "sqlite":
		s, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want file or sqlite)", kind)
	}
}

func newSensor(id string) (sensor.Sensor, error) {
	if id == "" {
		return &sensor.Probe{Dir: sensor.W1Dir}, nil
	}
	s, err := sensor.NewW1Sensor(sensor.W1Dir, id)
	if err != nil {
		return nil, fmt.Errorf("open sensor %s: %w", id, err)
	}
	return s, nil
}

// newUpdater returns nil when uploads are not accepted.
func newUpdater(enabled bool, log *zap.SugaredLogger) web.Updater {
	if !enabled {
		return nil
	}
	u, err := ota.New()
	if err != nil {
		log.Warnw("firmware update disabled", "error", err)
		return nil
	}
	return u
}

func printState(w io.Writer, cfg settings.Config, s sensor.Sensor) {
	temp := "disconnected"
	if v, err := s.ReadTemperature(); err == nil {
		temp = fmt.Sprintf("%.1f°C", logic.RoundReading(v))
	} else if !errors.Is(err, sensor.ErrDisconnected) {
		temp = "error: " + err.Error()
	}
	fmt.Fprintf(w, "Mode: %s, Alarm: %s, Temp: %s, Target: %.1f°C, Hysteresis: %.1f°C\n",
		cfg.Mode, logic.StateOf(cfg.Alarm), temp, cfg.TargetTemp, cfg.Hysteresis)
}
