package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/controller"
	"github.com/sweeney/fridge-sensor/internal/gpio"
	"github.com/sweeney/fridge-sensor/internal/indicator"
	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/metrics"
	"github.com/sweeney/fridge-sensor/internal/mqtt"
	"github.com/sweeney/fridge-sensor/internal/network"
	"github.com/sweeney/fridge-sensor/internal/notify"
	"github.com/sweeney/fridge-sensor/internal/power"
	"github.com/sweeney/fridge-sensor/internal/scheduler"
	"github.com/sweeney/fridge-sensor/internal/sensor"
	"github.com/sweeney/fridge-sensor/internal/settings"
	"github.com/sweeney/fridge-sensor/internal/status"
	"github.com/sweeney/fridge-sensor/internal/store"
	"github.com/sweeney/fridge-sensor/internal/web"
)

// gatewayServer records the messages posted to a CallMeBot-compatible endpoint.
type gatewayServer struct {
	mu   sync.Mutex
	msgs []url.Values
}

func (g *gatewayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.msgs = append(g.msgs, r.URL.Query())
	g.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (g *gatewayServer) messages() []url.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]url.Values(nil), g.msgs...)
}

// rig wires a controller to a file store, the real dispatcher and CallMeBot
// client, and fakes for the hardware.
type rig struct {
	path       string
	store      *store.FileStore
	ctrl       *controller.Controller
	dispatcher *notify.Dispatcher
	gateway    *gatewayServer
	events     *mqtt.FakePublisher
	alarm      *gpio.FakeOutput
	sched      *scheduler.Fake
	restarter  *power.ChannelRestarter
	tracker    *status.Tracker
	metrics    *metrics.Metrics
}

func seedConfig(mode logic.Mode) settings.Config {
	cfg := settings.Default()
	cfg.Mode = mode
	cfg.Hostname = "kitchen"
	cfg.WifiSTASSID = "home"
	cfg.TargetTemp = 5
	cfg.Hysteresis = 2
	cfg.Notification = true
	cfg.PhoneNumber1 = "+491700000001"
	cfg.APIKey1 = "key1"
	return cfg
}

// newRig boots a controller from the record stored at path.
func newRig(t *testing.T, path string) *rig {
	t.Helper()
	log := zap.NewNop().Sugar()

	gw := &gatewayServer{}
	ts := httptest.NewServer(gw)
	t.Cleanup(ts.Close)

	r := &rig{
		path:       path,
		store:      store.NewFileStore(path),
		dispatcher: notify.NewDispatcher(notify.DefaultQueueSize, log),
		gateway:    gw,
		events:     mqtt.NewFakePublisher(),
		alarm:      gpio.NewFakeOutput(),
		sched:      scheduler.NewFake(),
		restarter:  power.NewChannelRestarter(),
		tracker:    status.NewTracker(time.Now(), status.Config{Version: "1.0.0"}),
		metrics:    metrics.New(),
	}
	t.Cleanup(func() { r.dispatcher.Close(context.Background()) })

	cfg := store.LoadOrDefault(r.store, "1.0.0", log)
	r.ctrl = controller.New(cfg, controller.Options{
		Store:     r.store,
		Alarm:     r.alarm,
		Gateway:   &notify.CallMeBot{BaseURL: ts.URL, Client: ts.Client()},
		Queue:     r.dispatcher,
		Events:    r.events,
		Scheduler: r.sched,
		Restarter: r.restarter,
		Tracker:   r.tracker,
		Metrics:   r.metrics,
		Logger:    log,
	})
	return r
}

func (r *rig) boot(readings ...sensor.Reading) controller.BootResult {
	return r.ctrl.Boot(context.Background(), controller.Platform{
		Sensor:  sensor.NewFakeSensor(readings...),
		Network: network.NewFake(),
		LED:     indicator.New(gpio.NewFakeOutput(), r.sched, zap.NewNop().Sugar()),
		Sleeper: power.NewFakeSleeper(),
	})
}

// drain waits for queued notifications and events.
func (r *rig) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.dispatcher.Close(ctx); err != nil {
		t.Fatalf("dispatcher did not drain: %v", err)
	}
}

func (r *rig) reload(t *testing.T) settings.Config {
	t.Helper()
	cfg, err := store.NewFileStore(r.path).Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return cfg
}

func seed(t *testing.T, cfg settings.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := store.NewFileStore(path).Save(cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return path
}

func TestIntegrationAlarmCycle(t *testing.T) {
	r := newRig(t, seed(t, seedConfig(logic.ModeNormal)))

	res := r.boot(sensor.OK(4), sensor.OK(6.04), sensor.OK(6), sensor.Disconnected(), sensor.OK(3), sensor.OK(2.9))
	if !res.Serve {
		t.Fatalf("boot result: %+v", res)
	}
	for i := 0; i < 5; i++ {
		r.sched.Fire(controller.TaskSample)
	}
	r.drain(t)

	msgs := r.gateway.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if got, want := msgs[0].Get("text"), "🌡️ ALARM: kitchen - temperature: 6.0°C (threshold: 5.0°C)!!"; got != want {
		t.Errorf("text: got %q, want %q", got, want)
	}
	if msgs[0].Get("phone") != "+491700000001" || msgs[0].Get("apikey") != "key1" {
		t.Errorf("recipient: got %v", msgs[0])
	}

	events := r.events.RecordedEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != logic.EventAlarmOn || events[0].Temp != 6 {
		t.Errorf("event 0: got %s %v", events[0].Type, events[0].Temp)
	}
	if events[1].Type != logic.EventAlarmOff || events[1].Temp != 2.9 {
		t.Errorf("event 1: got %s %v", events[1].Type, events[1].Temp)
	}

	if r.alarm.State() {
		t.Error("alarm output should be off after clear")
	}
	if r.ctrl.ReminderArmed() {
		t.Error("reminder should be gone after clear")
	}

	cfg := r.reload(t)
	if cfg.Alarm {
		t.Error("persisted ALARM should be false")
	}
	if cfg.MinTemp == nil || *cfg.MinTemp != 2.9 || cfg.MaxTemp == nil || *cfg.MaxTemp != 6 {
		t.Errorf("persisted extrema: min=%v max=%v", cfg.MinTemp, cfg.MaxTemp)
	}
	if cfg.Version != "1.0.0" {
		t.Errorf("persisted VERSION: got %q", cfg.Version)
	}

	snap := r.tracker.Snapshot()
	if snap.Counts.Samples != 5 || snap.Counts.Disconnected != 1 || snap.Counts.AlarmOn != 1 || snap.Counts.AlarmOff != 1 {
		t.Errorf("counts: %+v", snap.Counts)
	}
}

func TestIntegrationReminderAfterRestart(t *testing.T) {
	cfg := seedConfig(logic.ModeNormal)
	cfg.Alarm = true
	cfg.ReminderMinutes = 10
	r := newRig(t, seed(t, cfg))

	r.boot(sensor.OK(7.2))
	if !r.alarm.State() {
		t.Error("persisted alarm should drive the output at boot")
	}
	live := r.sched.Live(controller.TaskReminder)
	if len(live) != 1 || live[0].Period != 10*time.Minute {
		t.Fatalf("expected a 10m reminder, got %+v", live)
	}

	r.sched.Fire(controller.TaskReminder)
	r.drain(t)

	msgs := r.gateway.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(msgs))
	}
	if got, want := msgs[0].Get("text"), "🌡️ Reminder: kitchen is still too warm!! (temperature: 7.2°C)"; got != want {
		t.Errorf("text: got %q, want %q", got, want)
	}
}

func TestIntegrationConfigThroughWeb(t *testing.T) {
	r := newRig(t, seed(t, seedConfig(logic.ModeNormal)))
	r.boot(sensor.OK(4))

	srv := web.New(":0", web.Options{
		Config:    r.ctrl,
		Tracker:   r.tracker,
		System:    status.NewCollector(r.tracker, filepath.Dir(r.path), nil),
		Restarter: r.restarter,
		Metrics:   r.metrics.Handler(),
	})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.PostForm(ts.URL+"/getdata", url.Values{
		"TARGET_TEMP": {"8"},
		"mode":        {"config"},
	})
	if err != nil {
		t.Fatalf("POST /getdata: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d (%s)", resp.StatusCode, resp.Header.Get("X-Config-Errors"))
	}

	select {
	case reason := <-r.restarter.C():
		if reason != controller.ReasonModeChange {
			t.Errorf("restart reason: got %q, want %q", reason, controller.ReasonModeChange)
		}
	default:
		t.Fatal("expected a restart request")
	}

	cfg := r.reload(t)
	if cfg.Mode != logic.ModeConfig {
		t.Errorf("persisted MODE: got %s, want CONFIG", cfg.Mode)
	}
	if cfg.TargetTemp != 8 {
		t.Errorf("persisted TARGET_TEMP: got %v, want 8", cfg.TargetTemp)
	}
}

func TestIntegrationDeepSleepEscalation(t *testing.T) {
	path := seed(t, seedConfig(logic.ModeDeepSleep))

	r := newRig(t, path)
	r.boot(sensor.OK(9))
	r.drain(t)

	select {
	case reason := <-r.restarter.C():
		if reason != controller.ReasonEscalate {
			t.Errorf("restart reason: got %q, want %q", reason, controller.ReasonEscalate)
		}
	default:
		t.Fatal("expected a restart request")
	}
	if n := len(r.gateway.messages()); n != 1 {
		t.Errorf("expected the alarm notification before escalating, got %d", n)
	}

	cfg := r.reload(t)
	if cfg.Mode != logic.ModeNormal || !cfg.Alarm {
		t.Fatalf("persisted: mode=%s alarm=%v", cfg.Mode, cfg.Alarm)
	}

	// The re-executed daemon comes back in NORMAL with the alarm still on.
	next := newRig(t, path)
	res := next.boot(sensor.OK(9))
	if res.Mode != logic.ModeNormal {
		t.Errorf("mode after restart: got %s", res.Mode)
	}
	if !next.alarm.State() {
		t.Error("alarm output should be on after restart")
	}
	if len(next.sched.Live(controller.TaskReminder)) != 1 {
		t.Error("reminder should be re-armed after restart")
	}
	next.drain(t)
	if n := len(next.gateway.messages()); n != 0 {
		t.Errorf("no new alarm notification expected after restart, got %d", n)
	}
}

func TestIntegrationDeepSleepStaysAsleep(t *testing.T) {
	r := newRig(t, seed(t, seedConfig(logic.ModeDeepSleep)))
	r.boot(sensor.OK(4))

	select {
	case reason := <-r.restarter.C():
		if reason != controller.ReasonWake {
			t.Errorf("restart reason: got %q, want %q", reason, controller.ReasonWake)
		}
	default:
		t.Fatal("expected a wake restart")
	}
	if cfg := r.reload(t); cfg.Mode != logic.ModeDeepSleep {
		t.Errorf("mode: got %s, want DEEP_SLEEP", cfg.Mode)
	}
}
