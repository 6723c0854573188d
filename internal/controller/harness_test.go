package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/gpio"
	"github.com/sweeney/fridge-sensor/internal/indicator"
	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/mqtt"
	"github.com/sweeney/fridge-sensor/internal/network"
	"github.com/sweeney/fridge-sensor/internal/notify"
	"github.com/sweeney/fridge-sensor/internal/power"
	"github.com/sweeney/fridge-sensor/internal/scheduler"
	"github.com/sweeney/fridge-sensor/internal/sensor"
	"github.com/sweeney/fridge-sensor/internal/settings"
	"github.com/sweeney/fridge-sensor/internal/status"
	"github.com/sweeney/fridge-sensor/internal/store"
)

// syncQueue runs jobs immediately on Submit.
type syncQueue struct {
	mu    sync.Mutex
	names []string
	full  bool
}

func (q *syncQueue) Submit(name string, fn func(ctx context.Context) error) (string, error) {
	q.mu.Lock()
	if q.full {
		q.mu.Unlock()
		return "", notify.ErrQueueFull
	}
	q.names = append(q.names, name)
	q.mu.Unlock()
	_ = fn(context.Background())
	return name, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	c         *Controller
	store     *store.Memory
	alarm     *gpio.FakeOutput
	gw        *notify.FakeGateway
	queue     *syncQueue
	events    *mqtt.FakePublisher
	sched     *scheduler.Fake
	restarter *power.FakeRestarter
	tracker   *status.Tracker
	clock     *fakeClock
}

func testConfig() settings.Config {
	cfg := settings.Default()
	cfg.Mode = logic.ModeNormal
	cfg.Hostname = "kitchen"
	cfg.WifiSTASSID = "home"
	cfg.WifiSTAPassword = "secret"
	cfg.TargetTemp = 5
	cfg.Hysteresis = 2
	cfg.Notification = true
	cfg.PhoneNumber1 = "+491700000001"
	cfg.APIKey1 = "key1"
	cfg.ReminderMinutes = 30
	return cfg
}

func newHarness(t *testing.T, mutate func(*settings.Config)) *harness {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		store:     store.NewMemory(&cfg),
		alarm:     gpio.NewFakeOutput(),
		gw:        notify.NewFakeGateway(),
		queue:     &syncQueue{},
		events:    mqtt.NewFakePublisher(),
		sched:     scheduler.NewFake(),
		restarter: power.NewFakeRestarter(),
		clock:     &fakeClock{t: time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)},
	}
	h.tracker = status.NewTracker(h.clock.Now(), status.Config{})
	h.c = New(cfg, Options{
		Store:     h.store,
		Alarm:     h.alarm,
		Gateway:   h.gw,
		Queue:     h.queue,
		Events:    h.events,
		Scheduler: h.sched,
		Restarter: h.restarter,
		Tracker:   h.tracker,
		Logger:    zap.NewNop().Sugar(),
		Now:       h.clock.Now,
	})
	return h
}

func (h *harness) platform(readings ...sensor.Reading) (Platform, *network.Fake, *power.FakeSleeper, *indicator.Indicator) {
	net := network.NewFake()
	sleeper := power.NewFakeSleeper()
	led := indicator.New(gpio.NewFakeOutput(), h.sched, zap.NewNop().Sugar())
	return Platform{
		Sensor:  sensor.NewFakeSensor(readings...),
		Network: net,
		LED:     led,
		Sleeper: sleeper,
	}, net, sleeper, led
}
