package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/logic"
	"github.com/sweeney/fridge-sensor/internal/mqtt"
	"github.com/sweeney/fridge-sensor/internal/sensor"
	"github.com/sweeney/fridge-sensor/internal/settings"
	"github.com/sweeney/fridge-sensor/internal/status"
	"github.com/sweeney/fridge-sensor/internal/store"
)

func newTestTracker() *status.Tracker {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return status.NewTracker(start, status.Config{
		SampleMs:    10000,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
		Store:       "file",
		Version:     "test",
	})
}

type loopChans struct {
	heartbeat chan time.Time
	restarts  chan string
	sig       chan os.Signal
	done      chan bool
}

// startRunLoop runs runLoop in a goroutine; its result arrives on done.
func startRunLoop(t *testing.T, pub mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker) loopChans {
	t.Helper()
	c := loopChans{
		heartbeat: make(chan time.Time),
		restarts:  make(chan string, 1),
		sig:       make(chan os.Signal, 1),
		done:      make(chan bool, 1),
	}
	go func() {
		c.done <- runLoop(pub, conn, tracker, zap.NewNop().Sugar(), c.heartbeat, c.restarts, c.sig)
	}()
	return c
}

func waitDone(t *testing.T, done <-chan bool) bool {
	t.Helper()
	select {
	case v := <-done:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
		return false
	}
}

func TestRunLoopSignalShutsDown(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	c := startRunLoop(t, pub, pub, newTestTracker())

	c.sig <- syscall.SIGTERM
	if restart := waitDone(t, c.done); restart {
		t.Error("signal should not request a restart")
	}

	events := pub.RecordedSystemEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(events))
	}
	if events[0].Event != "SHUTDOWN" {
		t.Errorf("event: got %q, want SHUTDOWN", events[0].Event)
	}
	if events[0].Reason != "SIGTERM" {
		t.Errorf("reason: got %q, want SIGTERM", events[0].Reason)
	}
	if !events[0].Retained {
		t.Error("SHUTDOWN should be retained")
	}
}

func TestRunLoopRestartRequest(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	c := startRunLoop(t, pub, pub, newTestTracker())

	c.restarts <- "MODE_CHANGE"
	if restart := waitDone(t, c.done); !restart {
		t.Error("restart request should report restart")
	}

	events := pub.RecordedSystemEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(events))
	}
	if events[0].Reason != "MODE_CHANGE" {
		t.Errorf("reason: got %q, want MODE_CHANGE", events[0].Reason)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(events[0].RawPayload, &sj); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "MODE_CHANGE" {
		t.Errorf("payload event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := newTestTracker()
	tracker.RecordSample(time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC), 4.2, logic.Extrema{Min: 4.2, Max: 4.2, HasMin: true, HasMax: true}, logic.AlarmClear)
	c := startRunLoop(t, pub, pub, tracker)

	c.heartbeat <- time.Time{}
	c.heartbeat <- time.Time{}
	c.sig <- syscall.SIGINT
	waitDone(t, c.done)

	events := pub.RecordedSystemEvents()
	if len(events) != 3 {
		t.Fatalf("expected 3 system events, got %d", len(events))
	}
	for i := 0; i < 2; i++ {
		if events[i].Event != "HEARTBEAT" {
			t.Errorf("event %d: got %q, want HEARTBEAT", i, events[i].Event)
		}
		if events[i].Retained {
			t.Errorf("event %d: HEARTBEAT should not be retained", i)
		}
	}
	if events[2].Reason != "SIGINT" {
		t.Errorf("shutdown reason: got %q, want SIGINT", events[2].Reason)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(events[0].RawPayload, &sj); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if sj.Status.Temp == nil || *sj.Status.Temp != 4.2 {
		t.Errorf("heartbeat temp: got %v, want 4.2", sj.Status.Temp)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("heartbeat should report the MQTT connection")
	}
	if sj.Status.Counts.Samples != 1 {
		t.Errorf("heartbeat samples: got %d, want 1", sj.Status.Counts.Samples)
	}
}

func TestRunLoopPublishFailureDoesNotStop(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker down")
	c := startRunLoop(t, pub, pub, newTestTracker())

	c.heartbeat <- time.Time{}
	c.restarts <- "FIRMWARE_UPDATE"
	if restart := waitDone(t, c.done); !restart {
		t.Error("expected restart after publish failures")
	}
}

func TestRunLoopWithoutBroker(t *testing.T) {
	c := startRunLoop(t, nil, nil, newTestTracker())
	c.heartbeat <- time.Time{}
	c.sig <- syscall.SIGTERM
	if restart := waitDone(t, c.done); restart {
		t.Error("signal should not request a restart")
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	fs, err := openStore("file", filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	if _, ok := fs.(*store.FileStore); !ok {
		t.Errorf("file store: got %T", fs)
	}
	fs.Close()

	ss, err := openStore("sqlite", filepath.Join(dir, "config.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	if _, ok := ss.(*store.SQLiteStore); !ok {
		t.Errorf("sqlite store: got %T", ss)
	}
	ss.Close()

	if _, err := openStore("redis", ""); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestNewSensor(t *testing.T) {
	s, err := newSensor("")
	if err != nil {
		t.Fatalf("auto-detect: %v", err)
	}
	if _, ok := s.(*sensor.Probe); !ok {
		t.Errorf("empty id: got %T, want *sensor.Probe", s)
	}

	s, err = newSensor("28-0316a2795aff")
	if err != nil {
		t.Fatalf("explicit id: %v", err)
	}
	if _, ok := s.(*sensor.W1Sensor); !ok {
		t.Errorf("explicit id: got %T, want *sensor.W1Sensor", s)
	}
}

func TestPrintState(t *testing.T) {
	cfg := settings.Default()
	cfg.Mode = logic.ModeNormal
	cfg.Alarm = true
	cfg.TargetTemp = 5
	cfg.Hysteresis = 2

	var buf bytes.Buffer
	printState(&buf, cfg, sensor.NewFakeSensor(sensor.OK(6.04)))
	want := "Mode: NORMAL, Alarm: ASSERTED, Temp: 6.0°C, Target: 5.0°C, Hysteresis: 2.0°C\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	printState(&buf, cfg, sensor.NewFakeSensor(sensor.Disconnected()))
	if !strings.Contains(buf.String(), "Temp: disconnected") {
		t.Errorf("disconnected probe: got %q", buf.String())
	}
}

func TestNewUpdaterDisabled(t *testing.T) {
	if u := newUpdater(false, zap.NewNop().Sugar()); u != nil {
		t.Errorf("expected nil updater, got %T", u)
	}
}
