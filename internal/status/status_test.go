package status

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/fridge-sensor/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{SampleMs: 10000, Broker: "tcp://localhost:1883", HTTPPort: ":80", Version: "1.2.0"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.SampleMs != 10000 {
		t.Errorf("Config.SampleMs: got %d, want 10000", snap.Config.SampleMs)
	}
	if snap.Alarm != logic.AlarmClear {
		t.Errorf("Alarm: got %q, want CLEAR", snap.Alarm)
	}
	if snap.HasTemp {
		t.Error("expected HasTemp=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordSampleAndTransition(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	tr.RecordSample(at, 6.2, logic.Extrema{Min: 4, Max: 6.2, HasMin: true, HasMax: true}, logic.AlarmClear)
	tr.RecordTransition(logic.TransitionAssert)
	tr.RecordDisconnected()

	snap := tr.Snapshot()
	if !snap.HasTemp || snap.Temp != 6.2 {
		t.Errorf("Temp: got %v (has=%v)", snap.Temp, snap.HasTemp)
	}
	if snap.Alarm != logic.AlarmAsserted {
		t.Errorf("Alarm: got %q, want ASSERTED", snap.Alarm)
	}
	want := Counts{Samples: 1, Disconnected: 1, AlarmOn: 1}
	if snap.Counts != want {
		t.Errorf("Counts: got %+v, want %+v", snap.Counts, want)
	}

	tr.RecordTransition(logic.TransitionClear)
	tr.RecordTransition(logic.TransitionNone)
	snap = tr.Snapshot()
	if snap.Alarm != logic.AlarmClear || snap.Counts.AlarmOff != 1 {
		t.Errorf("after clear: alarm=%q counts=%+v", snap.Alarm, snap.Counts)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetworkIsCopied(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Mode: "STA", SSID: "home", IP: "192.168.1.42"})

	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Fatalf("unexpected network: %+v", snap.Network)
	}
	snap.Network.IP = "changed"
	if tr.Snapshot().Network.IP != "192.168.1.42" {
		t.Error("snapshot network should be a copy")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Mode:          logic.ModeNormal,
		Alarm:         logic.AlarmAsserted,
		Temp:          6.5,
		HasTemp:       true,
		Extrema:       logic.Extrema{Min: 3.1, Max: 6.5, HasMin: true, HasMax: true},
		Thresholds:    logic.Thresholds{Target: 5, Hysteresis: 2},
		LastSample:    start.Add(14 * time.Minute),
		Counts:        Counts{Samples: 90, AlarmOn: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{SampleMs: 10000, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPPort: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Mode != "NORMAL" || s.Alarm != "ASSERTED" {
		t.Errorf("mode/alarm: got %q/%q", s.Mode, s.Alarm)
	}
	if s.Temp == nil || *s.Temp != 6.5 {
		t.Errorf("Temp: got %v", s.Temp)
	}
	if s.MinTemp == nil || *s.MinTemp != 3.1 || s.MaxTemp == nil || *s.MaxTemp != 6.5 {
		t.Errorf("extrema: got %v/%v", s.MinTemp, s.MaxTemp)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Samples != 90 || s.Counts.AlarmOn != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty event/reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONBeforeFirstSample(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed["status"]
	if s["mode"] != "UNKNOWN" {
		t.Errorf("mode: got %v, want UNKNOWN", s["mode"])
	}
	for _, k := range []string{"temp", "min_temp", "max_temp", "last_sample", "network"} {
		if _, ok := s[k]; ok {
			t.Errorf("%s should be omitted before the first sample", k)
		}
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Mode:      logic.ModeNormal,
		Alarm:     logic.AlarmClear,
		StartTime: start,
		Now:       start.Add(time.Minute),
		Network:   &NetworkInfo{Mode: "STA", SSID: "home"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.Network == nil || parsed.Status.Network.SSID != "home" {
		t.Errorf("network: got %+v", parsed.Status.Network)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tr.RecordSample(time.Now(), float64(i), logic.Extrema{}, logic.AlarmClear)
			tr.SetMQTTConnected(i%2 == 0)
		}(i)
		go func() {
			defer wg.Done()
			_ = FormatJSON(tr.Snapshot())
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Counts.Samples; got != 10 {
		t.Errorf("Samples: got %d, want 10", got)
	}
}

type fakeSignal struct {
	rssi int
	err  error
}

func (f fakeSignal) SignalStrength() (int, error) { return f.rssi, f.err }

func TestChipModel(t *testing.T) {
	dir := t.TempDir()

	pi := filepath.Join(dir, "pi")
	os.WriteFile(pi, []byte("processor\t: 0\nmodel name\t: ARMv7 Processor rev 4 (v7l)\n\nHardware\t: BCM2835\nModel\t\t: Raspberry Pi 3 Model B Rev 1.2\n"), 0o644)
	if got := chipModel(pi); got != "Raspberry Pi 3 Model B Rev 1.2" {
		t.Errorf("pi: got %q", got)
	}

	pc := filepath.Join(dir, "pc")
	os.WriteFile(pc, []byte("processor\t: 0\nmodel name\t: Intel(R) Core(TM) i5\n"), 0o644)
	if got := chipModel(pc); got != "Intel(R) Core(TM) i5" {
		t.Errorf("pc: got %q", got)
	}

	if got := chipModel(filepath.Join(dir, "missing")); got == "" {
		t.Error("missing cpuinfo should fall back to GOARCH")
	}
}

func TestCollect(t *testing.T) {
	tr := NewTracker(time.Now().Add(-time.Hour), Config{Version: "1.2.0"})
	tr.SetNetwork(&NetworkInfo{Mode: "STA", SSID: "home", IP: "10.0.0.5"})

	c := NewCollector(tr, t.TempDir(), fakeSignal{rssi: -61})
	info := c.Collect()

	if info.Version != "1.2.0" || info.SSID != "home" || info.NetworkMode != "STA" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.RSSI == nil || *info.RSSI != -61 {
		t.Errorf("RSSI: got %v", info.RSSI)
	}
	if info.Cores < 1 || info.GoVersion == "" || info.HeapTotal == 0 {
		t.Errorf("runtime fields not populated: %+v", info)
	}
	if info.UptimeSeconds < 3599 {
		t.Errorf("UptimeSeconds: got %d", info.UptimeSeconds)
	}
}

func TestCollectSignalOnlyInStationMode(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetNetwork(&NetworkInfo{Mode: "AP", SSID: "fridge-sensor-setup"})

	info := NewCollector(tr, "", fakeSignal{rssi: -40}).Collect()
	if info.RSSI != nil {
		t.Error("RSSI should not be reported in AP mode")
	}

	tr.SetNetwork(&NetworkInfo{Mode: "STA"})
	info = NewCollector(tr, "", fakeSignal{err: errors.New("no wireless")}).Collect()
	if info.RSSI != nil {
		t.Error("RSSI should be omitted when the read fails")
	}
}
