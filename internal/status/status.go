// Package status provides a thread-safe status tracker for the fridge-sensor daemon.
// It is read by HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/fridge-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/network from status.
type NetworkInfo struct {
	Mode string // "STA", "AP" or "OFFLINE"
	SSID string
	IP   string
}

// Config contains daemon configuration for display.
type Config struct {
	SampleMs    int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Store       string
	Version     string
}

// Counts are the events seen since start.
type Counts struct {
	Samples      int
	Disconnected int
	AlarmOn      int
	AlarmOff     int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode          logic.Mode
	Alarm         logic.AlarmState
	Temp          float64
	HasTemp       bool
	Extrema       logic.Extrema
	Thresholds    logic.Thresholds
	LastSample    time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Alarm:     logic.AlarmClear,
		},
	}
}

// SetMode sets the running mode and thresholds.
func (t *Tracker) SetMode(mode logic.Mode, th logic.Thresholds) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.Thresholds = th
	t.mu.Unlock()
}

// RecordSample stores a valid reading.
func (t *Tracker) RecordSample(at time.Time, temp float64, ex logic.Extrema, alarm logic.AlarmState) {
	t.mu.Lock()
	t.snap.Temp = temp
	t.snap.HasTemp = true
	t.snap.Extrema = ex
	t.snap.Alarm = alarm
	t.snap.LastSample = at
	t.snap.Counts.Samples++
	t.mu.Unlock()
}

// RecordDisconnected counts a failed reading.
func (t *Tracker) RecordDisconnected() {
	t.mu.Lock()
	t.snap.Counts.Disconnected++
	t.mu.Unlock()
}

// RecordTransition counts an alarm edge.
func (t *Tracker) RecordTransition(tr logic.Transition) {
	t.mu.Lock()
	switch tr {
	case logic.TransitionAssert:
		t.snap.Counts.AlarmOn++
		t.snap.Alarm = logic.AlarmAsserted
	case logic.TransitionClear:
		t.snap.Counts.AlarmOff++
		t.snap.Alarm = logic.AlarmClear
	}
	t.mu.Unlock()
}

// SetThresholds updates the displayed thresholds after a config change.
func (t *Tracker) SetThresholds(th logic.Thresholds) {
	t.mu.Lock()
	t.snap.Thresholds = th
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
