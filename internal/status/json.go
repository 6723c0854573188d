package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Alarm         string       `json:"alarm"`
	Temp          *float64     `json:"temp,omitempty"`
	MinTemp       *float64     `json:"min_temp,omitempty"`
	MaxTemp       *float64     `json:"max_temp,omitempty"`
	Target        float64      `json:"target"`
	Hysteresis    float64      `json:"hysteresis"`
	LastSample    string       `json:"last_sample,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Samples      int `json:"samples"`
	Disconnected int `json:"disconnected"`
	AlarmOn      int `json:"alarm_on"`
	AlarmOff     int `json:"alarm_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Mode string `json:"mode"`
	SSID string `json:"ssid"`
	IP   string `json:"ip"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleMs    int64  `json:"sample_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Store       string `json:"store"`
	Version     string `json:"version"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		Mode:          mode,
		Alarm:         string(snap.Alarm),
		Target:        snap.Thresholds.Target,
		Hysteresis:    snap.Thresholds.Hysteresis,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Samples:      snap.Counts.Samples,
			Disconnected: snap.Counts.Disconnected,
			AlarmOn:      snap.Counts.AlarmOn,
			AlarmOff:     snap.Counts.AlarmOff,
		},
		Config: ConfigJSON{
			SampleMs:    snap.Config.SampleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Store:       snap.Config.Store,
			Version:     snap.Config.Version,
		},
	}
	if snap.HasTemp {
		temp := snap.Temp
		inner.Temp = &temp
		inner.LastSample = snap.LastSample.UTC().Format(time.RFC3339)
	}
	if snap.Extrema.HasMin {
		lo := snap.Extrema.Min
		inner.MinTemp = &lo
	}
	if snap.Extrema.HasMax {
		hi := snap.Extrema.Max
		inner.MaxTemp = &hi
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Mode: snap.Network.Mode,
			SSID: snap.Network.SSID,
			IP:   snap.Network.IP,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
