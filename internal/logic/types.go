// Package logic contains the pure decision rules of the fridge monitor.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the operating mode selected at boot from persisted configuration.
type Mode string

const (
	ModeNormal    Mode = "NORMAL"
	ModeConfig    Mode = "CONFIG"
	ModeDeepSleep Mode = "DEEP_SLEEP"
)

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeNormal, ModeConfig, ModeDeepSleep:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// AlarmState is the state of the alarm output.
type AlarmState string

const (
	AlarmClear    AlarmState = "CLEAR"
	AlarmAsserted AlarmState = "ASSERTED"
)

// StateOf maps the persisted alarm flag to an AlarmState.
func StateOf(asserted bool) AlarmState {
	if asserted {
		return AlarmAsserted
	}
	return AlarmClear
}

// Transition is the outcome of evaluating one sample against the thresholds.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionAssert
	TransitionClear
)

func (t Transition) String() string {
	switch t {
	case TransitionAssert:
		return "ASSERT"
	case TransitionClear:
		return "CLEAR"
	default:
		return "NONE"
	}
}

// Thresholds are the alarm set point and the width of the band below it.
type Thresholds struct {
	Target     float64
	Hysteresis float64
}

// ClearBelow returns the temperature the reading must drop under to clear.
// Evaluate compares it at 0.1 °C resolution.
func (t Thresholds) ClearBelow() float64 {
	return t.Target - t.Hysteresis
}

// EventType represents an alarm transition to be published.
type EventType string

const (
	EventAlarmOn  EventType = "ALARM_ON"
	EventAlarmOff EventType = "ALARM_OFF"
)

// Event represents an alarm transition to be published.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Temp       float64
	Thresholds Thresholds
}

// Extrema are the running minimum and maximum readings. Each bound is unset
// until a sample has been recorded since it was last reset.
type Extrema struct {
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// Valid reports whether both bounds are set.
func (e Extrema) Valid() bool {
	return e.HasMin && e.HasMax
}
