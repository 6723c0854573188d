// Package sensor provides temperature readings with hardware abstraction.
// The real implementation reads a DS18B20 probe through the Linux one-wire
// sysfs interface. The fake implementation allows testing without hardware.
package sensor

import "errors"

// ErrDisconnected is returned when the probe does not answer or answers with
// a value that only a missing or unpowered probe produces.
var ErrDisconnected = errors.New("sensor: disconnected")

// Sensor supplies temperature readings in °C.
type Sensor interface {
	ReadTemperature() (float64, error)
}
