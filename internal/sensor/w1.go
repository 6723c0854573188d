package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// W1Dir is where the kernel exposes one-wire devices.
const W1Dir = "/sys/bus/w1/devices"

const (
	w1SensorFilename = "w1_slave"
	ds18b20Family    = "28-"

	// Values a DS18B20 reports when it is not actually measuring.
	powerOnResetMilli = 85000
	noDeviceMilli     = -127000
)

// W1Sensor reads a DS18B20 through /sys/bus/w1/devices/<id>/w1_slave.
type W1Sensor struct {
	path string
}

// NewW1Sensor opens the probe with the given device id (e.g. "28-0316a2795aff").
// An empty id picks the first DS18B20 found under dir.
func NewW1Sensor(dir, id string) (*W1Sensor, error) {
	if id == "" {
		matches, err := filepath.Glob(filepath.Join(dir, ds18b20Family+"*"))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no DS18B20 under %s: %w", dir, ErrDisconnected)
		}
		id = filepath.Base(matches[0])
	}
	return &W1Sensor{path: filepath.Join(dir, id, w1SensorFilename)}, nil
}

// ReadTemperature reads and parses the probe file.
func (s *W1Sensor) ReadTemperature() (float64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrDisconnected
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}
	return parseW1(string(data))
}

// parseW1 parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1(data string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 2 {
		return 0, ErrDisconnected
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrDisconnected
	}

	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("invalid w1 format: %q", lines[1])
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("invalid w1 temperature: %q", lines[1][i+2:])
	}
	if milli == powerOnResetMilli || milli <= noDeviceMilli {
		return 0, ErrDisconnected
	}
	return float64(milli) / 1000, nil
}

// Probe locates the first DS18B20 under Dir, rescanning on every read until
// one appears. Reads must not run concurrently.
type Probe struct {
	Dir   string
	found *W1Sensor
}

// ReadTemperature reads the located probe.
func (p *Probe) ReadTemperature() (float64, error) {
	if p.found == nil {
		s, err := NewW1Sensor(p.Dir, "")
		if err != nil {
			return 0, err
		}
		p.found = s
	}
	return p.found.ReadTemperature()
}
