// Package settings defines the persisted device configuration: one typed field
// per key, explicit defaults, and the coercion of string updates coming from
// the web UI.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/sweeney/fridge-sensor/internal/logic"
)

// MaxRecipients is the number of notification recipient slots.
const MaxRecipients = 3

var (
	// ErrUnknownKey is returned for keys that are not part of the schema.
	ErrUnknownKey = errors.New("unknown key")
	// ErrReadOnly is returned for keys owned by the controller.
	ErrReadOnly = errors.New("read-only key")
)

// Config is the device configuration record. JSON keys keep the names used
// by the configuration UI.
type Config struct {
	Mode     logic.Mode `json:"MODE"`
	Version  string     `json:"VERSION"`
	Hostname string     `json:"HOSTNAME"`

	WifiSTASSID     string `json:"WIFI_STA_SSID"`
	WifiSTAPassword string `json:"WIFI_STA_PW"`
	WifiAPSSID      string `json:"WIFI_AP_SSID"`

	TargetTemp float64  `json:"TARGET_TEMP"`
	Hysteresis float64  `json:"HYSTERESIS"`
	FridgeTemp float64  `json:"FRIDGE_TEMP"`
	MinTemp    *float64 `json:"MIN_TEMP,omitempty"`
	MaxTemp    *float64 `json:"MAX_TEMP,omitempty"`
	Alarm      bool     `json:"ALARM"`

	Notification bool   `json:"NOTIFICATION"`
	PhoneNumber1 string `json:"PHONE_NUMBER_1"`
	APIKey1      string `json:"API_KEY_1"`
	PhoneNumber2 string `json:"PHONE_NUMBER_2"`
	APIKey2      string `json:"API_KEY_2"`
	PhoneNumber3 string `json:"PHONE_NUMBER_3"`
	APIKey3      string `json:"API_KEY_3"`

	ReminderMinutes  int `json:"REMINDER"`
	DeepSleepMinutes int `json:"DEEP_SLEEP_INTERVAL"`
}

// Default returns the configuration used when nothing usable is stored.
// An unconfigured device boots into CONFIG mode so it can be set up.
func Default() Config {
	return Config{
		Mode:             logic.ModeConfig,
		Hostname:         "fridge-sensor",
		WifiAPSSID:       "fridge-sensor-setup",
		TargetTemp:       7,
		Hysteresis:       2,
		ReminderMinutes:  30,
		DeepSleepMinutes: 15,
	}
}

// Normalize replaces values that would make the controller misbehave with
// their defaults. It is applied to every record loaded from storage.
func (c *Config) Normalize() {
	d := Default()
	if _, err := logic.ParseMode(string(c.Mode)); err != nil {
		c.Mode = d.Mode
	}
	if c.Hysteresis < 0 {
		c.Hysteresis = d.Hysteresis
	}
	if c.ReminderMinutes <= 0 {
		c.ReminderMinutes = d.ReminderMinutes
	}
	if c.DeepSleepMinutes <= 0 {
		c.DeepSleepMinutes = d.DeepSleepMinutes
	}
	if c.Hostname == "" {
		c.Hostname = d.Hostname
	}
	if c.WifiAPSSID == "" {
		c.WifiAPSSID = d.WifiAPSSID
	}
}

// Thresholds returns the alarm thresholds.
func (c Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{Target: c.TargetTemp, Hysteresis: c.Hysteresis}
}

// Extrema returns the running extrema. MIN_TEMP and MAX_TEMP are reset
// independently, so each bound carries its own presence.
func (c Config) Extrema() logic.Extrema {
	var ex logic.Extrema
	if c.MinTemp != nil {
		ex.Min, ex.HasMin = *c.MinTemp, true
	}
	if c.MaxTemp != nil {
		ex.Max, ex.HasMax = *c.MaxTemp, true
	}
	return ex
}

// Recipient is one notification target.
type Recipient struct {
	Phone  string
	APIKey string
}

// Recipients returns the configured recipients that have both a number and a key.
func (c Config) Recipients() []Recipient {
	all := []Recipient{
		{c.PhoneNumber1, c.APIKey1},
		{c.PhoneNumber2, c.APIKey2},
		{c.PhoneNumber3, c.APIKey3},
	}
	var out []Recipient
	for _, r := range all {
		if r.Phone != "" && r.APIKey != "" {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep copy, so callers can hold it after the lock is released.
func (c Config) Clone() Config {
	out := c
	if c.MinTemp != nil {
		v := *c.MinTemp
		out.MinTemp = &v
	}
	if c.MaxTemp != nil {
		v := *c.MaxTemp
		out.MaxTemp = &v
	}
	return out
}

// field describes how one key is coerced from its string form.
type field struct {
	readOnly bool
	set      func(c *Config, v string) error
}

func stringField(get func(c *Config) *string) field {
	return field{set: func(c *Config, v string) error {
		*get(c) = v
		return nil
	}}
}

func boolField(get func(c *Config) *bool) field {
	return field{set: func(c *Config, v string) error {
		*get(c) = v == "true"
		return nil
	}}
}

func floatField(get func(c *Config) *float64, lowest float64) field {
	return field{set: func(c *Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		if f < lowest {
			return fmt.Errorf("must be >= %v", lowest)
		}
		*get(c) = f
		return nil
	}}
}

func positiveIntField(get func(c *Config) *int) field {
	return field{set: func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		if n <= 0 {
			return errors.New("must be positive")
		}
		*get(c) = n
		return nil
	}}
}

// optionalFloatField accepts an empty string to reset the value.
func optionalFloatField(get func(c *Config) **float64) field {
	return field{set: func(c *Config, v string) error {
		if strings.TrimSpace(v) == "" {
			*get(c) = nil
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		*get(c) = &f
		return nil
	}}
}

var schema = map[string]field{
	"MODE": {set: func(c *Config, v string) error {
		m, err := logic.ParseMode(v)
		if err != nil {
			return err
		}
		c.Mode = m
		return nil
	}},
	"VERSION":     {readOnly: true},
	"FRIDGE_TEMP": {readOnly: true},
	"ALARM":       {readOnly: true},

	"HOSTNAME":      stringField(func(c *Config) *string { return &c.Hostname }),
	"WIFI_STA_SSID": stringField(func(c *Config) *string { return &c.WifiSTASSID }),
	"WIFI_STA_PW":   stringField(func(c *Config) *string { return &c.WifiSTAPassword }),
	"WIFI_AP_SSID":  stringField(func(c *Config) *string { return &c.WifiAPSSID }),

	"TARGET_TEMP": floatField(func(c *Config) *float64 { return &c.TargetTemp }, -100),
	"HYSTERESIS":  floatField(func(c *Config) *float64 { return &c.Hysteresis }, 0),
	"MIN_TEMP":    optionalFloatField(func(c *Config) **float64 { return &c.MinTemp }),
	"MAX_TEMP":    optionalFloatField(func(c *Config) **float64 { return &c.MaxTemp }),

	"NOTIFICATION":   boolField(func(c *Config) *bool { return &c.Notification }),
	"PHONE_NUMBER_1": stringField(func(c *Config) *string { return &c.PhoneNumber1 }),
	"API_KEY_1":      stringField(func(c *Config) *string { return &c.APIKey1 }),
	"PHONE_NUMBER_2": stringField(func(c *Config) *string { return &c.PhoneNumber2 }),
	"API_KEY_2":      stringField(func(c *Config) *string { return &c.APIKey2 }),
	"PHONE_NUMBER_3": stringField(func(c *Config) *string { return &c.PhoneNumber3 }),
	"API_KEY_3":      stringField(func(c *Config) *string { return &c.APIKey3 }),

	"REMINDER":            positiveIntField(func(c *Config) *int { return &c.ReminderMinutes }),
	"DEEP_SLEEP_INTERVAL": positiveIntField(func(c *Config) *int { return &c.DeepSleepMinutes }),
}

// Set coerces v to the type of key and stores it in c.
func (c *Config) Set(key, v string) error {
	f, ok := schema[strings.ToUpper(key)]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrUnknownKey)
	}
	if f.readOnly {
		return fmt.Errorf("%s: %w", key, ErrReadOnly)
	}
	if err := f.set(c, v); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Apply sets every key of values on c in key order. Failing keys are skipped
// and reported together; the others are still applied.
func (c *Config) Apply(values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs error
	for _, k := range keys {
		errs = multierr.Append(errs, c.Set(k, values[k]))
	}
	return errs
}

// Keys returns the schema keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
