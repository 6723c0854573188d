// Package metrics exposes the daemon's Prometheus gauges and counters.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK           = "ok"
	ResultDisconnected = "disconnected"
	ResultError        = "error"
	ResultDropped      = "dropped"
)

// Metrics holds the collectors on their own registry.
type Metrics struct {
	registry      *prometheus.Registry
	temperature   prometheus.Gauge
	alarm         prometheus.Gauge
	samples       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	transitions   *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fridge",
			Name:      "temperature_celsius",
			Help:      "Last valid temperature reading.",
		}),
		alarm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fridge",
			Name:      "alarm_asserted",
			Help:      "1 while the alarm output is asserted.",
		}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fridge",
			Name:      "samples_total",
			Help:      "Sensor samples by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fridge",
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and result.",
		}, []string{"kind", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fridge",
			Name:      "alarm_transitions_total",
			Help:      "Alarm state transitions.",
		}, []string{"to"}),
	}
	m.registry.MustRegister(
		m.temperature, m.alarm, m.samples, m.notifications, m.transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Sample records a valid reading.
func (m *Metrics) Sample(temp float64) {
	if m == nil {
		return
	}
	m.temperature.Set(temp)
	m.samples.WithLabelValues(ResultOK).Inc()
}

// SampleFailed records a reading that could not be used.
func (m *Metrics) SampleFailed(result string) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(result).Inc()
}

// Alarm records the alarm state and, on change, the transition.
func (m *Metrics) Alarm(asserted, changed bool) {
	if m == nil {
		return
	}
	v, to := 0.0, "clear"
	if asserted {
		v, to = 1, "asserted"
	}
	m.alarm.Set(v)
	if changed {
		m.transitions.WithLabelValues(to).Inc()
	}
}

// Notification records one delivery attempt.
func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
