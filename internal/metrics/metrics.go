// Package metrics exposes the dose lifecycle engine's Prometheus
// collectors, wired through the real client_golang registry rather than
// the hand-rolled exposition text the teacher's own internal/metrics
// package produces (see DESIGN.md).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the core registers.
type Metrics struct {
	Registry *prometheus.Registry

	DeviceEventsTotal   *prometheus.CounterVec
	DoseTransitions     *prometheus.CounterVec
	SweeperTicks        prometheus.Counter
	DosesForcedMissed   prometheus.Counter
	NotificationsQueued prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

// New constructs and registers every collector against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		DeviceEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dosecore_device_events_total",
			Help: "Total device events accepted by the correlator, by event kind.",
		}, []string{"kind"}),
		DoseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dosecore_dose_transitions_total",
			Help: "Total dose state transitions, by destination state.",
		}, []string{"to"}),
		SweeperTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dosecore_sweeper_ticks_total",
			Help: "Total timeout sweeper ticks run.",
		}),
		DosesForcedMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dosecore_doses_forced_missed_total",
			Help: "Total doses the sweeper forced to missed.",
		}),
		NotificationsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dosecore_notifications_queued_total",
			Help: "Total alert notifications pushed onto the outbox.",
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "dosecore_http_request_duration_seconds",
			Help: "HTTP request duration in seconds, by route and status class.",
		}, []string{"route", "status_class"}),
	}

	reg.MustRegister(
		m.DeviceEventsTotal,
		m.DoseTransitions,
		m.SweeperTicks,
		m.DosesForcedMissed,
		m.NotificationsQueued,
		m.HTTPRequestDuration,
	)
	return m
}
