// Package metrics defines the Prometheus collectors of the crossing simulation.
//
// All collectors live on a private registry so tests and multiple simulations never collide on the global default
// registry. Every Record method is safe on a nil *Metrics, which disables metrics entirely.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "crossing"

// Metrics groups the simulation collectors
type Metrics struct {
	registry *prometheus.Registry

	arrived        *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	admitted       *prometheus.CounterVec
	exited         *prometheus.CounterVec
	reverts        *prometheus.CounterVec
	lightSwitches  *prometheus.CounterVec
	queueLength    *prometheus.GaugeVec
	zoneOccupancy  prometheus.Gauge
	waitSeconds    *prometheus.HistogramVec
	crossSeconds   prometheus.Histogram
	elapsedTicks   prometheus.Gauge
	fsmTransitions *prometheus.CounterVec
	fsmRejections  *prometheus.CounterVec
	fsmErrors      *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry. withRuntime adds the Go and process collectors,
// which are wanted when serving /metrics but make test output noisy.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		arrived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_arrived_total",
			Help:      "Vehicles generated or preloaded, by direction and class.",
		}, []string{"direction", "class"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_dropped_total",
			Help:      "Arrivals shed because the direction queue was full.",
		}, []string{"direction"}),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_admitted_total",
			Help:      "Vehicles admitted into the crossing zone.",
		}, []string{"direction", "class"}),
		exited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_exited_total",
			Help:      "Vehicles that completed the crossing and released their slot.",
		}, []string{"direction"}),
		reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_reverts_total",
			Help:      "Selected vehicles pushed back to the head of their queue after a failed admission.",
		}, []string{"direction"}),
		lightSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "light_switches_total",
			Help:      "Traffic light switches, by newly privileged direction.",
		}, []string{"direction"}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Vehicles waiting per direction.",
		}, []string{"direction"}),
		zoneOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_occupancy",
			Help:      "Vehicles currently inside the crossing zone.",
		}),
		waitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time from arrival to admission.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"class"}),
		crossSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crossing_duration_seconds",
			Help:      "Time from admission to slot release.",
			Buckets:   prometheus.LinearBuckets(0, 1, 8),
		}),
		elapsedTicks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elapsed_ticks",
			Help:      "Simulation ticks since start.",
		}),
		fsmTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fsm",
			Name:      "transitions_total",
			Help:      "State machine transitions, by machine, source and target state.",
		}, []string{"machine", "from", "to"}),
		fsmRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fsm",
			Name:      "event_rejections_total",
			Help:      "Events a state machine could not handle.",
		}, []string{"machine", "event"}),
		fsmErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fsm",
			Name:      "errors_total",
			Help:      "Errors raised by state machine guards, actions or observers.",
		}, []string{"machine"}),
	}

	m.registry.MustRegister(
		m.arrived, m.dropped, m.admitted, m.exited, m.reverts, m.lightSwitches,
		m.queueLength, m.zoneOccupancy, m.waitSeconds, m.crossSeconds, m.elapsedTicks,
		m.fsmTransitions, m.fsmRejections, m.fsmErrors,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordArrival counts a generated vehicle and whether it was queued
func (m *Metrics) RecordArrival(direction, class string, queued bool) {
	if m == nil {
		return
	}
	m.arrived.WithLabelValues(direction, class).Inc()
	if !queued {
		m.dropped.WithLabelValues(direction).Inc()
	}
}

// RecordAdmission counts an admission and observes how long the vehicle waited
func (m *Metrics) RecordAdmission(direction, class string, waited time.Duration) {
	if m == nil {
		return
	}
	m.admitted.WithLabelValues(direction, class).Inc()
	m.waitSeconds.WithLabelValues(class).Observe(waited.Seconds())
}

// RecordExit counts a completed crossing
func (m *Metrics) RecordExit(direction string, crossed time.Duration) {
	if m == nil {
		return
	}
	m.exited.WithLabelValues(direction).Inc()
	m.crossSeconds.Observe(crossed.Seconds())
}

// RecordRevert counts a failed admission that put the vehicle back
func (m *Metrics) RecordRevert(direction string) {
	if m == nil {
		return
	}
	m.reverts.WithLabelValues(direction).Inc()
}

// RecordLightSwitch counts a switch to direction
func (m *Metrics) RecordLightSwitch(direction string) {
	if m == nil {
		return
	}
	m.lightSwitches.WithLabelValues(direction).Inc()
}

// SetQueueLength sets the waiting count for direction
func (m *Metrics) SetQueueLength(direction string, n int) {
	if m == nil {
		return
	}
	m.queueLength.WithLabelValues(direction).Set(float64(n))
}

// SetZoneOccupancy sets the number of vehicles inside the zone
func (m *Metrics) SetZoneOccupancy(n int) {
	if m == nil {
		return
	}
	m.zoneOccupancy.Set(float64(n))
}

// SetElapsedTicks sets the tick counter
func (m *Metrics) SetElapsedTicks(n int64) {
	if m == nil {
		return
	}
	m.elapsedTicks.Set(float64(n))
}

// RecordTransition counts a state machine transition
func (m *Metrics) RecordTransition(machine, from, to string) {
	if m == nil {
		return
	}
	m.fsmTransitions.WithLabelValues(machine, from, to).Inc()
}

// RecordRejection counts an event a state machine rejected
func (m *Metrics) RecordRejection(machine, event string) {
	if m == nil {
		return
	}
	m.fsmRejections.WithLabelValues(machine, event).Inc()
}

// RecordError counts a state machine error
func (m *Metrics) RecordError(machine string) {
	if m == nil {
		return
	}
	m.fsmErrors.WithLabelValues(machine).Inc()
}
