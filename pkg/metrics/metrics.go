// Package metrics exposes Prometheus instrumentation for trigger processing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wfengine"

// Trigger outcomes used as the result label.
const (
	ResultTransitioned = "transitioned"
	ResultNoMatch      = "no_match"
	ResultConflict     = "conflict"
	ResultError        = "error"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	triggersTotal   *prometheus.CounterVec
	triggerDuration *prometheus.HistogramVec
	actionsTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		triggersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_total",
				Help:      "Total number of triggers processed, by outcome",
			},
			[]string{"result"},
		),
		triggerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trigger_duration_seconds",
				Help:      "Histogram of trigger processing duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"result"},
		),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of enter/exit actions executed",
			},
			[]string{"phase", "status"}, // status: success, error
		),
	}

	for _, collector := range []prometheus.Collector{m.triggersTotal, m.triggerDuration, m.actionsTotal} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveTrigger records one processed trigger.
func (m *Metrics) ObserveTrigger(result string, duration time.Duration) {
	if m == nil {
		return
	}

	m.triggersTotal.WithLabelValues(result).Inc()
	m.triggerDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveAction records one executed action.
func (m *Metrics) ObserveAction(phase string, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.actionsTotal.WithLabelValues(phase, status).Inc()
}

// TriggersTotal exposes the trigger counter.
func (m *Metrics) TriggersTotal() *prometheus.CounterVec {
	return m.triggersTotal
}

// ActionsTotal exposes the action counter.
func (m *Metrics) ActionsTotal() *prometheus.CounterVec {
	return m.actionsTotal
}
