// Package metrics exposes Prometheus counters for intake sessions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics counts turns, step transitions, collaborator failures, and outcomes.
// A nil *IntakeMetrics is valid and records nothing.
type IntakeMetrics struct {
	turnsTotal        *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec
	sessionsCompleted prometheus.Counter
	sessionsRestarted prometheus.Counter
}

// NewIntakeMetrics registers the counters with reg, or the default registerer when reg is nil.
func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "turns_total",
			Help:      "Total user turns processed, by step at entry",
		}, []string{"step"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "step_transitions_total",
			Help:      "Total step transitions",
		}, []string{"from", "to"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "collaborator_failures_total",
			Help:      "Total recoverable failures from the extractor or address verifier",
		}, []string{"collaborator", "reason"}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "sessions_completed_total",
			Help:      "Total sessions that reached the done step",
		}),
		sessionsRestarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "sessions_restarted_total",
			Help:      "Total restarts requested at confirmation",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.transitionsTotal, m.failuresTotal, m.sessionsCompleted, m.sessionsRestarted)
	return m
}

// ObserveTurn counts a turn entering at step.
func (m *IntakeMetrics) ObserveTurn(step string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(step).Inc()
}

// ObserveTransition counts a step change.
func (m *IntakeMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveFailure counts a recoverable collaborator failure.
func (m *IntakeMetrics) ObserveFailure(collaborator, reason string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(collaborator, reason).Inc()
}

// ObserveCompleted counts a session reaching done.
func (m *IntakeMetrics) ObserveCompleted() {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
}

// ObserveRestarted counts a restart at confirmation.
func (m *IntakeMetrics) ObserveRestarted() {
	if m == nil {
		return
	}
	m.sessionsRestarted.Inc()
}
