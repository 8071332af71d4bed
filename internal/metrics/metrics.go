// Package metrics exposes the router's prometheus collectors. Grounded on
// luxfi-consensus's metrics package shape (a struct wrapping a
// prometheus.Registerer), generalized from one generic Register method to
// a fixed set of collectors the router actually updates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the router updates.
type Metrics struct {
	registry prometheus.Registerer

	RegistrySize   prometheus.Gauge
	DispatchRuleHits *prometheus.CounterVec
	PruneSweeps    prometheus.Counter
	PrunedPeers    prometheus.Counter
	EnvelopesRejected prometheus.Counter
	TransportSendErrors *prometheus.CounterVec
}

// New constructs and registers the router's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registry: reg,
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydra_router",
			Name:      "registry_size",
			Help:      "Number of peers currently tracked in the registry.",
		}),
		DispatchRuleHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydra_router",
			Name:      "dispatch_rule_hits_total",
			Help:      "Count of dispatch decisions by routing rule.",
		}, []string{"rule"}),
		PruneSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydra_router",
			Name:      "prune_sweeps_total",
			Help:      "Count of liveness prune sweeps run.",
		}),
		PrunedPeers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydra_router",
			Name:      "pruned_peers_total",
			Help:      "Count of peers removed for exceeding T_dead.",
		}),
		EnvelopesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydra_router",
			Name:      "envelopes_rejected_total",
			Help:      "Count of inbound envelopes that failed validation.",
		}),
		TransportSendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydra_router",
			Name:      "transport_send_errors_total",
			Help:      "Count of per-target transport send failures, by transport kind.",
		}, []string{"transport"}),
	}

	for _, c := range []prometheus.Collector{
		m.RegistrySize, m.DispatchRuleHits, m.PruneSweeps, m.PrunedPeers,
		m.EnvelopesRejected, m.TransportSendErrors,
	} {
		_ = reg.Register(c)
	}

	return m
}

// RuleHitHook returns a callback suitable for dispatch.Dispatcher.SetRuleHitHook.
func (m *Metrics) RuleHitHook() func(rule string) {
	return func(rule string) {
		m.DispatchRuleHits.WithLabelValues(rule).Inc()
	}
}
