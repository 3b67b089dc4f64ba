package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes recorded in vstore_mutations_total.
const (
	outcomeApplied = "applied"
	outcomeNoop    = "noop"
	outcomeFailed  = "failed"
)

type metrics struct {
	scriptLoads   prometheus.Counter
	scriptReloads prometheus.Counter
	mutations     *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		scriptLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vstore",
			Name:      "script_loads_total",
			Help:      "Number of Lua scripts registered with the server",
		}),
		scriptReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vstore",
			Name:      "script_reloads_total",
			Help:      "Number of script handles the server no longer recognized",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vstore",
			Name:      "mutations_total",
			Help:      "Number of checked mutations by operation and outcome",
		}, []string{
			"op",
			"outcome",
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vstore",
			Name:      "callbacks_total",
			Help:      "Number of local callbacks invoked by kind",
		}, []string{
			"kind",
		}),
	}
	if reg == nil {
		return m
	}

	m.scriptLoads = register(reg, m.scriptLoads)
	m.scriptReloads = register(reg, m.scriptReloads)
	m.mutations = register(reg, m.mutations)
	m.callbacks = register(reg, m.callbacks)
	return m
}

// register adds c to reg. When an identical collector is already registered,
// as happens for clones sharing a registerer, the existing one is returned
// so both clients feed the same series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ScriptLoaded implements script.Observer.
func (m *metrics) ScriptLoaded(string) {
	m.scriptLoads.Inc()
}

// ScriptReloaded implements script.Observer.
func (m *metrics) ScriptReloaded(string) {
	m.scriptReloads.Inc()
}

func (m *metrics) mutation(op, outcome string) {
	m.mutations.WithLabelValues(op, outcome).Inc()
}

func (m *metrics) callback(kind string) {
	m.callbacks.WithLabelValues(kind).Inc()
}
