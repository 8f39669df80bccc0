// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package memo

import (
	"errors"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	lookups       *prometheus.CounterVec
	storeFailures prometheus.Counter
	pruned        prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memo_lookups_total",
			Help: "Cache lookups by result status.",
		}, []string{"status"}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memo_store_failures_total",
			Help: "Computed results that could not be cached.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memo_pruned_records_total",
			Help: "Records removed by reconcile because their blob was missing.",
		}),
	}
}

// register adds the collectors to reg. Collectors already registered by
// another Cache are shared.
func (m *metrics) register(reg prometheus.Registerer, l log.Interface) {
	m.lookups = registerOrExisting(reg, m.lookups, l)
	m.storeFailures = registerOrExisting(reg, m.storeFailures, l)
	m.pruned = registerOrExisting(reg, m.pruned, l)
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C, l log.Interface) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	l.WithError(err).Warn("failed to register metrics")
	return c
}
