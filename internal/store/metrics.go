// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

type flushMetrics struct {
	writes   *prometheus.CounterVec
	failures prometheus.Counter
	dirty    prometheus.Gauge
	duration prometheus.Histogram
}

func newFlushMetrics() *flushMetrics {
	return &flushMetrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "azimuth_store_writes_total",
				Help: "Persistence writes by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "azimuth_store_persistence_failures_total",
			Help: "Writes that exhausted their retries and stayed dirty",
		}),
		dirty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "azimuth_store_dirty_objects",
			Help: "Objects waiting to be flushed",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "azimuth_store_flush_duration_seconds",
			Help:    "Time spent in one flush pass",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *flushMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.writes, m.failures, m.dirty, m.duration)
}
