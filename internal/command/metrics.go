// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for command metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusNotFound         = "not_found"
	StatusPermissionDenied = "permission_denied"
	StatusRateLimited      = "rate_limited"
	StatusPanic            = "panic"
)

// unknownVerb labels commands that matched no verb, so arbitrary input does
// not become a label value.
const unknownVerb = "unknown"

// CommandExecutions counts dispatched commands by verb and outcome.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "azimuth_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"verb", "status"},
)

// CommandDuration observes how long commands take, including time spent
// waiting for the world lock.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "azimuth_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"verb", "mode"},
)

// RegisterMetrics registers the command metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions, CommandDuration)
}

// metricsRecorder collects the labels of one dispatch and records them once.
type metricsRecorder struct {
	start  time.Time
	verb   string
	mode   string
	status string
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{start: time.Now(), verb: unknownVerb, mode: "read", status: StatusError}
}

func (m *metricsRecorder) record() {
	CommandExecutions.WithLabelValues(m.verb, m.status).Inc()
	CommandDuration.WithLabelValues(m.verb, m.mode).Observe(time.Since(m.start).Seconds())
}
