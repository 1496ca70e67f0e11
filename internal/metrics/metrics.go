/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics holds the Prometheus collectors of the proof sharing flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission results.
const (
	ResultSubmitted = "submitted"
	ResultFailed    = "failed"
	ResultRejected  = "rejected"
)

// Confirmation decisions.
const (
	DecisionAccepted = "accepted"
	DecisionDeclined = "declined"
)

// Metrics provides observability for proof sharing sessions. A nil *Metrics records nothing.
type Metrics struct {
	Loads                   *prometheus.CounterVec
	LoadFailures            *prometheus.CounterVec
	LoadLatency             prometheus.Histogram
	RevocationCheckFailures prometheus.Counter
	Submissions             *prometheus.CounterVec
	Confirmations           *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		Loads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holder_agent_proofshare_loads_total",
			Help: "Total proof requests loaded by definition version",
		}, []string{"version"}),

		LoadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holder_agent_proofshare_load_failures_total",
			Help: "Total proof request loads that failed by stage",
		}, []string{"stage"}), // stage: "definition", "credentials", "normalize"

		LoadLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "holder_agent_proofshare_load_duration_seconds",
			Help:    "Duration of a proof request load including the revocation refresh",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		RevocationCheckFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "holder_agent_proofshare_revocation_check_failures_total",
			Help: "Total revocation refreshes that failed before preselection",
		}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holder_agent_proofshare_submissions_total",
			Help: "Total proof submissions and rejections by result",
		}, []string{"result"}),

		Confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holder_agent_proofshare_confirmations_total",
			Help: "Total multi-set change confirmations by decision",
		}, []string{"decision"}),
	}
}

// IncrementLoad records a successful load.
func (m *Metrics) IncrementLoad(version string) {
	if m != nil {
		m.Loads.WithLabelValues(version).Inc()
	}
}

// IncrementLoadFailure records a failed load.
func (m *Metrics) IncrementLoadFailure(stage string) {
	if m != nil {
		m.LoadFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveLoadLatency records the duration of a load.
func (m *Metrics) ObserveLoadLatency(d time.Duration) {
	if m != nil {
		m.LoadLatency.Observe(d.Seconds())
	}
}

// IncrementRevocationCheckFailure records a failed revocation refresh.
func (m *Metrics) IncrementRevocationCheckFailure() {
	if m != nil {
		m.RevocationCheckFailures.Inc()
	}
}

// IncrementSubmission records a submission outcome.
func (m *Metrics) IncrementSubmission(result string) {
	if m != nil {
		m.Submissions.WithLabelValues(result).Inc()
	}
}

// IncrementConfirmation records a confirmation decision.
func (m *Metrics) IncrementConfirmation(decision string) {
	if m != nil {
		m.Confirmations.WithLabelValues(decision).Inc()
	}
}
