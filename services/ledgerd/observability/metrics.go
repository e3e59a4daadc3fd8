// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the ledger service.
//
// # Description
//
// Metrics cover the write path (blocks appended, feedback merged), the
// verification path (validation runs by outcome), the reflection judge
// (drafts blocked or flagged), and the adaptation loop (threshold firings,
// extracted training pairs).
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mirrorledger"

// Metrics holds all Prometheus metrics for the ledger service.
//
// Construct one instance per process with NewMetrics and pass it to the
// handlers; there is no package-level singleton.
type Metrics struct {
	// BlocksAppendedTotal counts blocks appended to the chain.
	// Labels: type (IntakeDrafted, AdapterPromoted, Genesis, ...)
	BlocksAppendedTotal *prometheus.CounterVec

	// FeedbackUpdatesTotal counts feedback merges by outcome.
	// Labels: status (ok, out_of_range, error)
	FeedbackUpdatesTotal *prometheus.CounterVec

	// ValidationRunsTotal counts chain validations by outcome.
	// Labels: outcome (ok, hash_mismatch, broken_link, malformed_genesis)
	ValidationRunsTotal *prometheus.CounterVec

	// DraftsJudgedTotal counts reflection verdicts.
	// Labels: verdict (clean, warned, blocked)
	DraftsJudgedTotal *prometheus.CounterVec

	// AdaptationTriggersTotal counts threshold firings.
	AdaptationTriggersTotal prometheus.Counter

	// TrainingPairsExtracted records dataset sizes per adaptation cycle.
	TrainingPairsExtracted prometheus.Histogram

	// ChainLength tracks the current number of blocks.
	ChainLength prometheus.Gauge

	// GenerateDurationSeconds measures draft generation latency.
	// Labels: backend (stub, openai)
	GenerateDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers all ledger service metrics with reg.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// registry so parallel test packages do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BlocksAppendedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_appended_total",
			Help:      "Blocks appended to the chain, by event type.",
		}, []string{"type"}),

		FeedbackUpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_updates_total",
			Help:      "Feedback merge attempts, by outcome.",
		}, []string{"status"}),

		ValidationRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "validation_runs_total",
			Help:      "Chain validation runs, by outcome.",
		}, []string{"outcome"}),

		DraftsJudgedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "drafts_judged_total",
			Help:      "Reflection verdicts on generated drafts.",
		}, []string{"verdict"}),

		AdaptationTriggersTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "adaptation_triggers_total",
			Help:      "Times the feedback threshold fired an adaptation cycle.",
		}),

		TrainingPairsExtracted: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "training_pairs_extracted",
			Help:      "Training pairs extracted per adaptation cycle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		ChainLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "chain_length",
			Help:      "Current number of blocks in the chain.",
		}),

		GenerateDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "generate_duration_seconds",
			Help:      "Intake draft generation latency, by backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
	}
}
