// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package adaptation decides when accumulated human feedback justifies
// promoting a new adapter, and turns reviewed ledger blocks into training
// data for that promotion. Actual fine-tuning runs outside this system; the
// ledger records the trigger and the dataset it was extracted from.
package adaptation

import (
	"log/slog"
	"sync"
)

// DefaultThreshold is the feedback count that triggers adaptation when no
// explicit threshold is configured.
const DefaultThreshold = 5

// Policy counts correction-bearing feedback events and fires when the count
// reaches its threshold. Safe for concurrent use.
type Policy struct {
	mu        sync.Mutex
	threshold int
	count     int
}

// NewPolicy builds a policy. Thresholds below 1 fall back to
// DefaultThreshold.
func NewPolicy(threshold int) *Policy {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	slog.Info("Initializing adaptation policy", "threshold", threshold)
	return &Policy{threshold: threshold}
}

// RecordFeedback increments the counter and reports whether the threshold
// was reached. When it fires, the counter resets so the next cycle starts
// from zero.
func (p *Policy) RecordFeedback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++
	slog.Debug("Feedback recorded", "count", p.count, "threshold", p.threshold)
	if p.count >= p.threshold {
		slog.Info("Adaptation threshold met, resetting counter", "threshold", p.threshold)
		p.count = 0
		return true
	}
	return false
}

// Count returns the current feedback count.
func (p *Policy) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Threshold returns the configured trigger threshold.
func (p *Policy) Threshold() int {
	return p.threshold
}
