// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response structures for the ledger
// service API.
package datatypes

import "github.com/mirrorledger/mirrorledger/services/ledger"

// MaxTranscriptBytes bounds the intake transcript size. Oversized
// transcripts are rejected before any generation happens.
const MaxTranscriptBytes = 32 * 1024

// IntakeRequest is the body of POST /v1/events/intake.
//
// TraceID is optional; the server mints one when absent so every logged
// event is correlatable.
type IntakeRequest struct {
	Transcript string         `json:"transcript" binding:"required"`
	Vitals     map[string]any `json:"vitals"`
	TraceID    string         `json:"trace_id"`
	Meta       map[string]any `json:"meta"`
}

// EventRequest is the body of POST /v1/events: an arbitrary payload logged
// as-is into a block's immutable data.
type EventRequest struct {
	Data map[string]any `json:"data" binding:"required"`
}

// FeedbackRequest is the body of POST /v1/feedback.
type FeedbackRequest struct {
	Index    int            `json:"index" binding:"min=0"`
	Feedback map[string]any `json:"feedback" binding:"required"`
}

// BlockResponse wraps a single block.
type BlockResponse struct {
	Block ledger.Block `json:"block"`
}

// ChainResponse wraps a chain listing.
type ChainResponse struct {
	Blocks []ledger.Block `json:"blocks"`
	Count  int            `json:"count"`
}

// ValidateResponse is the body of GET /v1/validate.
//
// On failure, Index and Kind locate the first block that broke validation.
type ValidateResponse struct {
	Status string `json:"status"`
	Blocks int    `json:"blocks"`
	Index  *int   `json:"index,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
}

// IntakeRejectedResponse is returned when the reflection judge blocks a
// draft. Nothing is logged to the chain in that case.
type IntakeRejectedResponse struct {
	Error      string           `json:"error"`
	Violations []map[string]any `json:"violations"`
}

// FeedbackResponse wraps the updated block plus the adaptation outcome.
type FeedbackResponse struct {
	Block               ledger.Block `json:"block"`
	AdaptationTriggered bool         `json:"adaptation_triggered"`
	DatasetPath         string       `json:"dataset_path,omitempty"`
}
