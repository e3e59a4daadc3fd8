// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package generator drafts clinical intake summaries from raw encounter
// inputs. Two backends implement the Generator interface: a deterministic
// local stub for development and tests, and an OpenAI-backed client for
// real generation. Consumers depend on the interface, not a backend.
package generator

import "context"

// Draft is a generated intake record before it is judged and logged.
type Draft struct {
	// Transcript and Vitals echo the source inputs so the logged event is
	// self-contained.
	Transcript string         `json:"source_transcript"`
	Vitals     map[string]any `json:"vitals"`

	// HPISummary is the generated History of Present Illness text. This is
	// the field the reflection judge evaluates.
	HPISummary string `json:"hpi_summary"`

	Model     string `json:"model"`
	AdapterID string `json:"adapter_id,omitempty"`
}

// Content returns the draft as an event payload map.
func (d Draft) Content() map[string]any {
	return map[string]any{
		"source_transcript": d.Transcript,
		"vitals":            d.Vitals,
		"hpi_summary":       d.HPISummary,
		"model": map[string]any{
			"name":       d.Model,
			"adapter_id": d.AdapterID,
		},
	}
}

// Generator defines the standard interface for any intake drafting backend.
type Generator interface {
	DraftIntake(ctx context.Context, transcript string, vitals map[string]any) (Draft, error)
}
