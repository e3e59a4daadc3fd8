// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generator

import (
	"context"
	"fmt"
	"log/slog"
)

// Stub is a deterministic local backend that templates a summary from the
// inputs without any network calls. The same inputs always produce the same
// draft, which keeps the hash-chain tests reproducible.
type Stub struct {
	Model     string
	AdapterID string
}

// NewStub returns a stub generator. An empty model name defaults to
// "stub-generator".
func NewStub(model, adapterID string) *Stub {
	if model == "" {
		model = "stub-generator"
	}
	slog.Info("Initializing stub generator", "model", model, "adapter_id", adapterID)
	return &Stub{Model: model, AdapterID: adapterID}
}

// DraftIntake implements the Generator interface.
func (s *Stub) DraftIntake(_ context.Context, transcript string, vitals map[string]any) (Draft, error) {
	if vitals == nil {
		vitals = map[string]any{}
	}
	return Draft{
		Transcript: transcript,
		Vitals:     vitals,
		HPISummary: fmt.Sprintf("Patient reports feeling unwell. Key complaint is '%s'. Vitals are stable.", transcript),
		Model:      s.Model,
		AdapterID:  s.AdapterID,
	}, nil
}
