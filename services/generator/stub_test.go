// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_DraftIntake_Deterministic(t *testing.T) {
	gen := NewStub("", "adapter-v1")
	assert.Equal(t, "stub-generator", gen.Model)

	vitals := map[string]any{"hr": 88, "bp": "120/80"}
	first, err := gen.DraftIntake(context.Background(), "persistent cough for three days", vitals)
	require.NoError(t, err)
	second, err := gen.DraftIntake(context.Background(), "persistent cough for three days", vitals)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same inputs must produce the same draft")
	assert.Contains(t, first.HPISummary, "persistent cough for three days")
	assert.Equal(t, "persistent cough for three days", first.Transcript)
	assert.Equal(t, vitals, first.Vitals)
	assert.Equal(t, "adapter-v1", first.AdapterID)
}

func TestStub_DraftIntake_NilVitals(t *testing.T) {
	gen := NewStub("stub-generator", "")
	draft, err := gen.DraftIntake(context.Background(), "headache", nil)
	require.NoError(t, err)
	assert.NotNil(t, draft.Vitals)
}

func TestDraft_Content(t *testing.T) {
	draft := Draft{
		Transcript: "dizzy on standing",
		Vitals:     map[string]any{"hr": 102},
		HPISummary: "Patient reports dizziness on standing.",
		Model:      "stub-generator",
		AdapterID:  "adapter-v1",
	}

	content := draft.Content()
	assert.Equal(t, "dizzy on standing", content["source_transcript"])
	assert.Equal(t, "Patient reports dizziness on standing.", content["hpi_summary"])

	model, ok := content["model"].(map[string]any)
	require.True(t, ok, "model entry must be a nested map")
	assert.Equal(t, "stub-generator", model["name"])
	assert.Equal(t, "adapter-v1", model["adapter_id"])

	for key := range content {
		assert.False(t, strings.Contains(key, "patient"), "content must not carry patient identifiers")
	}
}
