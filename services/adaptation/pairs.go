// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package adaptation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mirrorledger/mirrorledger/services/ledger"
)

// StatusApproved is the feedback status that marks a block as reviewed and
// usable for training.
const StatusApproved = "approved"

const datasetFileMode = 0600

// TrainingPair is one supervised example extracted from a reviewed intake
// block. Input is de-identified: it carries only vitals and the generated
// summary, never patient or encounter identifiers.
type TrainingPair struct {
	TraceID     string         `json:"trace_id"`
	Input       map[string]any `json:"input"`
	Labels      []string       `json:"labels"`
	Correction  string         `json:"correction"`
	Annotator   string         `json:"annotator,omitempty"`
	AdapterHint string         `json:"adapter_hint,omitempty"`
}

// PairSummary carries the counts policies use to judge a dataset.
type PairSummary struct {
	Pairs     int `json:"n_pairs"`
	Labeled   int `json:"labeled_count"`
	Corrected int `json:"corrected_count"`
}

// ExtractTrainingPairs collects training pairs from the chain.
//
// # Description
//
// Scans IntakeDrafted blocks at or past sinceIndex whose feedback status
// matches onlyStatus (pass "" to accept any status). Blocks with neither
// labels nor a correction carry nothing to learn from and are skipped. The
// input side keeps only vitals and hpi_summary; identifiers in the payload
// never reach the dataset.
//
// # Inputs
//
//   - blocks: A chain snapshot, typically Store.Iterate().
//   - sinceIndex: First chain index to consider.
//   - onlyStatus: Required feedback status, or "" for no status filter.
//
// # Outputs
//
//   - []TrainingPair: Pairs in chain order.
func ExtractTrainingPairs(blocks iter.Seq[ledger.Block], sinceIndex int, onlyStatus string) []TrainingPair {
	var pairs []TrainingPair
	for b := range blocks {
		if b.Index < sinceIndex || b.Type() != "IntakeDrafted" {
			continue
		}
		if onlyStatus != "" {
			status, _ := b.Feedback["status"].(string)
			if status != onlyStatus {
				continue
			}
		}

		labels := labelsFromFeedback(b.Feedback)
		correction := correctionFromFeedback(b.Feedback)
		if len(labels) == 0 && correction == "" {
			continue
		}

		annotator, _ := b.Feedback["annotator"].(string)
		pairs = append(pairs, TrainingPair{
			TraceID:     b.TraceID(),
			Input:       deidentifiedInput(b.Data),
			Labels:      labels,
			Correction:  correction,
			Annotator:   annotator,
			AdapterHint: adapterHint(b.Data),
		})
	}
	return pairs
}

// WriteJSONL persists pairs as one JSON object per line.
//
// Writes a temporary sibling and renames it into place so a crash mid-write
// never leaves a truncated dataset. Returns the absolute dataset path.
func WriteJSONL(path string, pairs []TrainingPair) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve dataset path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		return "", fmt.Errorf("create dataset directory: %w", err)
	}

	tmp := abs + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, datasetFileMode)
	if err != nil {
		return "", fmt.Errorf("open dataset temp file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for i, pair := range pairs {
		line, err := json.Marshal(pair)
		if err != nil {
			file.Close()
			os.Remove(tmp)
			return "", fmt.Errorf("encode pair %d: %w", i, err)
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			file.Close()
			os.Remove(tmp)
			return "", fmt.Errorf("write pair %d: %w", i, err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("flush dataset: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync dataset: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replace dataset: %w", err)
	}
	return abs, nil
}

// SummarizePairs computes the dataset counts policies decide on.
func SummarizePairs(pairs []TrainingPair) PairSummary {
	s := PairSummary{Pairs: len(pairs)}
	for _, p := range pairs {
		if len(p.Labels) > 0 {
			s.Labeled++
		}
		if p.Correction != "" {
			s.Corrected++
		}
	}
	return s
}

// deidentifiedInput keeps only the allowed input keys.
func deidentifiedInput(data map[string]any) map[string]any {
	input := map[string]any{}
	if vitals, ok := data["vitals"].(map[string]any); ok {
		input["vitals"] = vitals
	}
	if summary, ok := data["hpi_summary"].(string); ok {
		input["hpi_summary"] = summary
	}
	return input
}

// correctionFromFeedback prefers the structured correction field and falls
// back to free-text notes.
func correctionFromFeedback(fb map[string]any) string {
	if c, ok := fb["correction"].(string); ok && strings.TrimSpace(c) != "" {
		return strings.TrimSpace(c)
	}
	if n, ok := fb["notes"].(string); ok {
		return strings.TrimSpace(n)
	}
	return ""
}

// labelsFromFeedback tolerates string and numeric label entries; everything
// else is dropped.
func labelsFromFeedback(fb map[string]any) []string {
	raw, ok := fb["labels"].([]any)
	if !ok {
		return nil
	}
	var labels []string
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			labels = append(labels, v)
		case float64:
			labels = append(labels, strconv.FormatFloat(v, 'f', -1, 64))
		case int:
			labels = append(labels, strconv.Itoa(v))
		}
	}
	return labels
}

// adapterHint reads the adapter the block was drafted with, when recorded.
func adapterHint(data map[string]any) string {
	model, ok := data["model"].(map[string]any)
	if !ok {
		return ""
	}
	hint, _ := model["adapter_id"].(string)
	return hint
}
