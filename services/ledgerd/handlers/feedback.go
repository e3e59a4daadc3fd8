// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mirrorledger/mirrorledger/services/adaptation"
	"github.com/mirrorledger/mirrorledger/services/ledger"
	"github.com/mirrorledger/mirrorledger/services/ledgerd/datatypes"
)

// AppendFeedback creates the handler for POST /v1/feedback.
//
// # Description
//
// Merges the supplied feedback into the block's mutable tail; the block's
// hash and its place in the chain are untouched. A delta carrying a
// correction (or free-text notes) also counts toward the adaptation
// threshold; when the threshold fires, approved training pairs are
// extracted, the dataset is written, and an AdapterPromoted block records
// the cycle on the chain itself.
//
// # Outputs
//
//   - 200 with the updated block and the adaptation outcome
//   - 400 if the body is invalid
//   - 404 if the index is outside the chain
func AppendFeedback(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "AppendFeedback.handler")
		defer span.End()

		var req datatypes.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(attribute.Int("block.index", req.Index))

		block, err := deps.Store.AppendFeedback(req.Index, req.Feedback)
		if err != nil {
			if errors.Is(err, ledger.ErrIndexOutOfRange) {
				deps.Metrics.FeedbackUpdatesTotal.WithLabelValues("out_of_range").Inc()
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no block at index %d", req.Index)})
				return
			}
			deps.Metrics.FeedbackUpdatesTotal.WithLabelValues("error").Inc()
			slog.Error("Failed to merge feedback", "index", req.Index, "error", err)
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to merge feedback"})
			return
		}
		deps.Metrics.FeedbackUpdatesTotal.WithLabelValues("ok").Inc()
		slog.Info("Feedback merged", "index", req.Index)

		resp := datatypes.FeedbackResponse{Block: block}
		if carriesCorrection(req.Feedback) && deps.Policy.RecordFeedback() {
			resp.AdaptationTriggered = true
			resp.DatasetPath = runAdaptationCycle(deps)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// carriesCorrection reports whether the delta contributes a training signal.
func carriesCorrection(delta map[string]any) bool {
	if s, ok := delta["correction"].(string); ok && s != "" {
		return true
	}
	if s, ok := delta["notes"].(string); ok && s != "" {
		return true
	}
	return false
}

// runAdaptationCycle extracts the dataset and records the promotion on the
// chain. Failures are logged but never fail the feedback request that
// happened to trip the threshold.
func runAdaptationCycle(deps Deps) string {
	deps.Metrics.AdaptationTriggersTotal.Inc()

	pairs := adaptation.ExtractTrainingPairs(deps.Store.Iterate(), 0, adaptation.StatusApproved)
	deps.Metrics.TrainingPairsExtracted.Observe(float64(len(pairs)))
	summary := adaptation.SummarizePairs(pairs)
	slog.Info("Adaptation threshold fired",
		"pairs", summary.Pairs, "labeled", summary.Labeled, "corrected", summary.Corrected)

	datasetPath := filepath.Join(deps.DatasetDir,
		fmt.Sprintf("adapter_data_%s.jsonl", time.Now().UTC().Format("20060102T150405Z")))
	written, err := adaptation.WriteJSONL(datasetPath, pairs)
	if err != nil {
		slog.Error("Failed to write adaptation dataset", "path", datasetPath, "error", err)
		return ""
	}

	_, err = deps.Store.AddBlock(map[string]any{
		"type":            "AdapterPromoted",
		"trace_id":        uuid.NewString(),
		"dataset_path":    written,
		"n_pairs":         summary.Pairs,
		"labeled_count":   summary.Labeled,
		"corrected_count": summary.Corrected,
		"threshold":       deps.Policy.Threshold(),
	}, nil)
	if err != nil {
		slog.Error("Failed to log AdapterPromoted block", "error", err)
		return written
	}

	deps.Metrics.BlocksAppendedTotal.WithLabelValues("AdapterPromoted").Inc()
	deps.Metrics.ChainLength.Set(float64(deps.Store.Len()))
	return written
}
