// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mirrorledger/mirrorledger/services/ledgerd/datatypes"
	"github.com/mirrorledger/mirrorledger/services/reflection"
)

// DraftIntake creates the handler for POST /v1/events/intake.
//
// # Description
//
// The generate-reflect-log loop: the generator drafts an HPI summary from
// the transcript and vitals, the reflection judge evaluates it, and only a
// draft that no block-severity rule rejects is appended to the chain. Warn
// violations ride along in the block's initial feedback tail so reviewers
// see them.
//
// # Outputs
//
//   - 201 with the appended block
//   - 400 if the body is invalid, the transcript oversized, or the judge
//     blocked the draft (nothing is logged in that case)
//   - 502 if generation itself failed
func DraftIntake(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "DraftIntake.handler")
		defer span.End()

		var req datatypes.IntakeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.Transcript) > datatypes.MaxTranscriptBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transcript exceeds size limit"})
			return
		}

		traceID := req.TraceID
		if traceID == "" {
			traceID = uuid.NewString()
		}
		span.SetAttributes(attribute.String("trace.id", traceID))

		start := time.Now()
		draft, err := deps.Generator.DraftIntake(ctx, req.Transcript, req.Vitals)
		deps.Metrics.GenerateDurationSeconds.
			WithLabelValues(deps.GeneratorBackend).
			Observe(time.Since(start).Seconds())
		if err != nil {
			slog.Error("Draft generation failed", "traceId", traceID, "error", err)
			span.RecordError(err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "draft generation failed", "trace_id": traceID})
			return
		}

		eval := deps.Reflector.Judge(draft.HPISummary)
		if !eval.OK {
			deps.Metrics.DraftsJudgedTotal.WithLabelValues("blocked").Inc()
			slog.Warn("Draft blocked by reflection judge",
				"traceId", traceID, "violations", len(eval.Violations))
			span.SetAttributes(attribute.Bool("reflection.blocked", true))
			c.JSON(http.StatusBadRequest, datatypes.IntakeRejectedResponse{
				Error:      "draft rejected by reflection judge",
				Violations: reflection.ViolationMaps(eval.Violations),
			})
			return
		}

		data := draft.Content()
		data["type"] = "IntakeDrafted"
		data["trace_id"] = traceID
		if req.Meta != nil {
			data["meta"] = req.Meta
		}

		feedback := map[string]any{"status": "under_review"}
		if len(eval.Violations) > 0 {
			deps.Metrics.DraftsJudgedTotal.WithLabelValues("warned").Inc()
			feedback["violations"] = reflection.ViolationMaps(eval.Violations)
		} else {
			deps.Metrics.DraftsJudgedTotal.WithLabelValues("clean").Inc()
		}

		block, err := deps.Store.AddBlock(data, feedback)
		if err != nil {
			slog.Error("Failed to append intake block", "traceId", traceID, "error", err)
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log event"})
			return
		}

		deps.Metrics.BlocksAppendedTotal.WithLabelValues("IntakeDrafted").Inc()
		deps.Metrics.ChainLength.Set(float64(deps.Store.Len()))
		span.SetAttributes(attribute.Int("block.index", block.Index))
		slog.Info("Intake drafted and logged", "traceId", traceID, "index", block.Index)

		c.JSON(http.StatusCreated, datatypes.BlockResponse{Block: block})
	}
}

// LogEvent creates the handler for POST /v1/events.
//
// Appends an arbitrary caller-supplied payload as a block. A trace_id is
// minted when the payload carries none; a missing type is recorded as
// "Generic".
func LogEvent(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "LogEvent.handler")
		defer span.End()

		var req datatypes.EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		data := req.Data
		if _, ok := data["trace_id"].(string); !ok {
			data["trace_id"] = uuid.NewString()
		}
		eventType, ok := data["type"].(string)
		if !ok || eventType == "" {
			eventType = "Generic"
			data["type"] = eventType
		}

		block, err := deps.Store.AddBlock(data, nil)
		if err != nil {
			slog.Error("Failed to append event block", "type", eventType, "error", err)
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log event"})
			return
		}

		deps.Metrics.BlocksAppendedTotal.WithLabelValues(eventType).Inc()
		deps.Metrics.ChainLength.Set(float64(deps.Store.Len()))
		span.SetAttributes(
			attribute.String("event.type", eventType),
			attribute.Int("block.index", block.Index),
		)
		slog.Info("Event logged", "type", eventType, "index", block.Index)

		c.JSON(http.StatusCreated, datatypes.BlockResponse{Block: block})
	}
}
