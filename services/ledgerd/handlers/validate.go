// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mirrorledger/mirrorledger/services/ledger"
	"github.com/mirrorledger/mirrorledger/services/ledgerd/datatypes"
)

// ValidateChain creates the handler for GET /v1/validate.
//
// # Description
//
// Walks the whole chain: every block's hash is recomputed against its core
// fields and every link is checked against its predecessor. Validation of
// an untouched chain is idempotent; a tampered chain reports the first
// failing block's index and the kind of breakage.
//
// # Outputs
//
//   - 200 {"status":"ok","blocks":N} when the chain verifies
//   - 500 with the failing index and kind when it does not
func ValidateChain(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "ValidateChain.handler")
		defer span.End()

		blocks := deps.Store.Len()
		span.SetAttributes(attribute.Int("chain.blocks", blocks))

		err := deps.Store.ValidateChain()
		if err == nil {
			deps.Metrics.ValidationRunsTotal.WithLabelValues("ok").Inc()
			c.JSON(http.StatusOK, datatypes.ValidateResponse{Status: "ok", Blocks: blocks})
			return
		}

		var integrity *ledger.ChainIntegrityError
		if errors.As(err, &integrity) {
			deps.Metrics.ValidationRunsTotal.WithLabelValues(string(integrity.Kind)).Inc()
			slog.Error("Chain validation failed",
				"index", integrity.Index, "kind", integrity.Kind)
			span.SetAttributes(
				attribute.Int("integrity.index", integrity.Index),
				attribute.String("integrity.kind", string(integrity.Kind)),
			)
			span.RecordError(err)
			index := integrity.Index
			c.JSON(http.StatusInternalServerError, datatypes.ValidateResponse{
				Status: "corrupt",
				Blocks: blocks,
				Index:  &index,
				Kind:   string(integrity.Kind),
				Error:  integrity.Error(),
			})
			return
		}

		deps.Metrics.ValidationRunsTotal.WithLabelValues("error").Inc()
		slog.Error("Chain validation errored", "error", err)
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, datatypes.ValidateResponse{
			Status: "error",
			Blocks: blocks,
			Error:  err.Error(),
		})
	}
}
