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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mirrorledger/mirrorledger/services/ledger"
	"github.com/mirrorledger/mirrorledger/services/ledgerd/datatypes"
)

// GetChain creates the handler for GET /v1/chain.
//
// Returns the full chain snapshot, or only the blocks correlated to
// ?trace_id= when the query parameter is present.
func GetChain(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "GetChain.handler")
		defer span.End()

		var blocks []ledger.Block
		if traceID := c.Query("trace_id"); traceID != "" {
			span.SetAttributes(attribute.String("trace.id", traceID))
			blocks = deps.Store.FindByTraceID(traceID)
		} else {
			blocks = deps.Store.Blocks()
		}
		if blocks == nil {
			blocks = []ledger.Block{}
		}

		span.SetAttributes(attribute.Int("chain.blocks", len(blocks)))
		c.JSON(http.StatusOK, datatypes.ChainResponse{Blocks: blocks, Count: len(blocks)})
	}
}

// GetBlock creates the handler for GET /v1/blocks/:index.
func GetBlock(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "GetBlock.handler")
		defer span.End()

		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
			return
		}
		span.SetAttributes(attribute.Int("block.index", index))

		block, err := deps.Store.Get(index)
		if err != nil {
			if errors.Is(err, ledger.ErrIndexOutOfRange) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no block at index %d", index)})
				return
			}
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read block"})
			return
		}

		c.JSON(http.StatusOK, datatypes.BlockResponse{Block: block})
	}
}
