// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides HTTP request handlers for the ledger service.
//
// Handlers are gin.HandlerFunc factories over a shared Deps bundle. Nothing
// in this package holds state of its own; the ledger store is the single
// writer and every mutation goes through it.
package handlers

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/mirrorledger/mirrorledger/services/adaptation"
	"github.com/mirrorledger/mirrorledger/services/generator"
	"github.com/mirrorledger/mirrorledger/services/ledger"
	"github.com/mirrorledger/mirrorledger/services/ledgerd/observability"
	"github.com/mirrorledger/mirrorledger/services/reflection"
)

var tracer = otel.Tracer("mirrorledger.ledgerd.handlers")

// Deps bundles the collaborators the handlers operate on.
//
// # Fields
//
//   - Store: The ledger store (required).
//   - Generator: Intake drafting backend (required for the intake route).
//   - GeneratorBackend: Backend label for metrics ("stub", "openai").
//   - Reflector: Constitution judge applied to every draft.
//   - Policy: Adaptation threshold policy fed by correction feedback.
//   - Metrics: Prometheus metrics (required).
//   - DatasetDir: Directory adaptation datasets are written into.
type Deps struct {
	Store            *ledger.Store
	Generator        generator.Generator
	GeneratorBackend string
	Reflector        *reflection.Reflector
	Policy           *adaptation.Policy
	Metrics          *observability.Metrics
	DatasetDir       string
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
