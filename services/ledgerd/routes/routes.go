// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirrorledger/mirrorledger/services/ledgerd/handlers"
)

// SetupRoutes registers every API route on the router.
func SetupRoutes(router *gin.Engine, deps handlers.Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/chain", handlers.GetChain(deps))
		v1.GET("/blocks/:index", handlers.GetBlock(deps))
		v1.GET("/validate", handlers.ValidateChain(deps))
		v1.POST("/events", handlers.LogEvent(deps))
		v1.POST("/events/intake", handlers.DraftIntake(deps))
		v1.POST("/feedback", handlers.AppendFeedback(deps))
	}
}
