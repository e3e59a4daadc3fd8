// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command ledgerd starts the mirror ledger HTTP server.
//
// It reads configuration from environment variables and serves the
// tamper-evident event chain plus the generate-reflect-log intake loop.
//
// # Environment Variables
//
//   - LEDGERD_PORT: HTTP server port (default: 8140)
//   - LEDGER_PATH: JSON-lines chain file (default: ./data/blocks.jsonl)
//   - DATASET_DIR: adaptation dataset directory (default: ./data/datasets)
//   - GENERATOR_BACKEND: drafting backend - stub, openai (default: stub)
//   - OPENAI_API_KEY: API key for the openai backend
//   - OPENAI_MODEL: model name for the openai backend
//   - ADAPTER_ID: adapter label recorded on drafts (optional)
//   - ADAPTATION_THRESHOLD: corrections per adaptation cycle (default: 5)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o ledgerd ./cmd/ledgerd
//
//	# Run
//	./ledgerd
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/mirrorledger/mirrorledger/services/ledgerd"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := ledgerd.Config{
		Port:                getEnvInt("LEDGERD_PORT", 8140),
		LedgerPath:          getEnvString("LEDGER_PATH", "./data/blocks.jsonl"),
		DatasetDir:          getEnvString("DATASET_DIR", "./data/datasets"),
		GeneratorBackend:    getEnvString("GENERATOR_BACKEND", "stub"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         os.Getenv("OPENAI_MODEL"),
		AdapterID:           os.Getenv("ADAPTER_ID"),
		AdaptationThreshold: getEnvInt("ADAPTATION_THRESHOLD", 5),
		OTelEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	slog.Info("Starting ledgerd",
		"port", cfg.Port,
		"ledger_path", cfg.LedgerPath,
		"generator_backend", cfg.GeneratorBackend,
	)

	svc, err := ledgerd.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create ledger service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Ledger service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
