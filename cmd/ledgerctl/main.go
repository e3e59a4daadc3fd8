// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command ledgerctl inspects and verifies a mirror ledger chain file
// without going through the HTTP service.
//
// # Usage
//
//	ledgerctl validate --ledger ./data/blocks.jsonl
//	ledgerctl show --trace-id t1
//	ledgerctl show --index 3
//	ledgerctl status
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorledger/mirrorledger/pkg/logging"
	"github.com/mirrorledger/mirrorledger/services/ledger"
)

// --- Global Command Variables ---
var (
	ledgerPath string
	jsonOutput bool

	logger = logging.New(logging.Config{
		Level:   logging.LevelWarn,
		Service: "ledgerctl",
	})

	rootCmd = &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and verify a mirror ledger chain file",
		Long: `Ledgerctl works directly against the JSON-lines chain file used by
the ledgerd server. All commands are read-only; writes always go
through the server so the single-writer model holds.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "./data/blocks.jsonl",
		"Path to the JSON-lines chain file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statusCmd)
}

// openStore loads the chain file without bootstrapping; an absent or empty
// file is reported rather than silently initialized.
func openStore() *ledger.Store {
	store, err := ledger.Open(ledger.Config{Path: ledgerPath})
	if err != nil {
		logger.Error("Failed to load ledger", "path", ledgerPath, "error", err)
		os.Exit(1)
	}
	if store.Len() == 0 {
		logger.Error("Ledger file is empty or missing", "path", ledgerPath)
		os.Exit(1)
	}
	return store
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
