// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorledger/mirrorledger/services/ledger"
)

// --- Show Command Flags ---
var (
	showTraceID string
	showIndex   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print blocks from the chain as JSON",
	Long: `Show prints blocks to stdout as JSON. With no flags the whole chain is
printed; --index selects a single block and --trace-id selects every
block carrying that trace id, in chain order.`,
	Run: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showTraceID, "trace-id", "",
		"Print only blocks whose data carries this trace_id")
	showCmd.Flags().IntVar(&showIndex, "index", -1,
		"Print only the block at this index")
}

func runShow(cmd *cobra.Command, args []string) {
	if showTraceID != "" && showIndex >= 0 {
		logger.Error("Flags --trace-id and --index are mutually exclusive")
		os.Exit(1)
	}

	store := openStore()

	if showIndex >= 0 {
		block, err := store.Get(showIndex)
		if err != nil {
			if errors.Is(err, ledger.ErrIndexOutOfRange) {
				logger.Error("No block at index", "index", showIndex, "blocks", store.Len())
			} else {
				logger.Error("Failed to read block", "index", showIndex, "error", err)
			}
			os.Exit(1)
		}
		printJSON(block)
		return
	}

	blocks := store.Blocks()
	if showTraceID != "" {
		blocks = store.FindByTraceID(showTraceID)
		if len(blocks) == 0 {
			logger.Error("No blocks for trace id", "trace_id", showTraceID)
			os.Exit(1)
		}
	}
	printJSON(blocks)
}

// printJSON writes indented JSON to stdout. Logs stay on stderr so the
// output pipes cleanly into jq.
func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error("Failed to encode output", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
