// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusResult is the JSON shape emitted with --json.
type statusResult struct {
	Path       string `json:"path"`
	Blocks     int    `json:"blocks"`
	LatestHash string `json:"latest_hash"`
	LatestTime string `json:"latest_timestamp"`
	LatestType string `json:"latest_type"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the chain: block count and latest block",
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	store := openStore()

	latest, _ := store.Latest()
	result := statusResult{
		Path:       ledgerPath,
		Blocks:     store.Len(),
		LatestHash: latest.Hash,
		LatestTime: latest.Timestamp,
		LatestType: latest.Type(),
	}

	if jsonOutput {
		printJSON(result)
		return
	}

	fmt.Printf("ledger:    %s\n", result.Path)
	fmt.Printf("blocks:    %d\n", result.Blocks)
	fmt.Printf("latest:    #%d %s (%s)\n", latest.Index, result.LatestType, result.LatestTime)
	fmt.Printf("hash:      %s\n", result.LatestHash)
}
