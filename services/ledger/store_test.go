// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestStore opens a bootstrapped store in a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{
		Path:      filepath.Join(t.TempDir(), "blocks.jsonl"),
		Bootstrap: true,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

// =============================================================================
// Bootstrap and Append Tests
// =============================================================================

// TestOpen_BootstrapCreatesGenesis verifies an empty store bootstraps one
// block with index 0, the all-zero previous-hash sentinel, and a hash that
// validates.
func TestOpen_BootstrapCreatesGenesis(t *testing.T) {
	store := newTestStore(t)

	if store.Len() != 1 {
		t.Fatalf("chain length: got %d, want 1", store.Len())
	}
	genesis, err := store.Get(0)
	if err != nil {
		t.Fatalf("Get(0) failed: %v", err)
	}
	if genesis.Index != 0 {
		t.Errorf("genesis index: got %d", genesis.Index)
	}
	if genesis.PreviousHash != strings.Repeat("0", 64) {
		t.Errorf("genesis previous_hash: got %q", genesis.PreviousHash)
	}
	if err := store.ValidateChain(); err != nil {
		t.Errorf("fresh chain invalid: %v", err)
	}
}

// TestOpen_WithoutBootstrap verifies a non-genesis add on an empty chain
// fails with ErrEmptyChain.
func TestOpen_WithoutBootstrap(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "blocks.jsonl")})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("chain length: got %d, want 0", store.Len())
	}

	_, err = store.AddBlock(map[string]any{"type": "IntakeDrafted"}, nil)
	if !errors.Is(err, ErrEmptyChain) {
		t.Errorf("expected ErrEmptyChain, got %v", err)
	}
}

// TestStore_AddBlock_LinksToPredecessor verifies the scenario from the
// design: adding an IntakeDrafted event after genesis yields index 1 with
// previous_hash equal to the genesis hash.
func TestStore_AddBlock_LinksToPredecessor(t *testing.T) {
	store := newTestStore(t)
	genesis, _ := store.Get(0)

	block, err := store.AddBlock(map[string]any{"type": "IntakeDrafted", "trace_id": "t1"}, nil)
	if err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}

	if block.Index != 1 {
		t.Errorf("index: got %d, want 1", block.Index)
	}
	if block.PreviousHash != genesis.Hash {
		t.Errorf("previous_hash: got %s, want %s", block.PreviousHash, genesis.Hash)
	}
	if err := store.ValidateChain(); err != nil {
		t.Errorf("chain invalid after append: %v", err)
	}
}

// =============================================================================
// Feedback Tests
// =============================================================================

// TestStore_AppendFeedback_MergesAcrossCalls verifies the two-step
// annotation scenario: status first, correction second, both present
// afterwards, hash unchanged, and the chain still validates.
func TestStore_AppendFeedback_MergesAcrossCalls(t *testing.T) {
	store := newTestStore(t)
	block, err := store.AddBlock(map[string]any{"type": "IntakeDrafted", "trace_id": "t1"}, nil)
	if err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}
	originalHash := block.Hash

	if _, err := store.AppendFeedback(1, map[string]any{"status": "approved"}); err != nil {
		t.Fatalf("first AppendFeedback failed: %v", err)
	}
	updated, err := store.AppendFeedback(1, map[string]any{"correction": "fixed text"})
	if err != nil {
		t.Fatalf("second AppendFeedback failed: %v", err)
	}

	if updated.Feedback["status"] != "approved" {
		t.Errorf("status lost across merges: %v", updated.Feedback)
	}
	if updated.Feedback["correction"] != "fixed text" {
		t.Errorf("correction missing: %v", updated.Feedback)
	}
	if updated.Hash != originalHash {
		t.Errorf("feedback update changed the hash: %s vs %s", updated.Hash, originalHash)
	}
	if err := store.ValidateChain(); err != nil {
		t.Errorf("chain invalid after feedback updates: %v", err)
	}
}

// TestStore_AppendFeedback_IndexOutOfRange verifies annotating an absent
// index on a short chain fails with ErrIndexOutOfRange.
func TestStore_AppendFeedback_IndexOutOfRange(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}

	_, err := store.AppendFeedback(5, map[string]any{"status": "approved"})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	_, err = store.AppendFeedback(-1, map[string]any{"status": "approved"})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("negative index: expected ErrIndexOutOfRange, got %v", err)
	}
}

// =============================================================================
// Persistence Tests
// =============================================================================

// TestStore_RoundTrip verifies persisting blocks and feedback, then
// reloading, reproduces every field of every block.
func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")
	store, err := Open(Config{Path: path, Bootstrap: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.AddBlock(map[string]any{
			"type":     "IntakeDrafted",
			"trace_id": "t1",
			"n":        float64(i),
		}, nil); err != nil {
			t.Fatalf("AddBlock failed: %v", err)
		}
	}
	if _, err := store.AppendFeedback(2, map[string]any{"status": "approved"}); err != nil {
		t.Fatalf("AppendFeedback failed: %v", err)
	}
	before := store.Blocks()

	reloaded, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	after := reloaded.Blocks()

	if len(after) != len(before) {
		t.Fatalf("chain length after reload: got %d, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].Index != before[i].Index ||
			after[i].Timestamp != before[i].Timestamp ||
			after[i].PreviousHash != before[i].PreviousHash ||
			after[i].Hash != before[i].Hash {
			t.Errorf("block %d core fields changed across reload", i)
		}
	}
	if after[2].Feedback["status"] != "approved" {
		t.Errorf("feedback lost across reload: %v", after[2].Feedback)
	}
	if err := reloaded.ValidateChain(); err != nil {
		t.Errorf("reloaded chain invalid: %v", err)
	}
}

// TestOpen_SkipsBlankLines verifies blank lines in the durable file are
// tolerated on load.
func TestOpen_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")
	store, err := Open(Config{Path: path, Bootstrap: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	withBlanks := strings.ReplaceAll(string(raw), "\n", "\n\n")
	if err := os.WriteFile(path, []byte(withBlanks), 0600); err != nil {
		t.Fatalf("rewrite ledger file: %v", err)
	}

	reloaded, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reload with blank lines failed: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Errorf("chain length: got %d, want 2", reloaded.Len())
	}
}

// TestOpen_MalformedLineFails verifies a corrupt line fails the load with a
// decode error naming the line, rather than being silently dropped.
func TestOpen_MalformedLineFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")
	store, err := Open(Config{Path: path, Bootstrap: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open ledger file: %v", err)
	}
	if _, err := file.WriteString("{not json\n"); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	file.Close()

	_, err = Open(Config{Path: path})
	if err == nil {
		t.Fatal("load succeeded despite malformed line")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error is not a *DecodeError: %v", err)
	}
	if decodeErr.Line != 3 {
		t.Errorf("reported line: got %d, want 3", decodeErr.Line)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

// TestStore_ValidateChain_Idempotent verifies repeated validation of an
// untouched chain keeps succeeding.
func TestStore_ValidateChain_Idempotent(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 2; i++ {
		if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted"}, nil); err != nil {
			t.Fatalf("AddBlock failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		if err := store.ValidateChain(); err != nil {
			t.Fatalf("validation pass %d failed: %v", i, err)
		}
	}
}

// TestStore_ValidateChain_DetectsTamperedData verifies that editing a
// block's payload on disk (without recomputing its hash) fails validation
// at exactly that index with a hash mismatch.
func TestStore_ValidateChain_DetectsTamperedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")
	store, err := Open(Config{Path: path, Bootstrap: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted", "amount": float64(10)}, nil); err != nil {
			t.Fatalf("AddBlock failed: %v", err)
		}
	}

	// Tamper with block 1's payload directly in the durable file.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &record); err != nil {
		t.Fatalf("parse line 2: %v", err)
	}
	record["data"].(map[string]any)["amount"] = float64(99999)
	edited, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("re-marshal line 2: %v", err)
	}
	lines[1] = string(edited)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("rewrite ledger file: %v", err)
	}

	tampered, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	err = tampered.ValidateChain()
	var integrity *ChainIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected *ChainIntegrityError, got %v", err)
	}
	if integrity.Kind != IntegrityHashMismatch {
		t.Errorf("kind: got %s, want %s", integrity.Kind, IntegrityHashMismatch)
	}
	if integrity.Index != 1 {
		t.Errorf("index: got %d, want 1", integrity.Index)
	}
}

// TestStore_ValidateChain_DetectsBrokenLink verifies a block whose own hash
// is consistent but whose previous_hash points elsewhere fails validation
// with a broken-link error.
func TestStore_ValidateChain_DetectsBrokenLink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")
	store, err := Open(Config{Path: path, Bootstrap: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Craft a self-consistent block that links to a hash nothing produced.
	orphan, err := NewBlock(1, strings.Repeat("ab", 32), map[string]any{"type": "IntakeDrafted"}, nil)
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}
	line, err := json.Marshal(orphan)
	if err != nil {
		t.Fatalf("marshal orphan: %v", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open ledger file: %v", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		t.Fatalf("append orphan: %v", err)
	}
	file.Close()

	reloaded, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	err = reloaded.ValidateChain()
	var integrity *ChainIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected *ChainIntegrityError, got %v", err)
	}
	if integrity.Kind != IntegrityBrokenLink {
		t.Errorf("kind: got %s, want %s", integrity.Kind, IntegrityBrokenLink)
	}
	if integrity.Index != 1 {
		t.Errorf("index: got %d, want 1", integrity.Index)
	}
	_ = store
}

// TestStore_ValidateChain_DetectsMalformedGenesis verifies a chain whose
// first block is not a genesis block fails with the dedicated kind.
func TestStore_ValidateChain_DetectsMalformedGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")

	// Persist a single self-consistent block that is not a valid genesis.
	fake, err := NewBlock(0, strings.Repeat("ab", 32), map[string]any{"type": "Genesis"}, nil)
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}
	line, err := json.Marshal(fake)
	if err != nil {
		t.Fatalf("marshal fake genesis: %v", err)
	}
	if err := os.WriteFile(path, append(line, '\n'), 0600); err != nil {
		t.Fatalf("write ledger file: %v", err)
	}

	store, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	err = store.ValidateChain()
	var integrity *ChainIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected *ChainIntegrityError, got %v", err)
	}
	if integrity.Kind != IntegrityMalformedGenesis {
		t.Errorf("kind: got %s, want %s", integrity.Kind, IntegrityMalformedGenesis)
	}
}

// =============================================================================
// Query Tests
// =============================================================================

// TestStore_FindByTraceID verifies trace lookups return every matching
// block in chain order.
func TestStore_FindByTraceID(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted", "trace_id": "t1"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}
	if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted", "trace_id": "t2"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}
	if _, err := store.AddBlock(map[string]any{"type": "AdapterPromoted", "trace_id": "t1"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}

	matches := store.FindByTraceID("t1")
	if len(matches) != 2 {
		t.Fatalf("matches: got %d, want 2", len(matches))
	}
	if matches[0].Index != 1 || matches[1].Index != 3 {
		t.Errorf("matches out of chain order: %d, %d", matches[0].Index, matches[1].Index)
	}
	if got := store.FindByTraceID("missing"); len(got) != 0 {
		t.Errorf("unexpected matches for unknown trace: %d", len(got))
	}
}

// TestStore_Iterate_SnapshotSemantics verifies the sequence is bound to the
// chain state at call time and can be ranged more than once.
func TestStore_Iterate_SnapshotSemantics(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}

	seq := store.Iterate()
	if _, err := store.AddBlock(map[string]any{"type": "IntakeDrafted"}, nil); err != nil {
		t.Fatalf("AddBlock failed: %v", err)
	}

	count := 0
	for range seq {
		count++
	}
	if count != 2 {
		t.Errorf("snapshot length: got %d, want 2 (mutation leaked in)", count)
	}

	// Restartable: a second pass over the same sequence replays it.
	count = 0
	prevIndex := -1
	for b := range seq {
		count++
		if b.Index != prevIndex+1 {
			t.Errorf("blocks out of order: %d after %d", b.Index, prevIndex)
		}
		prevIndex = b.Index
	}
	if count != 2 {
		t.Errorf("second pass length: got %d, want 2", count)
	}
}

// TestStore_Get_OutOfRange verifies index lookups outside the chain fail
// with ErrIndexOutOfRange.
func TestStore_Get_OutOfRange(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}
