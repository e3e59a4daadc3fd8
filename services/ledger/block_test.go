// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// Canonical Encoding Tests
// =============================================================================

// TestMarshalCanonical_KeyOrderIndependent verifies that two semantically
// equal maps encode to identical bytes regardless of insertion order.
//
// # Description
//
// This is the single correctness-critical property of the whole system:
// any nondeterminism here silently breaks hash verifiability.
func TestMarshalCanonical_KeyOrderIndependent(t *testing.T) {
	first := map[string]any{"a": 1, "b": 2}
	second := map[string]any{"b": 2, "a": 1}

	encFirst, err := MarshalCanonical(first)
	if err != nil {
		t.Fatalf("MarshalCanonical failed: %v", err)
	}
	encSecond, err := MarshalCanonical(second)
	if err != nil {
		t.Fatalf("MarshalCanonical failed: %v", err)
	}

	if string(encFirst) != string(encSecond) {
		t.Errorf("encodings differ: %q vs %q", encFirst, encSecond)
	}
}

// TestMarshalCanonical_SortsNestedKeys verifies key sorting applies at every
// nesting level and that no incidental whitespace is emitted.
func TestMarshalCanonical_SortsNestedKeys(t *testing.T) {
	value := map[string]any{
		"outer": map[string]any{"zeta": 1, "alpha": 2},
		"list":  []any{map[string]any{"b": true, "a": false}},
	}

	enc, err := MarshalCanonical(value)
	if err != nil {
		t.Fatalf("MarshalCanonical failed: %v", err)
	}

	want := `{"list":[{"a":false,"b":true}],"outer":{"alpha":2,"zeta":1}}`
	if string(enc) != want {
		t.Errorf("canonical form mismatch:\n got:  %s\n want: %s", enc, want)
	}
}

// TestDigestHex_Shape verifies the digest is 64 lowercase hex characters and
// stable across calls.
func TestDigestHex_Shape(t *testing.T) {
	d := DigestHex([]byte("mirror ledger"))
	if len(d) != 64 {
		t.Fatalf("digest length: got %d, want 64", len(d))
	}
	if d != strings.ToLower(d) {
		t.Errorf("digest is not lowercase: %s", d)
	}
	if again := DigestHex([]byte("mirror ledger")); again != d {
		t.Errorf("digest not stable: %s vs %s", d, again)
	}
}

// =============================================================================
// Block Tests
// =============================================================================

// TestNewBlock_HashIsPureFunctionOfCore verifies ComputeHash depends only on
// the core fields and yields identical output across calls.
func TestNewBlock_HashIsPureFunctionOfCore(t *testing.T) {
	block, err := NewBlock(0, GenesisPreviousHash, map[string]any{"type": "Genesis"}, nil)
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}

	first, err := block.ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	second, err := block.ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}

	if first != second {
		t.Errorf("ComputeHash not deterministic: %s vs %s", first, second)
	}
	if block.Hash != first {
		t.Errorf("embedded hash %s does not match computed %s", block.Hash, first)
	}
}

// TestNewBlock_FeedbackExcludedFromHash verifies two blocks differing only
// in feedback would carry the same hash.
func TestNewBlock_FeedbackExcludedFromHash(t *testing.T) {
	block, err := NewBlock(0, GenesisPreviousHash, map[string]any{"type": "Genesis"}, map[string]any{"status": "pending"})
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}

	stripped := block
	stripped.Feedback = map[string]any{}
	hash, err := stripped.ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	if hash != block.Hash {
		t.Errorf("feedback leaked into the hash: %s vs %s", hash, block.Hash)
	}
}

// TestBlock_WithMergedFeedback verifies shallow merge semantics: delta keys
// overwrite, other keys are preserved, the hash is untouched, and the
// receiver is not mutated.
func TestBlock_WithMergedFeedback(t *testing.T) {
	block, err := NewBlock(0, GenesisPreviousHash,
		map[string]any{"type": "Genesis"},
		map[string]any{"status": "pending", "rating": 0},
	)
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}

	updated := block.WithMergedFeedback(map[string]any{
		"status":     "approved",
		"correction": "fixed text",
	})

	if updated.Hash != block.Hash {
		t.Errorf("merge changed the hash: %s vs %s", updated.Hash, block.Hash)
	}
	if updated.Feedback["status"] != "approved" {
		t.Errorf("delta key not overwritten: %v", updated.Feedback["status"])
	}
	if updated.Feedback["correction"] != "fixed text" {
		t.Errorf("delta key missing: %v", updated.Feedback["correction"])
	}
	if updated.Feedback["rating"] != 0 {
		t.Errorf("preserved key lost: %v", updated.Feedback["rating"])
	}
	if block.Feedback["status"] != "pending" {
		t.Errorf("receiver was mutated: %v", block.Feedback["status"])
	}
}

// TestBlock_WithMergedFeedback_NilDelta verifies a nil delta yields a copy
// with identical feedback.
func TestBlock_WithMergedFeedback_NilDelta(t *testing.T) {
	block, err := NewBlock(0, GenesisPreviousHash, nil, map[string]any{"status": "pending"})
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}

	copied := block.WithMergedFeedback(nil)
	if copied.Hash != block.Hash {
		t.Errorf("hash changed: %s vs %s", copied.Hash, block.Hash)
	}
	if copied.Feedback["status"] != "pending" {
		t.Errorf("feedback lost: %v", copied.Feedback)
	}
}

// TestBlock_AssertHashConsistent_DetectsTamper verifies that changing a core
// field after construction fails the consistency check with a hash-mismatch
// integrity error carrying the block index.
func TestBlock_AssertHashConsistent_DetectsTamper(t *testing.T) {
	block, err := NewBlock(3, strings.Repeat("ab", 32), map[string]any{"type": "IntakeDrafted"}, nil)
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}
	if err := block.AssertHashConsistent(); err != nil {
		t.Fatalf("fresh block inconsistent: %v", err)
	}

	tampered := RehydrateBlock(block.Index, block.Timestamp, block.PreviousHash,
		map[string]any{"type": "IntakeDrafted", "injected": true}, block.Hash, block.Feedback)

	err = tampered.AssertHashConsistent()
	if err == nil {
		t.Fatal("tampered block passed consistency check")
	}
	if !errors.Is(err, ErrChainIntegrity) {
		t.Errorf("error does not match ErrChainIntegrity: %v", err)
	}
	var integrity *ChainIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("error is not a *ChainIntegrityError: %v", err)
	}
	if integrity.Kind != IntegrityHashMismatch {
		t.Errorf("kind: got %s, want %s", integrity.Kind, IntegrityHashMismatch)
	}
	if integrity.Index != 3 {
		t.Errorf("index: got %d, want 3", integrity.Index)
	}
	if integrity.StoredHash != block.Hash {
		t.Errorf("stored hash: got %s, want %s", integrity.StoredHash, block.Hash)
	}
}

// TestRehydrateBlock_TrustsSuppliedHash verifies the loader path embeds the
// stored hash without verification.
func TestRehydrateBlock_TrustsSuppliedHash(t *testing.T) {
	b := RehydrateBlock(7, "2025-01-01T00:00:00Z", strings.Repeat("0", 64),
		map[string]any{"type": "Genesis"}, "not-a-real-hash", nil)

	if b.Hash != "not-a-real-hash" {
		t.Errorf("hash not trusted: %s", b.Hash)
	}
	if b.Feedback == nil {
		t.Error("nil feedback not normalized to empty map")
	}
	if err := b.AssertHashConsistent(); err == nil {
		t.Error("bogus hash passed the deferred consistency check")
	}
}

// TestBlock_Accessors verifies the trace_id and type conveniences tolerate
// absent and mistyped values.
func TestBlock_Accessors(t *testing.T) {
	b, err := NewBlock(0, GenesisPreviousHash, map[string]any{
		"type":     "IntakeDrafted",
		"trace_id": "t1",
	}, nil)
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}
	if b.TraceID() != "t1" {
		t.Errorf("TraceID: got %q", b.TraceID())
	}
	if b.Type() != "IntakeDrafted" {
		t.Errorf("Type: got %q", b.Type())
	}

	odd := RehydrateBlock(1, "", "", map[string]any{"trace_id": 42}, "", nil)
	if odd.TraceID() != "" {
		t.Errorf("non-string trace_id should yield empty, got %q", odd.TraceID())
	}
}
