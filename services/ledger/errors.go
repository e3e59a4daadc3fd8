// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for ledger operations.
var (
	// ErrEmptyChain is returned when a non-genesis block is appended to an
	// empty chain. The chain must be bootstrapped with a genesis block first.
	ErrEmptyChain = errors.New("cannot append a non-genesis block to an empty chain")

	// ErrIndexOutOfRange is returned when a feedback update targets a block
	// index that does not exist. This is recoverable; the caller chose a bad
	// index and may retry with a valid one.
	ErrIndexOutOfRange = errors.New("block index out of range")

	// ErrChainIntegrity is the common ancestor of every integrity violation
	// raised by ValidateChain. Match with errors.Is to detect corruption or
	// tampering regardless of the specific kind.
	ErrChainIntegrity = errors.New("chain integrity violation")
)

// IntegrityKind identifies which chain invariant a ChainIntegrityError broke.
type IntegrityKind string

const (
	// IntegrityHashMismatch means a block's stored hash does not match a
	// fresh computation over its core fields. The block was tampered with
	// after creation.
	IntegrityHashMismatch IntegrityKind = "hash_mismatch"

	// IntegrityBrokenLink means a block's previous_hash does not equal the
	// hash of the block before it.
	IntegrityBrokenLink IntegrityKind = "broken_link"

	// IntegrityMalformedGenesis means block 0 does not carry index 0 and the
	// all-zero previous-hash sentinel.
	IntegrityMalformedGenesis IntegrityKind = "malformed_genesis"
)

// ChainIntegrityError reports the first invariant violation found during
// validation.
//
// # Description
//
// Carries enough context for an operator to locate the offending block:
// the index, the broken invariant, and (for hash mismatches) both the
// stored and the recomputed hash. Validation stops at the first violation;
// no repair is attempted.
//
// # Fields
//
//   - Index: Chain position of the offending block.
//   - Kind: Which invariant was broken.
//   - StoredHash: The hash recorded on the block (hash mismatch and broken
//     link kinds).
//   - ComputedHash: The freshly computed hash (hash mismatch), or the
//     predecessor's hash (broken link).
type ChainIntegrityError struct {
	Index        int
	Kind         IntegrityKind
	StoredHash   string
	ComputedHash string
}

// Error implements the error interface.
func (e *ChainIntegrityError) Error() string {
	switch e.Kind {
	case IntegrityHashMismatch:
		return fmt.Sprintf("block %d: stored hash %q does not match computed hash %q",
			e.Index, e.StoredHash, e.ComputedHash)
	case IntegrityBrokenLink:
		return fmt.Sprintf("block %d: previous_hash %q does not match prior block's hash %q",
			e.Index, e.StoredHash, e.ComputedHash)
	case IntegrityMalformedGenesis:
		return fmt.Sprintf("block %d: malformed genesis block", e.Index)
	default:
		return fmt.Sprintf("block %d: integrity violation (%s)", e.Index, e.Kind)
	}
}

// Unwrap makes every ChainIntegrityError match ErrChainIntegrity via
// errors.Is.
func (e *ChainIntegrityError) Unwrap() error {
	return ErrChainIntegrity
}

// DecodeError reports a malformed line encountered while loading the
// durable file.
//
// # Description
//
// The storage format is one JSON record per line. A line that fails to
// decode is never silently dropped; the load fails and this error names
// the 1-based line number so the operator can inspect the file directly.
type DecodeError struct {
	// Line is the 1-based line number in the durable file.
	Line int

	// Err is the underlying decode failure.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: malformed block record: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
