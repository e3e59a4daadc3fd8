// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ledger implements a tamper-evident, append-only event log with
// post-hoc annotation support.
//
// # Description
//
// Every record is a Block split into two parts:
//
//   - IMMUTABLE CORE (covered by the hash): index, timestamp, previous_hash,
//     and the event payload in data. The data map conventionally carries a
//     "type" discriminator and a "trace_id" correlating related events.
//   - MUTABLE TAIL (not covered by the hash): feedback. Human reviews,
//     corrections, and approval statuses land here after the fact without
//     invalidating the historical hash chain.
//
// Blocks link through previous_hash, forming a chain whose integrity is
// checked by Store.ValidateChain. The Store owns the ordered sequence and
// its durable JSON-lines file; see store.go.
//
// # Hash Chain
//
// A block's hash is the SHA-256 digest of the canonical JSON encoding of
// its core fields. Mutating feedback never changes the hash; mutating any
// core field makes validation fail at that block.
package ledger

import (
	"fmt"
	"time"
)

// GenesisPreviousHash is the previous_hash sentinel carried by block 0.
// The chain is anchored to this known value rather than to a real digest.
const GenesisPreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Block is a single ledger record.
//
// # Description
//
// The core fields (Index, Timestamp, PreviousHash, Data) and Hash are fixed
// forever at creation time. Feedback may be replaced any number of times
// afterwards via WithMergedFeedback; the replacement block keeps the
// original hash because the core is unchanged.
//
// Blocks are value types. Methods never mutate the receiver, and callers
// must treat the Data and Feedback maps as read-only once a block has been
// handed to a Store.
//
// # Fields
//
//   - Index: Position in the chain. Non-negative, strictly increasing, no
//     gaps.
//   - Timestamp: Creation time, UTC RFC 3339 with nanoseconds. Set once.
//   - PreviousHash: Hex digest of the preceding block's core, or
//     GenesisPreviousHash for block 0.
//   - Data: The immutable event payload.
//   - Hash: SHA-256 hex digest over the canonical core encoding.
//   - Feedback: The mutable annotation tail, excluded from the hash.
type Block struct {
	Index        int            `json:"index"`
	Timestamp    string         `json:"timestamp"`
	PreviousHash string         `json:"previous_hash"`
	Data         map[string]any `json:"data"`
	Hash         string         `json:"hash"`
	Feedback     map[string]any `json:"feedback"`
}

// blockCore is the hashed subset of a block. It is the single source of
// truth for what the hash covers; field names match the wire format.
type blockCore struct {
	Index        int            `json:"index"`
	Timestamp    string         `json:"timestamp"`
	PreviousHash string         `json:"previous_hash"`
	Data         map[string]any `json:"data"`
}

// NewBlock constructs a block and embeds its hash.
//
// # Description
//
// The verified-construction path: the hash is computed here, at the moment
// the core fields are fixed. Use RehydrateBlock only when loading records
// whose hash was computed previously and will be re-verified explicitly.
//
// # Inputs
//
//   - index: Chain position (0 for genesis).
//   - previousHash: Predecessor's hash, or GenesisPreviousHash for block 0.
//   - data: Immutable event payload. Nil is normalized to an empty map.
//   - feedback: Initial annotation tail. Nil is normalized to an empty map.
//
// # Outputs
//
//   - Block: The new block with Timestamp set to now (UTC) and Hash embedded.
//   - error: Non-nil if the core fields cannot be canonically encoded.
func NewBlock(index int, previousHash string, data, feedback map[string]any) (Block, error) {
	if data == nil {
		data = map[string]any{}
	}
	if feedback == nil {
		feedback = map[string]any{}
	}
	b := Block{
		Index:        index,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		PreviousHash: previousHash,
		Data:         data,
		Feedback:     feedback,
	}
	hash, err := b.ComputeHash()
	if err != nil {
		return Block{}, fmt.Errorf("block %d: %w", index, err)
	}
	b.Hash = hash
	return b, nil
}

// RehydrateBlock rebuilds a block from its stored representation.
//
// # Description
//
// The trusted-load path: the supplied hash is embedded without
// verification, because recomputing every hash on startup would make loads
// O(N) hashing work. Store.ValidateChain performs the deferred check.
// Keeping this path separate from NewBlock lets tests exercise tamper
// detection by loading records whose core no longer matches their hash.
//
// # Inputs
//
//   - index, timestamp, previousHash, data: The stored core fields.
//   - hash: The stored hash, trusted pending explicit validation.
//   - feedback: The stored annotation tail. Nil is normalized to empty.
//
// # Outputs
//
//   - Block: The rehydrated block.
func RehydrateBlock(index int, timestamp, previousHash string, data map[string]any, hash string, feedback map[string]any) Block {
	if data == nil {
		data = map[string]any{}
	}
	if feedback == nil {
		feedback = map[string]any{}
	}
	return Block{
		Index:        index,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
		Data:         data,
		Hash:         hash,
		Feedback:     feedback,
	}
}

// ComputeHash returns the digest of the block's canonical core encoding.
//
// # Description
//
// Pure function of (index, timestamp, previous_hash, data); calling it any
// number of times yields identical output. The stored Hash field is not an
// input.
//
// # Outputs
//
//   - string: 64-character lowercase hex SHA-256 digest.
//   - error: Non-nil if the core cannot be canonically encoded.
func (b Block) ComputeHash() (string, error) {
	core := blockCore{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		PreviousHash: b.PreviousHash,
		Data:         b.Data,
	}
	canon, err := MarshalCanonical(core)
	if err != nil {
		return "", fmt.Errorf("compute hash: %w", err)
	}
	return DigestHex(canon), nil
}

// AssertHashConsistent recomputes the hash and compares it to the stored
// value.
//
// # Description
//
// The tamper-detection primitive. A mismatch means a core field changed
// after the hash was embedded.
//
// # Outputs
//
//   - error: Nil if consistent; a *ChainIntegrityError of kind
//     IntegrityHashMismatch carrying the block index and both hashes
//     otherwise.
func (b Block) AssertHashConsistent() error {
	computed, err := b.ComputeHash()
	if err != nil {
		return err
	}
	if computed != b.Hash {
		return &ChainIntegrityError{
			Index:        b.Index,
			Kind:         IntegrityHashMismatch,
			StoredHash:   b.Hash,
			ComputedHash: computed,
		}
	}
	return nil
}

// WithMergedFeedback returns a copy of the block with delta merged into its
// feedback tail.
//
// # Description
//
// The core fields and Hash are carried over unchanged, so the returned
// block still validates against the original chain. The merge is shallow:
// keys in delta overwrite same-named keys, other keys are preserved, and
// nested structures are replaced wholesale rather than merged. The receiver
// is not mutated; the returned block owns a fresh feedback map.
//
// # Inputs
//
//   - delta: Feedback keys to merge in. Nil deltas are allowed and produce
//     a copy with identical feedback.
//
// # Outputs
//
//   - Block: The updated block, same hash as the receiver.
func (b Block) WithMergedFeedback(delta map[string]any) Block {
	merged := make(map[string]any, len(b.Feedback)+len(delta))
	for k, v := range b.Feedback {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}
	out := b
	out.Feedback = merged
	return out
}

// TraceID returns the block's data trace_id, or "" when absent or not a
// string.
func (b Block) TraceID() string {
	id, _ := b.Data["trace_id"].(string)
	return id
}

// Type returns the block's data type discriminator, or "" when absent.
func (b Block) Type() string {
	t, _ := b.Data["type"].(string)
	return t
}
