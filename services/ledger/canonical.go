// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// MarshalCanonical serializes a structured value into its canonical byte
// form for hashing.
//
// # Description
//
// Two semantically equal values (same keys and values, any insertion order)
// must always encode to identical bytes; any nondeterminism here silently
// breaks hash verifiability for the whole chain. The value is first
// marshalled with encoding/json, then normalized with the RFC 8785 JSON
// Canonicalization Scheme: object keys sorted at every nesting level, fixed
// number formatting, no incidental whitespace.
//
// # Inputs
//
//   - v: Any JSON-serializable value (nested maps, slices, scalars).
//
// # Outputs
//
//   - []byte: The canonical encoding.
//   - error: Non-nil if v cannot be marshalled or canonicalized.
//
// # Limitations
//
//   - Values that encoding/json rejects (channels, funcs, NaN) fail here.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return canon, nil
}

// DigestHex computes the SHA-256 digest of b as a lowercase hex string.
//
// Pure function; the output is always 64 hex characters.
func DigestHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
