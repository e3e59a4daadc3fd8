// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ledgerFileMode restricts the durable file to owner read/write (0600).
// The ledger records event payloads and reviewer annotations; other system
// users have no business reading them.
const ledgerFileMode = 0600

// defaultGenesisData is the payload used when a bootstrap caller supplies
// none. It anchors the chain with an explicit statement of purpose.
var defaultGenesisData = map[string]any{
	"type":    "Genesis",
	"message": "Mirror Ledger initialized.",
}

// Config configures a Store.
//
// # Fields
//
//   - Path: Durable file location. The parent directory is created if
//     missing.
//   - Bootstrap: When true and the file is absent or empty, a genesis block
//     is synthesized and persisted.
//   - GenesisData: Payload for the synthesized genesis block. Nil selects
//     defaultGenesisData.
type Config struct {
	Path        string
	Bootstrap   bool
	GenesisData map[string]any
}

// Store owns the ordered block sequence and its durable representation.
//
// # Description
//
// The in-memory slice is the source of truth for reads; the JSON-lines file
// at Path is the source of truth for durability across restarts. Every
// chain-wide invariant is enforced here: callers cannot construct chain
// state except through AddBlock and AppendFeedback.
//
// # Persistence
//
// Two write paths with different shapes:
//
//   - AddBlock appends one serialized line in append-only mode. O(1), never
//     touches previously written bytes. This is the hot path.
//   - AppendFeedback changes an existing record, and the format is one
//     record per line, so the whole chain is re-serialized to a temporary
//     file which atomically replaces the original. A crash mid-write leaves
//     the original intact. O(N) per annotation; accepted for the simplicity
//     of the atomicity story.
//
// # Thread Safety
//
// One Store instance is the single logical writer for its file; two
// processes must not open the same file (no file locking). Within a
// process all operations serialize on one mutex, held across the in-memory
// mutation and its durable write. Reads hand out snapshot copies and never
// observe a half-mutated sequence.
type Store struct {
	mu    sync.Mutex
	path  string
	chain []Block
}

// Open loads or initializes a ledger store.
//
// # Description
//
// If the durable file exists and is non-empty, every line is deserialized
// into a block, trusting stored hashes (verification is deferred to
// ValidateChain so startup stays cheap). If the file is absent or empty and
// cfg.Bootstrap is set, a genesis block is synthesized and persisted.
//
// # Inputs
//
//   - cfg: See Config.
//
// # Outputs
//
//   - *Store: Ready for use.
//   - error: Non-nil if the file cannot be read or created, or if any line
//     is malformed. Malformed lines never abort the scan early: the whole
//     file is examined and every bad line is reported in the returned
//     error, but a load with bad lines always fails rather than silently
//     dropping records.
//
// # Examples
//
//	store, err := ledger.Open(ledger.Config{
//	    Path:      "/var/lib/mirrorledger/blocks.jsonl",
//	    Bootstrap: true,
//	})
//	if err != nil {
//	    return fmt.Errorf("open ledger: %w", err)
//	}
//
// # Limitations
//
//   - No file locking; concurrent processes on one file corrupt it.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("ledger: config.Path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	s := &Store{path: cfg.Path}
	if err := s.loadFromFile(); err != nil {
		return nil, err
	}

	if cfg.Bootstrap && len(s.chain) == 0 {
		data := cfg.GenesisData
		if data == nil {
			data = defaultGenesisData
		}
		genesis, err := NewBlock(0, GenesisPreviousHash, data, nil)
		if err != nil {
			return nil, fmt.Errorf("bootstrap genesis: %w", err)
		}
		if err := s.appendLocked(genesis); err != nil {
			return nil, fmt.Errorf("bootstrap genesis: %w", err)
		}
		slog.Info("ledger.genesis.created", "path", cfg.Path, "hash", genesis.Hash)
	}

	slog.Info("ledger.store.opened", "path", cfg.Path, "blocks", len(s.chain))
	return s, nil
}

// Path returns the durable file location.
func (s *Store) Path() string {
	return s.path
}

// AddBlock appends a new immutable event to the chain.
//
// # Description
//
// Constructs a block with index lastIndex+1 and previous_hash equal to the
// latest block's hash, appends it to the in-memory sequence, and writes one
// line to the durable file in append-only mode.
//
// # Inputs
//
//   - data: The immutable event payload.
//   - feedback: Optional initial annotation tail; nil means empty.
//
// # Outputs
//
//   - Block: The newly created block.
//   - error: ErrEmptyChain when the chain has no genesis block, or an I/O
//     or encoding failure. On error nothing is appended.
func (s *Store) AddBlock(data, feedback map[string]any) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chain) == 0 {
		return Block{}, ErrEmptyChain
	}
	latest := s.chain[len(s.chain)-1]
	block, err := NewBlock(latest.Index+1, latest.Hash, data, feedback)
	if err != nil {
		return Block{}, err
	}
	if err := s.appendLocked(block); err != nil {
		return Block{}, err
	}

	slog.Debug("ledger.block.appended",
		"index", block.Index,
		"type", block.Type(),
		"trace_id", block.TraceID(),
	)
	return block, nil
}

// AppendFeedback merges delta into the feedback tail of the block at index.
//
// # Description
//
// The block's core fields and hash are untouched; only the mutable tail
// changes. The in-memory slot is replaced with the merged block and the
// whole chain is rewritten to disk through a temporary file followed by an
// atomic rename. If the rewrite fails, the in-memory slot is restored so
// memory never diverges from the durable file.
//
// # Inputs
//
//   - index: Position of the block to annotate.
//   - delta: Feedback keys to merge; keys in delta overwrite same-named
//     existing keys, other keys are preserved.
//
// # Outputs
//
//   - Block: The updated block, hash unchanged.
//   - error: ErrIndexOutOfRange for an absent index, or an I/O failure.
//
// # Limitations
//
//   - O(N) in chain length per call due to the full rewrite.
func (s *Store) AppendFeedback(index int, delta map[string]any) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.chain) {
		return Block{}, fmt.Errorf("%w: index %d, chain length %d",
			ErrIndexOutOfRange, index, len(s.chain))
	}

	original := s.chain[index]
	updated := original.WithMergedFeedback(delta)
	s.chain[index] = updated
	if err := s.rewriteLocked(); err != nil {
		s.chain[index] = original
		return Block{}, err
	}

	slog.Debug("ledger.feedback.appended", "index", index, "keys", len(delta))
	return updated, nil
}

// Get returns the block at index.
//
// # Outputs
//
//   - Block: The block at that position.
//   - error: ErrIndexOutOfRange for an absent index.
func (s *Store) Get(index int) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.chain) {
		return Block{}, fmt.Errorf("%w: index %d, chain length %d",
			ErrIndexOutOfRange, index, len(s.chain))
	}
	return s.chain[index], nil
}

// Latest returns the most recent block, or false when the chain is empty.
func (s *Store) Latest() (Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chain) == 0 {
		return Block{}, false
	}
	return s.chain[len(s.chain)-1], true
}

// Len returns the number of blocks in the chain.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chain)
}

// Blocks returns a snapshot copy of the chain in index order.
//
// The slice is the caller's to keep; later mutations of the store are not
// reflected in it. Block values share their Data and Feedback maps with the
// store, so callers must treat those maps as read-only.
func (s *Store) Blocks() []Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Block, len(s.chain))
	copy(out, s.chain)
	return out
}

// Iterate returns a lazy, restartable sequence over the chain.
//
// # Description
//
// The sequence is bound to a snapshot taken when Iterate is called:
// ranging over it multiple times replays the same blocks, and mutations
// made after the call are not observed.
//
// # Examples
//
//	for b := range store.Iterate() {
//	    if b.Type() == "IntakeDrafted" { ... }
//	}
func (s *Store) Iterate() iter.Seq[Block] {
	snapshot := s.Blocks()
	return func(yield func(Block) bool) {
		for _, b := range snapshot {
			if !yield(b) {
				return
			}
		}
	}
}

// FindByTraceID returns every block whose data trace_id equals traceID, in
// chain order.
//
// Linear scan, O(N) per call. At this scale a secondary index is not worth
// its consistency burden; callers needing repeated lookups should hold the
// result.
func (s *Store) FindByTraceID(traceID string) []Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Block
	for _, b := range s.chain {
		if b.TraceID() == traceID {
			out = append(out, b)
		}
	}
	return out
}

// ValidateChain checks every chain-wide invariant.
//
// # Description
//
// For every block in order the stored hash is recomputed and compared
// (AssertHashConsistent). Block 0 must carry index 0 and the all-zero
// previous-hash sentinel; each later block must carry index i and a
// previous_hash equal to its predecessor's hash. Validation stops at the
// first violation; no repair is attempted. An empty chain is valid.
//
// # Outputs
//
//   - error: Nil on success; a *ChainIntegrityError naming the offending
//     index and the broken invariant otherwise. Match the family with
//     errors.Is(err, ErrChainIntegrity).
func (s *Store) ValidateChain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.chain {
		if err := b.AssertHashConsistent(); err != nil {
			return err
		}
		if i == 0 {
			if b.Index != 0 || b.PreviousHash != GenesisPreviousHash {
				return &ChainIntegrityError{Index: b.Index, Kind: IntegrityMalformedGenesis}
			}
			continue
		}
		prev := s.chain[i-1]
		if b.Index != prev.Index+1 || b.PreviousHash != prev.Hash {
			return &ChainIntegrityError{
				Index:        b.Index,
				Kind:         IntegrityBrokenLink,
				StoredHash:   b.PreviousHash,
				ComputedHash: prev.Hash,
			}
		}
	}
	return nil
}

// =============================================================================
// Persistence
// =============================================================================

// loadFromFile replaces the in-memory chain with the durable file contents.
// Stored hashes are trusted here; ValidateChain verifies them on demand.
func (s *Store) loadFromFile() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer file.Close()

	var (
		chain     []Block
		decodeErr []error
		lineNo    int
	)
	scanner := bufio.NewScanner(file)
	// Event payloads can exceed the default 64KiB token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var b Block
		if err := json.Unmarshal(line, &b); err != nil {
			decodeErr = append(decodeErr, &DecodeError{Line: lineNo, Err: err})
			continue
		}
		chain = append(chain, RehydrateBlock(b.Index, b.Timestamp, b.PreviousHash, b.Data, b.Hash, b.Feedback))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ledger file: %w", err)
	}
	if len(decodeErr) > 0 {
		return fmt.Errorf("load %s: %w", s.path, errors.Join(decodeErr...))
	}

	s.chain = chain
	return nil
}

// appendLocked writes one block line in append-only mode and commits it to
// the in-memory chain. Caller holds s.mu (or has exclusive access during
// Open).
func (s *Store) appendLocked(b Block) error {
	line, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal block %d: %w", b.Index, err)
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, ledgerFileMode)
	if err != nil {
		return fmt.Errorf("open ledger file for append: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append block %d: %w", b.Index, err)
	}

	s.chain = append(s.chain, b)
	return nil
}

// rewriteLocked re-serializes the whole chain into a temporary sibling file
// and atomically renames it over the original. A crash mid-write leaves the
// original file intact; readers never see a partial file. Caller holds s.mu.
func (s *Store) rewriteLocked() error {
	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, ledgerFileMode)
	if err != nil {
		return fmt.Errorf("create temporary ledger file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, b := range s.chain {
		line, err := json.Marshal(b)
		if err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("marshal block %d: %w", b.Index, err)
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write block %d: %w", b.Index, err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush temporary ledger file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temporary ledger file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temporary ledger file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
