// Package state persists the set of issue keys that have been fully
// processed (fetched, validated, and handed downstream), so interrupted
// runs can resume without refetching completed work.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// CorruptStateError indicates a state file that exists but cannot be
// parsed. The orchestrator decides whether to fail fast or discard it;
// the store never silently replaces corrupt state with an empty one.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("state file %s is corrupted: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// fileState is the on-disk representation.
type fileState struct {
	ProcessedIssues []string `json:"processed_issues"`
}

// Store is the in-memory processed-set backed by a JSON state file.
// Membership operations are O(1); Save is the only durability point.
// All methods are safe for concurrent use.
type Store struct {
	path   string
	logger zerolog.Logger

	mu        sync.Mutex
	done      map[string]struct{}
	sinceSave int
}

// NewStore creates a store for the given state file path. No I/O happens
// until Load or Save.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
		done:   make(map[string]struct{}),
	}
}

// Load reads the state file into memory. A missing file yields an empty
// state; an unreadable or unparsable file yields a *CorruptStateError.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("path", s.path).Msg("No prior state file, starting empty")
			return nil
		}
		return fmt.Errorf("read state file %s: %w", s.path, err)
	}

	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return &CorruptStateError{Path: s.path, Err: err}
	}

	s.done = make(map[string]struct{}, len(fs.ProcessedIssues))
	for _, key := range fs.ProcessedIssues {
		s.done[key] = struct{}{}
	}

	s.logger.Info().
		Str("path", s.path).
		Int("processed_issues", len(s.done)).
		Msg("Loaded scrape state")
	return nil
}

// Save atomically writes the full state to disk using the
// write-to-temp-then-rename discipline, so a crash mid-write leaves the
// previously committed file intact.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.done))
	for key := range s.done {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	data, err := json.Marshal(fileState{ProcessedIssues: keys})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("write temporary state file: %w", err)
	}

	// Flush to disk before the rename commits the new state.
	file, err := os.Open(tempFile)
	if err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("open temp file for sync: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("processed_issues", len(keys)).
		Msg("Saved scrape state")

	s.sinceSave = 0
	return nil
}

// Delete removes the state file. Used by fresh (non-resume) runs.
func (s *Store) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete state file: %w", err)
	}
	return nil
}

// IsDone reports whether the issue key has already been processed.
func (s *Store) IsDone(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[key]
	return ok
}

// MarkDone records the issue key as processed. Durability requires a
// subsequent Save.
func (s *Store) MarkDone(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.done[key]; ok {
		return
	}
	s.done[key] = struct{}{}
	s.sinceSave++
}

// Count returns the number of processed issue keys.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}

// MarkedSinceSave returns how many keys were marked since the last Save.
// The orchestrator uses it to persist at a bounded cadence.
func (s *Store) MarkedSinceSave() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinceSave
}
