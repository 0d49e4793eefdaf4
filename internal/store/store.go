// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package store provides durable, namespaced JSON document storage for
// the orchestrator's authoritative state: sessions and game state.
// Each document is written atomically (fsync + rename) so a crash
// mid-write never leaves a torn file on disk.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/maxepunk/aln-orchestrator/internal/logging"
)

// Store persists namespaced JSON documents under a data directory.
// A key like "session:abc123" maps to dataDir/session_abc123.json.
// Store does not interpret keys beyond using them as filenames; it is
// the caller's responsibility to pick a stable, collision-free
// namespacing scheme.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

// New creates a Store rooted at dataDir, creating the directory if it
// does not already exist.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create data dir %s: %w", dataDir, err)
	}
	return &Store{dataDir: dataDir}, nil
}

// keyToPath converts a namespaced key (e.g. "session:abc123") to a
// filesystem-safe path under the data directory.
func (s *Store) keyToPath(key string) string {
	safe := strings.ReplaceAll(key, ":", "_")
	safe = strings.ReplaceAll(safe, "/", "_")
	return filepath.Join(s.dataDir, safe+".json")
}

// Save serializes value as JSON and atomically writes it under key.
// The write is fsync'd before the rename that makes it visible, so a
// concurrent reader never observes a partially written document.
func (s *Store) Save(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}

	path := s.keyToPath(key)
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("store: create pending file for %s: %w", key, err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			logging.Debug().Err(cerr).Str("key", key).Msg("cleanup pending store file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("store: commit %s: %w", key, err)
	}
	return nil
}

// Load reads the document stored under key into dest (a pointer).
// Load returns (false, nil) if no document exists for key, and a
// non-nil error if the file exists but cannot be parsed as JSON -
// corruption is never silently treated as "missing".
func (s *Store) Load(key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.keyToPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("store: corrupt document for %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the document stored under key. It is not an error to
// delete a key that does not exist.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.keyToPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// List returns every key currently persisted whose original key
// (before ":"->"_" translation) begins with prefix, sorted
// lexicographically. Used to enumerate session history entries
// ("session:") without needing a separate index file.
func (s *Store) List(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", s.dataDir, err)
	}

	safePrefix := strings.ReplaceAll(prefix, ":", "_")
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if !strings.HasPrefix(name, safePrefix) {
			continue
		}
		// Reverse the filesystem-safe translation for the first
		// separator only, matching the "namespace:id" convention;
		// namespaces never themselves contain an underscore.
		key := name
		if idx := strings.Index(name, "_"); idx >= 0 {
			key = name[:idx] + ":" + name[idx+1:]
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
