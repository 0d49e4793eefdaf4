// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package catalog loads the token catalog once at startup and exposes
// immutable, read-only lookups for the rest of the orchestrator.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/maxepunk/aln-orchestrator/internal/models"
)

// Catalog is an immutable, in-memory map of token ID to Token, loaded
// once at startup. There is no reload path: a changed tokens file
// requires a process restart, matching the catalog's "loads once"
// contract.
type Catalog struct {
	tokens map[string]models.Token
}

// Load reads and parses the token catalog JSON file at path. The file
// must contain a JSON object mapping token ID to token fields, or a
// JSON array of tokens each carrying its own "id" field; both shapes
// are accepted since catalog exports seen in the wild use either.
//
// Load is meant to be called once, early in startup. Its errors are
// intended to be fatal: the orchestrator has no default tokens and
// cannot run a meaningful session without a catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	tokens, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("catalog: %s contains no tokens", path)
	}

	return &Catalog{tokens: tokens}, nil
}

func parse(data []byte) (map[string]models.Token, error) {
	// Try object-of-tokens shape first: {"id1": {...}, "id2": {...}}
	var asMap map[string]models.Token
	if err := json.Unmarshal(data, &asMap); err == nil && len(asMap) > 0 {
		for id, tok := range asMap {
			if tok.ID == "" {
				tok.ID = id
				asMap[id] = tok
			}
		}
		return asMap, nil
	}

	// Fall back to array-of-tokens shape: [{"id": "...", ...}, ...]
	var asSlice []models.Token
	if err := json.Unmarshal(data, &asSlice); err != nil {
		return nil, fmt.Errorf("unrecognized token catalog shape: %w", err)
	}
	out := make(map[string]models.Token, len(asSlice))
	for _, tok := range asSlice {
		if tok.ID == "" {
			return nil, fmt.Errorf("token entry missing id")
		}
		out[tok.ID] = tok
	}
	return out, nil
}

// Get returns the token with the given ID and whether it was found.
func (c *Catalog) Get(id string) (models.Token, bool) {
	tok, ok := c.tokens[id]
	return tok, ok
}

// All returns every token in the catalog, sorted by ID for stable
// iteration order (GET /api/tokens responses, test fixtures).
func (c *Catalog) All() []models.Token {
	out := make([]models.Token, 0, len(c.tokens))
	for _, tok := range c.tokens {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tokens in the catalog.
func (c *Catalog) Len() int {
	return len(c.tokens)
}
