// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTokensFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write tokens file: %v", err)
	}
	return path
}

func TestLoad_ObjectShape(t *testing.T) {
	path := writeTokensFile(t, `{
		"tok_alpha": {"memoryType": "Personal", "valueRating": 3},
		"tok_beta": {"id": "tok_beta", "memoryType": "Business", "valueRating": 1, "group": "Finance (x2)"}
	}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	tok, ok := c.Get("tok_alpha")
	if !ok {
		t.Fatal("expected tok_alpha to be found")
	}
	if tok.Value() != 1000 {
		t.Errorf("tok_alpha.Value() = %d, want 1000", tok.Value())
	}
}

func TestLoad_ArrayShape(t *testing.T) {
	path := writeTokensFile(t, `[
		{"id": "tok_gamma", "memoryType": "Technical", "valueRating": 5}
	]`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	tok, ok := c.Get("tok_gamma")
	if !ok {
		t.Fatal("expected tok_gamma to be found")
	}
	if tok.Value() != 50000 {
		t.Errorf("tok_gamma.Value() = %d, want 50000", tok.Value())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EmptyCatalog(t *testing.T) {
	path := writeTokensFile(t, `{}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeTokensFile(t, `not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestGet_NotFound(t *testing.T) {
	path := writeTokensFile(t, `{"tok_alpha": {"memoryType": "Personal", "valueRating": 1}}`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := c.Get("does-not-exist"); ok {
		t.Fatal("expected not found")
	}
}

func TestAll_SortedByID(t *testing.T) {
	path := writeTokensFile(t, `{
		"tok_c": {"memoryType": "Personal", "valueRating": 1},
		"tok_a": {"memoryType": "Personal", "valueRating": 1},
		"tok_b": {"memoryType": "Personal", "valueRating": 1}
	}`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	all := c.All()
	if len(all) != 3 {
		t.Fatalf("All() len = %d, want 3", len(all))
	}
	if all[0].ID != "tok_a" || all[1].ID != "tok_b" || all[2].ID != "tok_c" {
		t.Errorf("All() not sorted: %v", all)
	}
}
