package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wilyrpc/wily/internal/path"
)

func TestLoadBaseDTabEmptyPathYieldsEmptyDtab(t *testing.T) {
	d, err := LoadBaseDTab("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.IsEmpty() {
		t.Fatal("expected an empty Dtab for an empty file path")
	}
}

func TestLoadBaseDTabParsesRules(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "base.yaml")
	contents := "rules:\n  - prefix: /s/foo\n    dest: /s#/prod/foo\n"
	if err := os.WriteFile(file, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d, err := LoadBaseDTab(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolved := d.Resolve(path.Parse("/s/foo"))
	set, ok := resolved.Eval()
	if !ok || len(set) != 1 || set[0].Show() != "/s#/prod/foo" {
		t.Fatalf("Resolve = %v, %v, want /s#/prod/foo", set, ok)
	}
}

func TestLoadBaseDTabMissingFileErrors(t *testing.T) {
	if _, err := LoadBaseDTab(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
