package settings

import (
	"context"
	"path/filepath"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v,%v", ok, err)
	}
	for k, v := range map[string]string{
		"filter-preset.errors": "level>=error",
		"filter-preset.a_b":    "x",
		"filter-presetX":       "not a preset",
		"theme":                "dark",
	} {
		if err := s.Set(ctx, k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	if err := s.Set(ctx, "theme", "light"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, ok, _ := s.Get(ctx, "theme"); !ok || v != "light" {
		t.Fatalf("theme = %q,%v", v, ok)
	}

	keys, err := s.Keys(ctx, "filter-preset.")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "filter-preset.a_b" || keys[1] != "filter-preset.errors" {
		t.Fatalf("keys = %v", keys)
	}

	if err := s.Delete(ctx, "theme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "theme"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	exerciseStore(t, s)
	if err := s.Set(context.Background(), "persisted", "yes"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(context.Background(), "persisted"); !ok || v != "yes" {
		t.Fatalf("persisted = %q,%v", v, ok)
	}
}
