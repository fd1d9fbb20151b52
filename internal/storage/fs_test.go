package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestSaveAndLoad(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	content := []byte(`[{"id":"a"}]`)
	if err := s.Save(ctx, "app_medications", content); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "app_medications")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "app_medications.json")); err != nil {
		t.Errorf("expected key file on disk: %v", err)
	}
}

func TestLoadMissingKey(t *testing.T) {
	s := tempStore(t)
	_, err := s.Load(context.Background(), "nothing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	cases := []string{
		"",
		"../../etc/passwd",
		"a/b",
		`a\b`,
		".hidden",
	}
	for _, k := range cases {
		if _, err := s.Load(ctx, k); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("expected validation error for load of %q, got %v", k, err)
		}
		if err := s.Save(ctx, k, []byte("x")); err == nil {
			t.Errorf("expected error for save to %q", k)
		}
	}
}

func TestAtomicSaveNoLeftovers(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "k", []byte("original"))

	if err := s.Save(ctx, "k", []byte("updated")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx, "k")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".dosewise-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestChangedExternally(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "k", []byte("ours"))

	if s.changedExternally("k") {
		t.Error("own write should not count as external change")
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "k.json"), []byte("theirs"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.changedExternally("k") {
		t.Error("foreign write should count as external change")
	}
}

func TestKeyFromPath(t *testing.T) {
	s := tempStore(t)
	if k, ok := s.keyFromPath(filepath.Join(s.Dir(), "app_profile.json")); !ok || k != "app_profile" {
		t.Errorf("keyFromPath = %q, %v", k, ok)
	}
	if _, ok := s.keyFromPath(filepath.Join(s.Dir(), ".dosewise-tmp-123")); ok {
		t.Error("temp files must be ignored")
	}
	if _, ok := s.keyFromPath(filepath.Join(s.Dir(), "sub", "x.json")); ok {
		t.Error("nested files must be ignored")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/dosewise-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "dosewise-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestOpen_FileCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := Open(context.Background(), Options{Backend: BackendFile, Path: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "floppy"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
