package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewWithPath(filepath.Join(t.TempDir(), "assets"))
	if err != nil {
		t.Fatalf("NewWithPath failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "textures/walnut/2k/normal_3.png"
	if err := s.Write(ctx, key, []byte("normal map")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := s.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "normal map" {
		t.Errorf("Read returned %q, want %q", data, "normal map")
	}

	// Only the object itself is left in its directory.
	entries, err := os.ReadDir(filepath.Join(s.BasePath(), "textures", "walnut", "2k"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "normal_3.png" {
		t.Errorf("directory holds %v, want only normal_3.png", entries)
	}
}

func TestStore_ReadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Read(context.Background(), "missing.png")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Read returned %v, want %v", err, store.ErrNotFound)
	}
}

func TestStore_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Read(context.Background(), "../../etc/passwd")
	if !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Read returned %v, want %v", err, store.ErrInvalidKey)
	}
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	_ = s.Close()

	if _, err := s.Read(ctx, "a.png"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Read after Close returned %v, want %v", err, store.ErrClosed)
	}
	if err := s.HealthCheck(ctx); !errors.Is(err, store.ErrClosed) {
		t.Errorf("HealthCheck after Close returned %v, want %v", err, store.ErrClosed)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New with empty base path succeeded")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{BasePath: file}); err == nil {
		t.Error("New with a file as base path succeeded")
	}
}
