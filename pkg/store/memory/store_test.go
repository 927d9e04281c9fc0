package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

func TestStore_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer func() { _ = s.Close() }()

	key := "textures/oak/2k/diffuse_1.png"
	data := []byte("png bytes")

	if err := s.Write(ctx, key, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Mutating the caller's buffer must not affect the stored copy.
	data[0] = 'X'

	read, err := s.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(read) != "png bytes" {
		t.Errorf("Read returned %q, want %q", read, "png bytes")
	}

	if keys := s.Keys(); len(keys) != 1 || keys[0] != key {
		t.Errorf("Keys returned %v", keys)
	}
}

func TestStore_ReadNotFound(t *testing.T) {
	s := New()
	defer func() { _ = s.Close() }()

	_, err := s.Read(context.Background(), "missing.png")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Read returned error %v, want %v", err, store.ErrNotFound)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	s := New()
	if err := s.Write(context.Background(), "../x", []byte("x")); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Write returned error %v, want %v", err, store.ErrInvalidKey)
	}
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	_ = s.Close()

	if _, err := s.Read(ctx, "a"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Read after Close returned %v, want %v", err, store.ErrClosed)
	}
	if err := s.Write(ctx, "a", nil); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Write after Close returned %v, want %v", err, store.ErrClosed)
	}
	if err := s.HealthCheck(ctx); !errors.Is(err, store.ErrClosed) {
		t.Errorf("HealthCheck after Close returned %v, want %v", err, store.ErrClosed)
	}
}
