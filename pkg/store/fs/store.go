// Package fs reads surface maps from a directory tree. The key is the path
// relative to the root, with forward slashes.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

const (
	defaultDirMode  os.FileMode = 0755
	defaultFileMode os.FileMode = 0644
)

// Config describes the directory tree.
type Config struct {
	// BasePath is the root directory.
	BasePath string `mapstructure:"path" validate:"required" yaml:"path"`

	// CreateDir creates BasePath on open when it is missing.
	CreateDir bool `mapstructure:"create_dir" yaml:"create_dir"`

	// DirMode and FileMode apply to what Write creates. Zero means 0755 and 0644.
	DirMode  os.FileMode `mapstructure:"dir_mode" yaml:"dir_mode"`
	FileMode os.FileMode `mapstructure:"file_mode" yaml:"file_mode"`
}

// DefaultConfig returns a config rooted at basePath that creates it on open.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   defaultDirMode,
		FileMode:  defaultFileMode,
	}
}

// Store implements store.ReadWriter on a directory tree.
type Store struct {
	root     string
	dirMode  os.FileMode
	fileMode os.FileMode

	mu     sync.RWMutex
	closed bool
}

// New opens the tree described by cfg.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("fs store: path is required")
	}

	s := &Store{
		root:     filepath.Clean(cfg.BasePath),
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}
	if s.dirMode == 0 {
		s.dirMode = defaultDirMode
	}
	if s.fileMode == 0 {
		s.fileMode = defaultFileMode
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(s.root, s.dirMode); err != nil {
			return nil, fmt.Errorf("fs store: create %s: %w", s.root, err)
		}
	}
	if err := s.statRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithPath opens basePath with DefaultConfig.
func NewWithPath(basePath string) (*Store, error) {
	return New(DefaultConfig(basePath))
}

// BasePath returns the root directory.
func (s *Store) BasePath() string { return s.root }

func (s *Store) statRoot() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("fs store: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("fs store: %s is not a directory", s.root)
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	if err := store.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Read returns the file for key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("fs store: read %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the file for key. Readers see the old or the new content,
// never a partial file.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return fmt.Errorf("fs store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*")
	if err != nil {
		return fmt.Errorf("fs store: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, s.fileMode)
	}
	if err == nil {
		err = os.Rename(tmpName, p)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("fs store: write %s: %w", key, err)
	}
	return nil
}

// HealthCheck stats the root directory.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return s.statRoot()
}

// Close marks the store closed. There is nothing to release.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ store.ReadWriter = (*Store)(nil)
