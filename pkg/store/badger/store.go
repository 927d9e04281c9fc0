// Package badger provides an on-disk store backed by BadgerDB. It serves as
// the local tier of a tiered store, keeping fetched surface maps across
// restarts.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

// keyPrefix namespaces object keys inside the database.
const keyPrefix = "obj:"

// Config holds configuration for the Badger store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path" validate:"required_without=InMemory" yaml:"path"`

	// InMemory runs Badger without touching disk (tests).
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`

	// TTL expires objects after this long. Zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// Store is a BadgerDB implementation of store.ReadWriter.
type Store struct {
	db     *badgerdb.DB
	ttl    time.Duration
	closed bool
	mu     sync.RWMutex
}

// Open opens (or creates) the database described by config.
func Open(config Config) (*Store, error) {
	var opts badgerdb.Options
	if config.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if config.Path == "" {
			return nil, errors.New("badger path is required")
		}
		opts = badgerdb.DefaultOptions(config.Path)
	}
	opts = opts.WithSyncWrites(config.SyncWrites).WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db, ttl: config.TTL}, nil
}

func dbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// Read returns the object for key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger read %s: %w", key, err)
	}
	return data, nil
}

// Write stores data under key, applying the configured TTL.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry(dbKey(key), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger write %s: %w", key, err)
	}
	return nil
}

// Len returns the number of stored objects.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, store.ErrClosed
	}

	n := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// HealthCheck starts a read transaction to verify the database is usable.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("badger health check: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ store.ReadWriter = (*Store)(nil)
