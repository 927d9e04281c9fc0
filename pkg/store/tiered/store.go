// Package tiered layers a local store in front of a remote one. Reads try
// the local tier first; a miss is read from the remote tier and written back
// locally on a best-effort basis.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

// Stats counts where reads were served from.
type Stats struct {
	LocalHits  int64 `json:"local_hits"`
	RemoteHits int64 `json:"remote_hits"`
	WriteBacks int64 `json:"write_backs"`
}

// Store is a read-through two-tier store.
type Store struct {
	local  store.ReadWriter
	remote store.Store

	localHits  atomic.Int64
	remoteHits atomic.Int64
	writeBacks atomic.Int64
}

// New creates a tiered store.
func New(local store.ReadWriter, remote store.Store) *Store {
	return &Store{local: local, remote: remote}
}

// Read serves key from the local tier, falling back to the remote tier.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.local.Read(ctx, key)
	if err == nil {
		s.localHits.Add(1)
		return data, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		logger.WarnCtx(ctx, "Local tier read failed, falling back to remote",
			logger.AssetKey(key), logger.Err(err))
	}

	data, err = s.remote.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	s.remoteHits.Add(1)

	if werr := s.local.Write(ctx, key, data); werr != nil {
		logger.WarnCtx(ctx, "Local tier write-back failed", logger.AssetKey(key), logger.Err(werr))
	} else {
		s.writeBacks.Add(1)
	}
	return data, nil
}

// Stats returns read counters.
func (s *Store) Stats() Stats {
	return Stats{
		LocalHits:  s.localHits.Load(),
		RemoteHits: s.remoteHits.Load(),
		WriteBacks: s.writeBacks.Load(),
	}
}

// HealthCheck requires both tiers to be healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.local.HealthCheck(ctx); err != nil {
		return fmt.Errorf("local tier: %w", err)
	}
	if err := s.remote.HealthCheck(ctx); err != nil {
		return fmt.Errorf("remote tier: %w", err)
	}
	return nil
}

// Close closes both tiers.
func (s *Store) Close() error {
	return errors.Join(s.local.Close(), s.remote.Close())
}

var _ store.Store = (*Store)(nil)
