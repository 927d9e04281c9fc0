package config

import (
	"context"
	"fmt"

	"github.com/worshipwaves/WDweb-sub002/internal/logger"
	"github.com/worshipwaves/WDweb-sub002/pkg/store"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/badger"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/fs"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/httpstore"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/memory"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/s3"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/tiered"
)

// StoreConfig selects the byte source assets are read from.
//
// Only the section matching Type is validated and used.
type StoreConfig struct {
	// Type selects the backend
	// Valid values: memory, fs, s3, http
	Type string `mapstructure:"type" validate:"required,oneof=memory fs s3 http" yaml:"type"`

	FS   fs.Config        `mapstructure:"fs" validate:"-" yaml:"fs"`
	S3   s3.Config        `mapstructure:"s3" validate:"-" yaml:"s3"`
	HTTP httpstore.Config `mapstructure:"http" validate:"-" yaml:"http"`

	// Local is an optional on-disk tier in front of the remote backend.
	// Reads go to it first and remote hits are written back.
	Local LocalTierConfig `mapstructure:"local" yaml:"local"`
}

// LocalTierConfig configures the badger read-through tier.
type LocalTierConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Badger  badger.Config `mapstructure:"badger" validate:"-" yaml:"badger"`
}

// CreateStore builds the configured store, wrapped in a tiered store when
// the local tier is enabled.
func CreateStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	remote, err := createRemoteStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.Local.Enabled {
		return remote, nil
	}

	local, err := badger.Open(cfg.Local.Badger)
	if err != nil {
		_ = remote.Close()
		return nil, fmt.Errorf("failed to open local tier: %w", err)
	}

	logger.Info("Local tier enabled", logger.StoreType(store.TypeBadger), "path", cfg.Local.Badger.Path)
	return tiered.New(local, remote), nil
}

func createRemoteStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case store.TypeMemory:
		return memory.New(), nil
	case store.TypeFS:
		s, err := fs.New(cfg.FS)
		if err != nil {
			return nil, fmt.Errorf("failed to create fs store: %w", err)
		}
		return s, nil
	case store.TypeS3:
		s, err := s3.NewFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 store: %w", err)
		}
		return s, nil
	case store.TypeHTTP:
		s, err := httpstore.New(cfg.HTTP)
		if err != nil {
			return nil, fmt.Errorf("failed to create http store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}
