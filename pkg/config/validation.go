package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/worshipwaves/WDweb-sub002/pkg/activity"
	"github.com/worshipwaves/WDweb-sub002/pkg/store"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags across the configuration, then the section of
// the selected store backend and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	v := structValidator()

	if err := v.Struct(cfg); err != nil {
		return err
	}

	if err := validateStore(v, &cfg.Store); err != nil {
		return err
	}

	if err := cfg.Catalog.Template.Validate(); err != nil {
		return fmt.Errorf("catalog.template: %w", err)
	}

	for _, k := range cfg.Activity.Kinds {
		if _, err := activity.ParseKind(string(k)); err != nil {
			return fmt.Errorf("activity.kinds: %w", err)
		}
	}

	if cfg.Prefetch.JobTimeout < cfg.Cache.FetchTimeout {
		return fmt.Errorf("prefetch.job_timeout (%s) must not be shorter than cache.fetch_timeout (%s)",
			cfg.Prefetch.JobTimeout, cfg.Cache.FetchTimeout)
	}

	return nil
}

func validateStore(v *validator.Validate, cfg *StoreConfig) error {
	var section any
	switch cfg.Type {
	case store.TypeFS:
		section = cfg.FS
	case store.TypeS3:
		section = cfg.S3
	case store.TypeHTTP:
		section = cfg.HTTP
	}
	if section != nil {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("store.%s: %w", cfg.Type, err)
		}
	}

	if cfg.Local.Enabled {
		if err := v.Struct(cfg.Local.Badger); err != nil {
			return fmt.Errorf("store.local.badger: %w", err)
		}
	}
	return nil
}
