package config

import (
	"strings"
	"time"

	"github.com/worshipwaves/WDweb-sub002/pkg/activity"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/decode"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
	"github.com/worshipwaves/WDweb-sub002/pkg/store"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/badger"
	"github.com/worshipwaves/WDweb-sub002/pkg/store/fs"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyCatalogDefaults(&cfg.Catalog)
	applyStoreDefaults(&cfg.Store)
	applyEngineDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	// Load requests may wait out a full job timeout.
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	def := catalog.DefaultTemplate()
	if cfg.Template.Primary == "" {
		cfg.Template.Primary = def.Primary
	}
	if cfg.Template.Secondary == "" {
		cfg.Template.Secondary = def.Secondary
	}
	if cfg.Template.Tertiary == "" {
		cfg.Template.Tertiary = def.Tertiary
	}
	if cfg.Template.Tier == "" {
		cfg.Template.Tier = def.Tier
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = store.TypeFS
	}
	if cfg.FS.BasePath != "" {
		if cfg.FS.DirMode == 0 {
			cfg.FS.DirMode = 0755
		}
		if cfg.FS.FileMode == 0 {
			cfg.FS.FileMode = 0644
		}
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 30 * time.Second
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
}

// applyEngineDefaults fills the cache, scheduler, idle host and monitor
// tunables from each package's own defaults.
func applyEngineDefaults(cfg *Config) {
	if cfg.Decode.MaxPixels == 0 {
		cfg.Decode.MaxPixels = decode.DefaultMaxPixels
	}

	pf := prefetch.DefaultConfig()
	if cfg.Prefetch.ForceAfter == 0 {
		cfg.Prefetch.ForceAfter = pf.ForceAfter
	}
	if cfg.Prefetch.JobTimeout == 0 {
		cfg.Prefetch.JobTimeout = pf.JobTimeout
	}
	if cfg.Prefetch.RetryBackoff == 0 {
		cfg.Prefetch.RetryBackoff = pf.RetryBackoff
	}

	ih := idle.DefaultTimerConfig()
	if cfg.Idle.PollInterval == 0 {
		cfg.Idle.PollInterval = ih.PollInterval
	}
	if cfg.Idle.IdleBudget == 0 {
		cfg.Idle.IdleBudget = ih.IdleBudget
	}

	if cfg.Activity.QuietWindow == 0 {
		cfg.Activity.QuietWindow = activity.DefaultQuietWindow
	}
	if len(cfg.Activity.Kinds) == 0 {
		cfg.Activity.Kinds = append([]activity.Kind(nil), activity.DefaultKinds...)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// Used to generate sample configuration files and in tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Catalog: CatalogConfig{
			Path: "catalog.yaml",
		},
		Store: StoreConfig{
			Type: store.TypeFS,
			FS:   fs.DefaultConfig("./assets"),
			Local: LocalTierConfig{
				Badger: badger.Config{Path: "./cache"},
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
