package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/worshipwaves/WDweb-sub002/pkg/activity"
	"github.com/worshipwaves/WDweb-sub002/pkg/cache"
	"github.com/worshipwaves/WDweb-sub002/pkg/catalog"
	"github.com/worshipwaves/WDweb-sub002/pkg/decode"
	"github.com/worshipwaves/WDweb-sub002/pkg/idle"
	"github.com/worshipwaves/WDweb-sub002/pkg/prefetch"
)

// Config is the whole assetd configuration file. Environment variables
// named ASSETD_<SECTION>_<KEY> override the file; anything left unset takes
// the value from ApplyDefaults.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`

	// ShutdownTimeout bounds how long start waits for the API and the
	// engine to stop
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`

	Cache    cache.Config     `mapstructure:"cache" yaml:"cache"`
	Decode   decode.Config    `mapstructure:"decode" yaml:"decode"`
	Prefetch prefetch.Config  `mapstructure:"prefetch" yaml:"prefetch"`
	Idle     idle.TimerConfig `mapstructure:"idle" yaml:"idle"`
	Activity activity.Config  `mapstructure:"activity" yaml:"activity"`
}

// LoggingConfig is handed to logger.Init.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR in any case; ApplyDefaults upper-cases it
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" or "json"
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, discard or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig is handed to telemetry.Init. Tracing is off unless Enabled.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP/gRPC collector, host:port
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces kept
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig is handed to telemetry.InitProfiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes names the profiles to push, e.g. cpu, inuse_space, goroutines
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig turns on the Prometheus registry and GET /metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"gte=0" yaml:"idle_timeout"`
}

// CatalogConfig points at the catalog file and the key template.
type CatalogConfig struct {
	// Path is a YAML file with an "items" list of {id, tag}
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// Template expands an item into its primary, secondary and tertiary keys
	Template catalog.Template `mapstructure:"template" yaml:"template"`

	// Skip marks the first N items as already loaded when prefetching starts
	Skip int `mapstructure:"skip" validate:"gte=0" yaml:"skip"`
}

// Load reads configPath, or the default location when it is empty. A
// missing file yields GetDefaultConfig; a present file is decoded with
// ASSETD_* environment overrides, completed by ApplyDefaults and validated.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", v.ConfigFileUsed(), err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", v.ConfigFileUsed(), err)
	}
	return cfg, nil
}

// MustLoad is Load for commands that cannot run on defaults: the file has
// to exist. The error tells the user how to create one.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file %s does not exist\n\n"+
			"Create one with:\n"+
			"  assetd config init --config %s", configPath, configPath)
	}
	return Load(configPath)
}

// SaveConfig writes cfg as YAML to path, creating the directory. The file is
// private to the user since it may hold store credentials.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	// ASSETD_STORE_S3_BUCKET overrides store.s3.bucket
	v.SetEnvPrefix("ASSETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reports whether a config file was found and read.
func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
}

// configDecodeHooks lets config files use "30s" for durations, "64Mi" for
// byte sizes and "a,b" for string lists.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// configDir is $XDG_CONFIG_HOME/assetd, falling back to ~/.config/assetd.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "assetd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "assetd")
}

// GetDefaultConfigPath returns the config file used when --config is not given.
func GetDefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultConfigExists reports whether GetDefaultConfigPath exists.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
