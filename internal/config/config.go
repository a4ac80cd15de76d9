package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendSQLite = "sqlite"
	BackendJSONL  = "jsonl"

	PolicyReport = "report"
	PolicyAbort  = "abort"

	OrderID        = "id"
	OrderCreatedAt = "created_at"
	OrderNewest    = "newest"
)

// StoreConfig holds record store settings.
type StoreConfig struct {
	Backend            string `mapstructure:"backend"`
	Path               string `mapstructure:"path"`
	ReadOnly           bool   `mapstructure:"read_only"`
	BusyTimeoutMS      int    `mapstructure:"busy_timeout_ms"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	ConnMaxLifetimeSec int    `mapstructure:"conn_max_lifetime_sec"`
}

// LogConfig holds logger settings. An empty File means stderr.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// TelemetryConfig holds local-only tracing and metrics output settings.
// Empty file paths disable the corresponding output.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TraceFile   string  `mapstructure:"trace_file"`
	Sampler     string  `mapstructure:"sampler"`
	SamplerArg  float64 `mapstructure:"sampler_arg"`
	MetricsFile string  `mapstructure:"metrics_file"`
}

// AppConfig is the centralized configuration struct for the application.
type AppConfig struct {
	Store         StoreConfig     `mapstructure:"store"`
	Log           LogConfig       `mapstructure:"log"`
	Telemetry     TelemetryConfig `mapstructure:"telemetry"`
	FailurePolicy string          `mapstructure:"failure_policy"`
	ListOrder     string          `mapstructure:"list_order"`
}

// Option customizes Load.
type Option func(*loader)

type loader struct {
	v          *viper.Viper
	configFile string
	flags      map[string]*pflag.Flag
}

// WithConfigFile reads the given file instead of searching for quarklog.yaml.
func WithConfigFile(path string) Option {
	return func(l *loader) { l.configFile = path }
}

// WithFlag binds a command-line flag to a configuration key. Flags that were not set
// on the command line do not override other sources.
func WithFlag(key string, f *pflag.Flag) Option {
	return func(l *loader) {
		if f != nil {
			l.flags[key] = f
		}
	}
}

// Load reads configuration from defaults, an optional quarklog.yaml, QUARKLOG_*
// environment variables and bound flags, in increasing order of precedence.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load(opts ...Option) (*AppConfig, error) {
	l := &loader{v: viper.New(), flags: map[string]*pflag.Flag{}}
	for _, opt := range opts {
		opt(l)
	}
	v := l.v

	setDefaults(v)

	v.SetEnvPrefix("QUARKLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("quarklog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "quarklog"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, f := range l.flags {
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultPath(cfg.Store.Backend)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", "")
	v.SetDefault("store.read_only", false)
	v.SetDefault("store.busy_timeout_ms", 5000)
	v.SetDefault("store.max_open_conns", 1)
	v.SetDefault("store.conn_max_lifetime_sec", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("telemetry.service_name", "quarklog")
	v.SetDefault("telemetry.trace_file", "")
	v.SetDefault("telemetry.sampler", "parentbased_always_on")
	v.SetDefault("telemetry.sampler_arg", 1.0)
	v.SetDefault("telemetry.metrics_file", "")

	v.SetDefault("failure_policy", PolicyReport)
	v.SetDefault("list_order", OrderID)
}

// DefaultPath returns the storage file used when none is configured.
func DefaultPath(backend string) string {
	if backend == BackendJSONL {
		return "app_data.jsonl"
	}
	return "app_data.db"
}

// Validate rejects unknown enum values.
func (c *AppConfig) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendJSONL:
	default:
		return fmt.Errorf("invalid store.backend %q: want %s or %s", c.Store.Backend, BackendSQLite, BackendJSONL)
	}
	switch c.FailurePolicy {
	case PolicyReport, PolicyAbort:
	default:
		return fmt.Errorf("invalid failure_policy %q: want %s or %s", c.FailurePolicy, PolicyReport, PolicyAbort)
	}
	switch c.ListOrder {
	case OrderID, OrderCreatedAt, OrderNewest:
	default:
		return fmt.Errorf("invalid list_order %q: want %s, %s or %s", c.ListOrder, OrderID, OrderCreatedAt, OrderNewest)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q: want json or console", c.Log.Format)
	}
	return nil
}
