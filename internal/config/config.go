// Package config loads the settings shared by the phoned server and the
// phonedata CLI.
//
// Values are layered: built-in defaults, then an optional JSON file, then
// environment variables named PHONE_DATA_<SECTION>__<KEY>, for example
// PHONE_DATA_SERVER__PORT=9090 or PHONE_DATA_CACHE__ENABLED=false.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/phonedata/phonedata"
)

const (
	// DefaultFile is read when Load is given no path and the file exists.
	DefaultFile = "config.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PHONE_DATA_"

	envSeparator = "__"
)

// Config is the complete process configuration.
type Config struct {
	App      AppConfig      `json:"app"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Logging  LoggingConfig  `json:"logging"`
	Batch    BatchConfig    `json:"batch"`
}

type AppConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ReadTimeout     Duration `json:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path                   string  `json:"path"`
	Strategy               string  `json:"strategy"`
	BloomFalsePositiveRate float64 `json:"bloom_false_positive_rate"`
	BloomHash              string  `json:"bloom_hash"`
	BuildWorkers           int     `json:"build_workers"`
}

type CacheConfig struct {
	Enabled bool `json:"enabled"`
	MaxSize int  `json:"max_size"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type BatchConfig struct {
	MaxNumbers int `json:"max_numbers"`
	Workers    int `json:"workers"`
}

// Duration is a time.Duration that reads and writes as a string ("5s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:    "phone_data",
			Version: "dev",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration(5 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path:                   "phone.dat",
			Strategy:               phonedata.StrategySortedIndex.String(),
			BloomFalsePositiveRate: phonedata.DefaultBloomFalsePositiveRate,
			BloomHash:              phonedata.BloomHashXXH3.String(),
			BuildWorkers:           4,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Batch: BatchConfig{
			MaxNumbers: 100,
			Workers:    4,
		},
	}
}

// Load builds the configuration from defaults, the JSON file at path and the
// process environment, then validates it. An empty path reads DefaultFile
// when present; a non-empty path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

// envBinding ties one environment key to a config field.
type envBinding struct {
	key    string
	target any
}

func (c *Config) envBindings() []envBinding {
	return []envBinding{
		{"APP__NAME", &c.App.Name},
		{"APP__VERSION", &c.App.Version},
		{"SERVER__HOST", &c.Server.Host},
		{"SERVER__PORT", &c.Server.Port},
		{"SERVER__READ_TIMEOUT", &c.Server.ReadTimeout},
		{"SERVER__WRITE_TIMEOUT", &c.Server.WriteTimeout},
		{"SERVER__SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout},
		{"DATABASE__PATH", &c.Database.Path},
		{"DATABASE__STRATEGY", &c.Database.Strategy},
		{"DATABASE__BLOOM_FALSE_POSITIVE_RATE", &c.Database.BloomFalsePositiveRate},
		{"DATABASE__BLOOM_HASH", &c.Database.BloomHash},
		{"DATABASE__BUILD_WORKERS", &c.Database.BuildWorkers},
		{"CACHE__ENABLED", &c.Cache.Enabled},
		{"CACHE__MAX_SIZE", &c.Cache.MaxSize},
		{"LOGGING__LEVEL", &c.Logging.Level},
		{"BATCH__MAX_NUMBERS", &c.Batch.MaxNumbers},
		{"BATCH__WORKERS", &c.Batch.Workers},
	}
}

// applyEnv overrides fields from lookup, which has the signature of
// os.LookupEnv.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range c.envBindings() {
		name := EnvPrefix + b.key
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)

		var err error
		switch p := b.target.(type) {
		case *string:
			*p = raw
		case *int:
			*p, err = strconv.Atoi(raw)
		case *bool:
			*p, err = strconv.ParseBool(raw)
		case *float64:
			*p, err = strconv.ParseFloat(raw, 64)
		case *Duration:
			var d time.Duration
			d, err = time.ParseDuration(raw)
			*p = Duration(d)
		default:
			err = fmt.Errorf("unsupported field type %T", b.target)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, raw, err))
		}
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range [1, 65535]", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if _, err := phonedata.ParseStrategy(c.Database.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("database.strategy: %w", err))
	}
	if _, err := phonedata.ParseBloomHash(c.Database.BloomHash); err != nil {
		errs = append(errs, fmt.Errorf("database.bloom_hash: %w", err))
	}
	if r := c.Database.BloomFalsePositiveRate; !(r > 0 && r < 1) {
		errs = append(errs, fmt.Errorf("database.bloom_false_positive_rate %v not in (0, 1)", r))
	}
	if c.Cache.Enabled && c.Cache.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("cache.max_size %d must be positive when the cache is enabled", c.Cache.MaxSize))
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR", "OFF":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error, off", c.Logging.Level))
	}
	if c.Batch.MaxNumbers < 1 {
		errs = append(errs, fmt.Errorf("batch.max_numbers %d must be positive", c.Batch.MaxNumbers))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// DatabaseOptions converts the database, cache and batch sections into
// phonedata.Open options.
func (c *Config) DatabaseOptions() ([]phonedata.Option, error) {
	strategy, err := phonedata.ParseStrategy(c.Database.Strategy)
	if err != nil {
		return nil, err
	}
	hash, err := phonedata.ParseBloomHash(c.Database.BloomHash)
	if err != nil {
		return nil, err
	}

	opts := []phonedata.Option{
		phonedata.WithStrategy(strategy),
		phonedata.WithBloomFilter(0, c.Database.BloomFalsePositiveRate),
		phonedata.WithBloomHash(hash),
		phonedata.WithBuildWorkers(c.Database.BuildWorkers),
		phonedata.WithBatchWorkers(c.Batch.Workers),
	}
	if c.Cache.Enabled {
		opts = append(opts, phonedata.WithCache(c.Cache.MaxSize))
	}
	return opts, nil
}
