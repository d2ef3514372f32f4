package canary

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/qiubz/rethinkdb/buffercache"
)

// Config holds the canary settings layered on top of the cache configuration.
type Config struct {
	Cache buffercache.Config `yaml:"cache"`

	// LoadInterval paces each per-shard load generator.
	LoadInterval time.Duration `yaml:"loadInterval" envconfig:"CANARY_LOAD_INTERVAL"`
	// OpsPerTick is the base batch size a generator submits per interval.
	// Generators on higher-numbered shards run multiples of it so the
	// shards stay unevenly loaded.
	OpsPerTick int `yaml:"opsPerTick" envconfig:"CANARY_OPS_PER_TICK"`
	// ReportInterval paces the periodic summary log line and gauge refresh.
	ReportInterval time.Duration `yaml:"reportInterval" envconfig:"CANARY_REPORT_INTERVAL"`
	// ListenAddress serves /metrics, /health and /readahead.
	ListenAddress string `yaml:"listenAddress" envconfig:"CANARY_LISTEN_ADDRESS"`
}

// DefaultConfig returns the settings the canary runs with when no config
// file is given.
func DefaultConfig() Config {
	return Config{
		Cache:          buffercache.DefaultConfig(),
		LoadInterval:   5 * time.Millisecond,
		OpsPerTick:     64,
		ReportInterval: 10 * time.Second,
		ListenAddress:  ":7936",
	}
}

func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.LoadInterval <= 0 {
		return errors.New("loadInterval must be positive")
	}
	if c.OpsPerTick <= 0 {
		return errors.New("opsPerTick must be positive")
	}
	if c.ReportInterval <= 0 {
		return errors.New("reportInterval must be positive")
	}
	if c.ListenAddress == "" {
		return errors.New("listenAddress must not be empty")
	}
	return nil
}

// LoadConfig reads the canary config from path, falling back to defaults
// for anything the file leaves unset, then applies environment overrides.
// An empty path skips the file and uses defaults plus environment only.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process config environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
