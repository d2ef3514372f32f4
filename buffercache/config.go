package buffercache

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the construction parameters for one cache: the global memory
// budget and the shape of the shard pool it runs on. The balancer's cadence
// (check interval, access threshold, read-ahead ratio) is part of the control
// loop itself and is deliberately not configurable.
type Config struct {
	// TotalCacheSize is the global byte budget split across all partitions.
	// Zero is allowed and keeps every rebalance pass a no-op.
	TotalCacheSize uint64 `yaml:"totalCacheSize" envconfig:"CACHE_TOTAL_SIZE"`
	// Shards is the number of serial shard executors the cache runs on.
	Shards int `yaml:"shards" envconfig:"CACHE_SHARDS"`
	// TaskQueueSize bounds each shard's task backlog. Zero selects the pool
	// default.
	TaskQueueSize int `yaml:"taskQueueSize" envconfig:"CACHE_TASK_QUEUE_SIZE"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TotalCacheSize: 1 << 30, // 1 GiB
		Shards:         8,
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Shards <= 0 {
		return fmt.Errorf("shards must be positive, got %d", c.Shards)
	}
	if c.TaskQueueSize < 0 {
		return fmt.Errorf("taskQueueSize must not be negative, got %d", c.TaskQueueSize)
	}
	return nil
}

// LoadConfig layers a YAML file (when path is non-empty) over the defaults,
// then applies environment variable overrides, then validates the result.
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
		return Config{}, fmt.Errorf("apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
