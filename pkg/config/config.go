package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ElectionConfig holds the election timing knobs. Zero values fall back to
// the election package defaults (1s keep-alive, half-interval timeout).
type ElectionConfig struct {
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
	TimeoutInterval   time.Duration `yaml:"timeout_interval"`
	InitInterval      time.Duration `yaml:"init_interval"`
	MissTolerance     int           `yaml:"miss_tolerance"`
}

// Config is the bridged daemon configuration
type Config struct {
	// DomainID identifies the network domain this instance controls
	DomainID int64 `yaml:"domain_id"`

	// InstanceID pins the election instance ID; zero generates a random one
	InstanceID int `yaml:"instance_id"`

	// BrokerURL is the NATS server address
	BrokerURL string `yaml:"broker_url"`

	// KeepAliveTimeout is the outbound-inactivity period after which the
	// controller ID is re-sent to the root.
	KeepAliveTimeout time.Duration `yaml:"keep_alive_timeout"`

	Election ElectionConfig `yaml:"election"`

	// TopologyFile optionally seeds the built-in static application
	TopologyFile string  `yaml:"topology_file"`
	TEThreshold  float64 `yaml:"te_threshold"`

	// MetricsAddr serves Prometheus metrics when non-empty
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the baseline configuration
func Default() Config {
	return Config{
		DomainID:         1,
		BrokerURL:        "nats://127.0.0.1:4222",
		KeepAliveTimeout: 4 * time.Second,
		TEThreshold:      0.95,
		MetricsAddr:      ":9155",
		LogLevel:         "info",
	}
}

// Load reads a YAML config file over the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with
func (c *Config) Validate() error {
	if c.DomainID < 1 {
		return fmt.Errorf("domain_id must be positive, got %d", c.DomainID)
	}
	if c.InstanceID < 0 {
		return fmt.Errorf("instance_id must not be negative, got %d", c.InstanceID)
	}
	if c.BrokerURL == "" {
		return fmt.Errorf("broker_url must be set")
	}
	if c.TEThreshold <= 0 || c.TEThreshold > 1 {
		return fmt.Errorf("te_threshold must be in (0, 1], got %v", c.TEThreshold)
	}
	if c.KeepAliveTimeout < 0 || c.Election.KeepAliveInterval < 0 ||
		c.Election.TimeoutInterval < 0 || c.Election.InitInterval < 0 {
		return fmt.Errorf("timing values must not be negative")
	}
	if c.Election.MissTolerance < 0 {
		return fmt.Errorf("miss_tolerance must not be negative, got %d", c.Election.MissTolerance)
	}
	return nil
}
