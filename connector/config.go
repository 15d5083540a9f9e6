package connector

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DAOKIT_HOST or
// DAOKIT_POOL_MAX_OPEN.
const EnvPrefix = "daokit"

// Config represents database connection configuration.
type Config struct {
	Driver         string            `json:"driver" yaml:"driver"`
	Host           string            `json:"host" yaml:"host"`
	Port           int               `json:"port" yaml:"port"`
	Database       string            `json:"database" yaml:"database"`
	Username       string            `json:"username" yaml:"username"`
	Password       string            `json:"password" yaml:"password"`
	SSLMode        string            `json:"ssl_mode" yaml:"ssl_mode" split_words:"true"`
	Params         map[string]string `json:"params" yaml:"params"`
	Pool           PoolConfig        `json:"pool" yaml:"pool"`
	ConnectTimeout time.Duration     `json:"connect_timeout" yaml:"connect_timeout" split_words:"true"`
	QueryTimeout   time.Duration     `json:"query_timeout" yaml:"query_timeout" split_words:"true"`
	Retry          RetryConfig       `json:"retry" yaml:"retry"`
}

// PoolConfig defines connection pool settings.
type PoolConfig struct {
	MaxOpen         int           `json:"max_open" yaml:"max_open" split_words:"true"`
	MaxIdle         int           `json:"max_idle" yaml:"max_idle" split_words:"true"`
	MaxLifetime     time.Duration `json:"max_lifetime" yaml:"max_lifetime" split_words:"true"`
	MaxIdleTime     time.Duration `json:"max_idle_time" yaml:"max_idle_time" split_words:"true"`
	HealthCheckFreq time.Duration `json:"health_check_freq" yaml:"health_check_freq" split_words:"true"`
}

// RetryConfig defines retry behavior for connecting and acquiring
// connections. MaxRetries of zero disables retries.
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries" split_words:"true"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay" split_words:"true"`
	MaxDelay   time.Duration `json:"max_delay" yaml:"max_delay" split_words:"true"`
	Backoff    float64       `json:"backoff" yaml:"backoff"`
}

// LoadConfig reads a YAML file and applies DAOKIT_* environment overrides.
// An empty path loads from the environment only.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}
	if c.Pool.MaxOpen <= 0 {
		c.Pool.MaxOpen = 10
	}
	if c.Pool.MaxIdle < 0 {
		c.Pool.MaxIdle = 0
	}
	if c.Pool.MaxLifetime == 0 {
		c.Pool.MaxLifetime = time.Hour
	}
	if c.Pool.MaxIdleTime == 0 {
		c.Pool.MaxIdleTime = 30 * time.Minute
	}
	if c.Retry.MaxRetries > 0 {
		if c.Retry.BaseDelay <= 0 {
			c.Retry.BaseDelay = 100 * time.Millisecond
		}
		if c.Retry.Backoff < 1 {
			c.Retry.Backoff = 2
		}
	}
}

// Validate checks the fields the configured driver requires.
func (c *Config) Validate() error {
	var errs []error
	switch c.Driver {
	case "":
		errs = append(errs, errors.New("driver is required"))
	case "sqlite":
		if c.Database == "" {
			errs = append(errs, errors.New("database file is required"))
		}
	default:
		if c.Host == "" {
			errs = append(errs, errors.New("host is required"))
		}
		if c.Port <= 0 || c.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
		}
		if c.Database == "" {
			errs = append(errs, errors.New("database is required"))
		}
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("invalid max_retries: %d", c.Retry.MaxRetries))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry max_delay is shorter than base_delay"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid %s config: %w", c.Driver, err)
	}
	return nil
}
