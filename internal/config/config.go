package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/jgivc/mfdl/internal/entity"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvDest     = "MFDL_DEST"
	EnvProxy    = "MFDL_PROXY"
	EnvRedisURL = "MFDL_REDIS_URL"
	EnvLogLevel = "MFDL_LOG_LEVEL"
	EnvRetries  = "MFDL_RETRIES"

	defaultAPIBase       = "https://www.mediafire.com/api"
	defaultRetries       = 10
	defaultMaxJobs       = 1
	defaultTimeout       = 60 * time.Second
	defaultRequestDelay  = 300 * time.Millisecond
	defaultRetryDelayMin = 4 * time.Second
	defaultRetryDelayMax = 8 * time.Second
)

// FilterConfig describes one exclusion rule. Empty fields are ignored.
type FilterConfig struct {
	Name    string   `yaml:"name"`
	Ext     []string `yaml:"ext"`
	MinSize int64    `yaml:"min_size"`
	MaxSize int64    `yaml:"max_size"`
	After   string   `yaml:"after"`
	Before  string   `yaml:"before"`
}

type Config struct {
	DestBase      string              `yaml:"dest_base"`
	APIBase       string              `yaml:"api_base"`
	Retries       int                 `yaml:"retries"`
	MaxJobs       int                 `yaml:"max_jobs"`
	Timeout       time.Duration       `yaml:"timeout"`
	NoDelay       bool                `yaml:"nodelay"`
	RequestDelay  time.Duration       `yaml:"request_delay"`
	RetryDelayMin time.Duration       `yaml:"retry_delay_min"`
	RetryDelayMax time.Duration       `yaml:"retry_delay_max"`
	NoConfirm     bool                `yaml:"noconfirm"`
	Proxy         string              `yaml:"proxy"`
	Headers       map[string]string   `yaml:"headers"`
	Cookies       map[string]string   `yaml:"cookies"`
	Filters       []FilterConfig      `yaml:"filters"`
	DownloadMode  entity.DownloadMode `yaml:"download_mode"`
	LogLevel      string              `yaml:"log_level"`
	RedisURL      string              `yaml:"redis_url"`
	MetricsListen string              `yaml:"metrics_listen"`
}

// New returns a config holding the defaults whose zero value is meaningful.
// Load decodes on top of it, so an explicit "retries: 0" disables retries.
func New() *Config {
	return &Config{Retries: defaultRetries}
}

// SetDefaults fills fields left empty after decoding.
func (c *Config) SetDefaults() {
	if c.DestBase == "" {
		c.DestBase = "."
	}

	if c.APIBase == "" {
		c.APIBase = defaultAPIBase
	}

	if c.MaxJobs == 0 {
		c.MaxJobs = defaultMaxJobs
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	if c.RequestDelay == 0 {
		c.RequestDelay = defaultRequestDelay
	}

	if c.RetryDelayMin == 0 && c.RetryDelayMax == 0 {
		c.RetryDelayMin = defaultRetryDelayMin
		c.RetryDelayMax = defaultRetryDelayMax
	}

	if c.DownloadMode == "" {
		c.DownloadMode = entity.DownloadModeFull
	}

	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
}

func (c *Config) Validate() error {
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative: %d", c.Retries)
	}

	if c.RequestDelay < 0 {
		return fmt.Errorf("request_delay must not be negative: %s", c.RequestDelay)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Timeout)
	}

	if c.MaxJobs < 1 {
		return fmt.Errorf("max_jobs must be positive: %d", c.MaxJobs)
	}

	if c.RetryDelayMin < 0 || c.RetryDelayMax < c.RetryDelayMin {
		return fmt.Errorf("invalid retry delay window: %s..%s", c.RetryDelayMin, c.RetryDelayMax)
	}

	if !c.DownloadMode.Valid() {
		return fmt.Errorf("unknown download mode: %q", c.DownloadMode)
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}

	stat, err := os.Stat(c.DestBase)
	if err != nil {
		return fmt.Errorf("cannot access destination %s: %w", c.DestBase, err)
	}

	if !stat.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", c.DestBase)
	}

	return nil
}

// Load reads the config file if it exists, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func (c *Config) applyEnv() error {
	// .env is optional
	_ = godotenv.Load()

	if v := os.Getenv(EnvDest); v != "" {
		c.DestBase = v
	}

	if v := os.Getenv(EnvProxy); v != "" {
		c.Proxy = v
	}

	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}

	if v := os.Getenv(EnvRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvRetries, v, err)
		}
		c.Retries = n
	}

	return nil
}
