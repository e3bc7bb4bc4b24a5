// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration: defaults, YAML file loading and environment
// overrides through viper.

package control

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. HIOLOAD_MQ_LOG_LEVEL=debug.
const EnvPrefix = "HIOLOAD_MQ"

// Config is the root configuration of a facade.
type Config struct {
	// Workers is the dispatch loop size; 0 means one per CPU.
	Workers int `mapstructure:"workers"`
	// BatchSize bounds the frames handled per channel per loop cycle.
	BatchSize int `mapstructure:"batch_size"`
	// RingCapacity is the inbound buffer per socket.
	RingCapacity int `mapstructure:"ring_capacity"`
	// SendQueueSize is the outbound buffer per socket.
	SendQueueSize int `mapstructure:"send_queue_size"`
	// CPUAffinity pins workers to CPUs (Linux only).
	CPUAffinity bool `mapstructure:"cpu_affinity"`
	// MaxIdleBackoff caps how long an idle worker parks between polls.
	MaxIdleBackoff time.Duration `mapstructure:"max_idle_backoff"`
	// ReplyTimeout bounds SendAndReceive when the caller's context has no
	// deadline. Zero waits forever.
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`

	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	DialRetry      time.Duration `mapstructure:"dial_retry"`
	DialMaxRetries int           `mapstructure:"dial_max_retries"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:        0,
		BatchSize:      16,
		RingCapacity:   1024,
		SendQueueSize:  256,
		MaxIdleBackoff: 10 * time.Millisecond,
		ReplyTimeout:   30 * time.Second,
		DialTimeout:    5 * time.Second,
		DialRetry:      250 * time.Millisecond,
		DialMaxRetries: 10,
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/hioload-mq.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// LoadConfig reads path (YAML) when non-empty, otherwise searches ".",
// "./config" and "/etc/hioload-mq" for hioload-mq.yaml. A missing file is not
// an error. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hioload-mq")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hioload-mq")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// seed defaults so env-only configs work
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("batch_size", cfg.BatchSize)
	v.SetDefault("ring_capacity", cfg.RingCapacity)
	v.SetDefault("send_queue_size", cfg.SendQueueSize)
	v.SetDefault("cpu_affinity", cfg.CPUAffinity)
	v.SetDefault("max_idle_backoff", cfg.MaxIdleBackoff)
	v.SetDefault("reply_timeout", cfg.ReplyTimeout)
	v.SetDefault("dial_timeout", cfg.DialTimeout)
	v.SetDefault("dial_retry", cfg.DialRetry)
	v.SetDefault("dial_max_retries", cfg.DialMaxRetries)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
}

// Validate checks ranges and fills derived defaults.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size: %d", c.BatchSize)
	}
	if c.RingCapacity <= 0 {
		return fmt.Errorf("invalid ring_capacity: %d", c.RingCapacity)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("invalid send_queue_size: %d", c.SendQueueSize)
	}
	if c.ReplyTimeout < 0 {
		return fmt.Errorf("invalid reply_timeout: %s", c.ReplyTimeout)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	return nil
}
