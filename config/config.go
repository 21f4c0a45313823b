package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Stream   StreamConfig   `mapstructure:"stream"`
	Source   SourceConfig   `mapstructure:"source"`
	Persist  PersistConfig  `mapstructure:"persist"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type StreamConfig struct {
	ID         string `mapstructure:"id"`          // stream identifier, partitions persisted data
	IntervalMs uint32 `mapstructure:"interval_ms"` // inter-tick delay
	BatchSize  int    `mapstructure:"batch_size"`  // candles per broadcast batch
}

type SourceConfig struct {
	Mode       string `mapstructure:"mode"`        // "synthetic" or "replay"
	Seed       int64  `mapstructure:"seed"`        // synthetic walk seed
	ReplayPath string `mapstructure:"replay_path"` // delimited historical record
}

type PersistConfig struct {
	Mode               string        `mapstructure:"mode"` // "disabled" or "local"
	Root               string        `mapstructure:"root"`
	FlushInterval      time.Duration `mapstructure:"flush_interval"`
	SegmentTargetBytes int           `mapstructure:"segment_target_bytes"`
	Archive            bool          `mapstructure:"archive"` // mirror flushes into Postgres
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
// Invalid settings are fatal; the pipeline never starts half-configured.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	v.SetDefault("stream.interval_ms", 65)
	v.SetDefault("stream.batch_size", 3)
	v.SetDefault("source.mode", "synthetic")
	v.SetDefault("persist.mode", "local")
	v.SetDefault("persist.flush_interval", "5s")
	v.SetDefault("persist.segment_target_bytes", 16384)
	v.SetDefault("server.addr", ":8080")

	// Support environment variables with dot notation (e.g., STREAM_ID)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	return &cfg
}

// Validate checks the startup settings the pipeline depends on.
func (c *Config) Validate() error {
	if c.Stream.ID == "" {
		return fmt.Errorf("stream.id must not be empty")
	}
	if c.Stream.IntervalMs == 0 {
		return fmt.Errorf("stream.interval_ms must be positive")
	}
	if c.Stream.BatchSize <= 0 {
		return fmt.Errorf("stream.batch_size must be positive")
	}

	switch c.Source.Mode {
	case "synthetic":
	case "replay":
		if c.Source.ReplayPath == "" {
			return fmt.Errorf("source.replay_path required in replay mode")
		}
	default:
		return fmt.Errorf("source.mode must be \"synthetic\" or \"replay\", got %q", c.Source.Mode)
	}

	switch c.Persist.Mode {
	case "disabled":
	case "local":
		if c.Persist.Root == "" {
			return fmt.Errorf("persist.root required in local mode")
		}
		if c.Persist.FlushInterval <= 0 {
			return fmt.Errorf("persist.flush_interval must be positive")
		}
		if c.Persist.SegmentTargetBytes <= 0 {
			return fmt.Errorf("persist.segment_target_bytes must be positive")
		}
	default:
		return fmt.Errorf("persist.mode must be \"disabled\" or \"local\", got %q", c.Persist.Mode)
	}

	if c.Persist.Archive && c.Postgres.Host == "" && c.Log.Environment != "prod" {
		return fmt.Errorf("postgres.host required when persist.archive is enabled")
	}

	return nil
}
