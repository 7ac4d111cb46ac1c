// Package config loads settings in layers: defaults, then a YAML file, then a .env file, then the environment.
// Command line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/alanbriolat/bulk-downloader"
)

const EnvPrefix = "BULK_"

const (
	DatabaseNone   = "none"
	DatabaseBolt   = "bolt"
	DatabaseSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Download Download `yaml:"download" envPrefix:"DOWNLOAD_"`
	Reddit   Reddit   `yaml:"reddit" envPrefix:"REDDIT_"`
	Database Database `yaml:"database" envPrefix:"DATABASE_"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	// Address for the Prometheus endpoint, disabled if empty.
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

type Download struct {
	Dir          string        `yaml:"dir" env:"DIR"`
	FileTemplate string        `yaml:"file_template" env:"FILE_TEMPLATE"`
	Workers      int           `yaml:"workers" env:"WORKERS"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries   uint64        `yaml:"max_retries" env:"MAX_RETRIES"`
	NoDupes      bool          `yaml:"no_dupes" env:"NO_DUPES"`
	SkipExisting bool          `yaml:"skip_existing" env:"SKIP_EXISTING"`
}

type Reddit struct {
	BaseURL           string `yaml:"base_url" env:"BASE_URL"`
	UserAgent         string `yaml:"user_agent" env:"USER_AGENT"`
	Token             string `yaml:"token" env:"TOKEN"`
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

type Database struct {
	Type string `yaml:"type" env:"TYPE"`
	Path string `yaml:"path" env:"PATH"`
}

func Default() *Config {
	return &Config{
		Download: Download{
			Dir:          ".",
			FileTemplate: bulk_downloader.DefaultTargetFileTemplate,
			Workers:      4,
			Timeout:      time.Minute,
			MaxRetries:   bulk_downloader.DefaultMaxRetries,
		},
		Reddit: Reddit{
			RequestsPerMinute: 60,
		},
		Database: Database{
			Type: DatabaseNone,
		},
		LogLevel: "info",
	}
}

// Load builds the config. A missing file is an error, but a missing envFile is ignored. Either may be "" to skip it.
func Load(file string, envFile string) (*Config, error) {
	c := Default()
	if file != "" {
		if err := c.loadFile(file); err != nil {
			return nil, err
		}
	}
	if err := c.loadEnv(envFile); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %v: %w", file, err)
	}
	return nil
}

// loadEnv applies the environment, with any variables from envFile that aren't already set.
func (c *Config) loadEnv(envFile string) error {
	environment := env.ToMap(os.Environ())
	if envFile != "" {
		dotenv, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read env file: %w", err)
		}
		for k, v := range dotenv {
			if _, ok := environment[k]; !ok {
				environment[k] = v
			}
		}
	}
	err := env.ParseWithOptions(c, env.Options{
		Prefix:      EnvPrefix,
		Environment: environment,
	})
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Download.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if _, err := bulk_downloader.NewDownloadConfigTemplate(c.Download.FileTemplate); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Database.Type {
	case DatabaseNone:
	case DatabaseBolt, DatabaseSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: %v database needs a path", ErrInvalidConfig, c.Database.Type)
		}
	default:
		return fmt.Errorf("%w: unknown database type %#v", ErrInvalidConfig, c.Database.Type)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) Level() (zapcore.Level, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel)))
	return level, err
}

// TargetPrefix is the download directory as a prefix for file names.
func (d *Download) TargetPrefix() string {
	if strings.HasSuffix(d.Dir, string(os.PathSeparator)) {
		return d.Dir
	}
	return d.Dir + string(os.PathSeparator)
}
