// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrTimelapseDirRequired is returned when TIMELAPSE_DIR is empty.
	ErrTimelapseDirRequired = errors.New("config: TIMELAPSE_DIR is required")
	// ErrInvalidSessionTTL is returned when SESSION_TTL is not positive.
	ErrInvalidSessionTTL = errors.New("config: SESSION_TTL must be positive")
	// ErrInvalidSessionMax is returned when SESSION_MAX is not positive.
	ErrInvalidSessionMax = errors.New("config: SESSION_MAX must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Directories
	TimelapseDir string `env:"TIMELAPSE_DIR, default=/data/timelapses" json:"timelapse_dir"`
	OutputDir    string `env:"OUTPUT_DIR, default=/data/output" json:"output_dir"`
	TempDir      string `env:"TEMP_DIR, default=/tmp/timelapse-editor" json:"temp_dir"`

	// External tools
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	DcrawPath  string `env:"DCRAW_PATH, default=dcraw" json:"dcraw_path"`

	// Sessions
	SessionTTL           time.Duration `env:"SESSION_TTL, default=30m" json:"session_ttl"`
	SessionMax           int           `env:"SESSION_MAX, default=16" json:"session_max"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL, default=1m" json:"session_sweep_interval"`

	// Tasks. An empty path keeps tasks in memory.
	TaskDBPath string `env:"TASK_DB_PATH" json:"task_db_path,omitempty"`

	// Staging directories older than this are purged at startup.
	StagingMaxAge time.Duration `env:"STAGING_MAX_AGE, default=24h" json:"staging_max_age"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Variables from a .env file in the working directory are loaded first;
// values already present in the environment win.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are ignored.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.TimelapseDir == "" {
		return ErrTimelapseDirRequired
	}
	if c.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}
	if c.SessionMax <= 0 {
		return ErrInvalidSessionMax
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TimelapseDir: %s, OutputDir: %s, TempDir: %s, FFmpegPath: %s, SessionTTL: %s, SessionMax: %d, TaskDBPath: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TimelapseDir,
		c.OutputDir,
		c.TempDir,
		c.FFmpegPath,
		c.SessionTTL,
		c.SessionMax,
		c.TaskDBPath,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
