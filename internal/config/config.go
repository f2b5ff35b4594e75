// Package config loads application configuration via viper, replacing
// the teacher's os.Getenv-only loader with the layered file+env+default
// approach xkilldash9x-scalpel-cli uses (internal/config/config.go):
// SetDefaults seeds a viper instance, then environment variables and an
// optional config file override it, and the result is unmarshaled into a
// typed struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func envKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Config is the root configuration for the dev-browser-studio server.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Chrome     ChromeConfig     `mapstructure:"chrome"`
	Perception PerceptionConfig `mapstructure:"perception"`
	Recording  RecordingConfig  `mapstructure:"recording"`
	Vision     VisionConfig     `mapstructure:"vision"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configures the HTTP control surface (spec §6).
type ServerConfig struct {
	Port    int `mapstructure:"port"`
	CDPPort int `mapstructure:"cdp_port"`
}

// ChromeConfig configures the browser process the registry drives.
type ChromeConfig struct {
	BinaryPath   string   `mapstructure:"binary_path"`
	Headless     bool     `mapstructure:"headless"`
	ExtraArgs    []string `mapstructure:"extra_args"`
	RecordingsDir string  `mapstructure:"recordings_dir"`
}

// PerceptionConfig configures the Perception Loop (spec §4.5).
type PerceptionConfig struct {
	MaxCycles            int     `mapstructure:"max_cycles"`
	MaxConsecutiveErrors int     `mapstructure:"max_consecutive_errors"`
	SettleTimeMs         int     `mapstructure:"settle_time_ms"`
	APITimeoutSeconds    int     `mapstructure:"api_timeout_seconds"`
	AriaCharCap          int     `mapstructure:"aria_char_cap"`
	AuditDir             string  `mapstructure:"audit_dir"`
	ViewportWidth        int     `mapstructure:"viewport_width"`
	ViewportHeight       int     `mapstructure:"viewport_height"`
	ScreenshotQuality    int     `mapstructure:"screenshot_quality"`
	MaxCostUSD           float64 `mapstructure:"max_cost_usd"`
	MaxTokens            int     `mapstructure:"max_tokens"`
	MaxDurationMs        int64   `mapstructure:"max_duration_ms"`
	ReadOnlyMode         bool    `mapstructure:"read_only_mode"`
	BlockedURLPatterns   []string `mapstructure:"blocked_url_patterns"`
}

// RecordingConfig configures default recording options (spec §3).
type RecordingConfig struct {
	MaxWidth      int  `mapstructure:"max_width"`
	MaxHeight     int  `mapstructure:"max_height"`
	Quality       int  `mapstructure:"quality"`
	EveryNthFrame int  `mapstructure:"every_nth_frame"`
	KeyFrameCount int  `mapstructure:"key_frame_count"`
}

// VisionConfig configures the Vision Client (spec §4.6).
type VisionConfig struct {
	Model          string  `mapstructure:"model"`
	APIKey         string  `mapstructure:"api_key"`
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// AuthConfig configures the optional operator-token auth middleware.
type AuthConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	JWTSecret  string `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// LoggingConfig configures zap + lumberjack.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults seeds v with the documented defaults (spec §3, §4.2, §4.5,
// §4.7, §6).
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9222)
	v.SetDefault("server.cdp_port", 9223)

	v.SetDefault("chrome.headless", true)
	v.SetDefault("chrome.recordings_dir", "./recordings")

	v.SetDefault("perception.max_cycles", 50)
	v.SetDefault("perception.max_consecutive_errors", 5)
	v.SetDefault("perception.settle_time_ms", 300)
	v.SetDefault("perception.api_timeout_seconds", 30)
	v.SetDefault("perception.aria_char_cap", 40_000)
	v.SetDefault("perception.audit_dir", "./recordings")
	v.SetDefault("perception.viewport_width", 1024)
	v.SetDefault("perception.viewport_height", 768)
	v.SetDefault("perception.screenshot_quality", 70)
	v.SetDefault("perception.max_cost_usd", 5.00)
	v.SetDefault("perception.max_tokens", 500_000)
	v.SetDefault("perception.max_duration_ms", 600_000)
	v.SetDefault("perception.read_only_mode", false)

	v.SetDefault("recording.max_width", 1280)
	v.SetDefault("recording.max_height", 720)
	v.SetDefault("recording.quality", 80)
	v.SetDefault("recording.every_nth_frame", 1)
	v.SetDefault("recording.key_frame_count", 5)

	v.SetDefault("vision.model", "claude-sonnet-4-5")
	v.SetDefault("vision.rate_limit_per_sec", 2.0)
	v.SetDefault("vision.rate_limit_burst", 2)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "dev-browser-studio.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

// Load builds a viper instance from defaults, an optional config file at
// configPath (skipped silently if absent) and environment variables
// (prefixed DBS_, nested keys joined with "_"), then unmarshals into a
// Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("DBS")
	v.SetEnvKeyReplacer(envKeyReplacer())
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file %s: %w", configPath, err)
			}
		}
	}

	v.BindEnv("vision.api_key", "ANTHROPIC_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the port rule from spec §6: "port and cdpPort both
// 1-65535 and distinct".
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.CDPPort < 1 || c.Server.CDPPort > 65535 {
		return fmt.Errorf("server.cdp_port must be between 1 and 65535")
	}
	if c.Server.Port == c.Server.CDPPort {
		return fmt.Errorf("server.port and server.cdp_port must be distinct")
	}
	return nil
}
