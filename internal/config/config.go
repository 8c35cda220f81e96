package config

import (
	"github.com/spf13/viper"

	"adscrub/internal/domain"
)

// Config stores all configuration for the application.
type Config struct {
	PostgresURL         string `mapstructure:"POSTGRES_URL"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	ServerPort          string `mapstructure:"SERVER_PORT"`
	ClassifierURL       string `mapstructure:"CLASSIFIER_URL"`
	ClassifierTimeout   int    `mapstructure:"CLASSIFIER_TIMEOUT"` // seconds
	MaxRetries          int    `mapstructure:"MAX_RETRIES"`
	MaxCandidates       int    `mapstructure:"MAX_CANDIDATES"`
	ConfidenceThreshold int    `mapstructure:"CONFIDENCE_THRESHOLD"` // 50-95
	RequireStrongSignal bool   `mapstructure:"REQUIRE_STRONG_SIGNAL"`
	DebounceMs          int    `mapstructure:"DEBOUNCE_MS"`
	WatchWindowMs       int    `mapstructure:"WATCH_WINDOW_MS"` // 0 disables post-scan watching
	ShowVisualFeedback  bool   `mapstructure:"SHOW_VISUAL_FEEDBACK"`
	TrackStatistics     bool   `mapstructure:"TRACK_STATISTICS"`
	ScanTimeout         int    `mapstructure:"SCAN_TIMEOUT"` // seconds, whole page scan
	DeduplicationHours  int    `mapstructure:"DEDUPLICATION_HOURS"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CLASSIFIER_URL", "http://localhost:5001")
	viper.SetDefault("CLASSIFIER_TIMEOUT", 30)
	viper.SetDefault("MAX_RETRIES", 2)
	viper.SetDefault("MAX_CANDIDATES", 500)
	viper.SetDefault("CONFIDENCE_THRESHOLD", 80)
	viper.SetDefault("REQUIRE_STRONG_SIGNAL", true)
	viper.SetDefault("DEBOUNCE_MS", 100)
	viper.SetDefault("WATCH_WINDOW_MS", 3000)
	viper.SetDefault("SHOW_VISUAL_FEEDBACK", false)
	viper.SetDefault("TRACK_STATISTICS", true)
	viper.SetDefault("SCAN_TIMEOUT", 60)
	viper.SetDefault("DEDUPLICATION_HOURS", 1)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultSettings derives the per-cycle user settings from operator
// configuration. API callers can override them per request.
func (c *Config) DefaultSettings() domain.Settings {
	return domain.Settings{
		Enabled:             true,
		ConfidenceThreshold: c.ConfidenceThreshold,
		ShowVisualFeedback:  c.ShowVisualFeedback,
		TrackStatistics:     c.TrackStatistics,
	}
}
