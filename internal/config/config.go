// Package config loads service configuration from an optional config file
// and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Port        string
	DatabaseURL string // empty selects the in-memory store
	RedisURL    string // empty disables Redis caching and pub/sub
	LogLevel    slog.Level

	Weather   WeatherConfig
	Inference InferenceConfig
	Analytics AnalyticsConfig
}

// WeatherConfig configures the weather provider and its cache.
type WeatherConfig struct {
	APIKey   string
	BaseURL  string
	Location string
	TTL      time.Duration
	Timeout  time.Duration
}

// InferenceConfig configures the generative model provider.
type InferenceConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// RatePerMinute caps model calls; 0 disables the cap.
	RatePerMinute float64
	Burst         int
}

// AnalyticsConfig configures snapshot computation.
type AnalyticsConfig struct {
	Window time.Duration
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables (e.g. WEATHER_API_KEY)
// 2. config.yaml in the working directory or /etc/storepulse
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/storepulse")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars only.
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org")
	v.SetDefault("weather.location", "Cairo")
	v.SetDefault("weather.ttl", "30m")
	v.SetDefault("weather.timeout", "5s")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("inference.timeout", "10s")
	v.SetDefault("inference.rate_per_minute", 15)
	v.SetDefault("inference.burst", 5)
	v.SetDefault("analytics.window", "1m")
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// weather.api_key <- WEATHER_API_KEY, etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Google's conventional variable name for Gemini keys.
	if err := v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        v.GetString("port"),
		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),
		Weather: WeatherConfig{
			APIKey:   v.GetString("weather.api_key"),
			BaseURL:  v.GetString("weather.base_url"),
			Location: v.GetString("weather.location"),
			TTL:      v.GetDuration("weather.ttl"),
			Timeout:  v.GetDuration("weather.timeout"),
		},
		Inference: InferenceConfig{
			APIKey:  v.GetString("gemini.api_key"),
			BaseURL: v.GetString("gemini.base_url"),
			Model:   v.GetString("gemini.model"),
			Timeout: v.GetDuration("inference.timeout"),

			RatePerMinute: v.GetFloat64("inference.rate_per_minute"),
			Burst:         v.GetInt("inference.burst"),
		},
		Analytics: AnalyticsConfig{
			Window: v.GetDuration("analytics.window"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must be set")
	}
	if c.Weather.TTL <= 0 {
		return fmt.Errorf("weather.ttl must be positive, got %s", c.Weather.TTL)
	}
	if c.Weather.Timeout <= 0 || c.Inference.Timeout <= 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	if c.Inference.RatePerMinute < 0 {
		return fmt.Errorf("inference.rate_per_minute must not be negative")
	}
	if c.Analytics.Window <= 0 {
		return fmt.Errorf("analytics.window must be positive, got %s", c.Analytics.Window)
	}
	return nil
}
