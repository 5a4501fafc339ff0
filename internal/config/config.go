// Package config loads server configuration from a config file and
// environment variables, environment winning.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the server needs at startup.
type Config struct {
	ListenAddr     string
	DBPath         string
	JWTSecret      string
	TokenDuration  time.Duration
	AllowedOrigins []string
	LogFormat      string
	LogLevel       string

	// Rates maps "FROM/TO" currency pairs to manually entered exchange
	// rates, the fallback when no live provider is wired.
	Rates map[string]string
}

// Load reads configuration from config.yaml (optional) and EXSPLITTER_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/exsplitter")

	v.SetEnvPrefix("EXSPLITTER")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "./data/exsplitter.db")
	v.SetDefault("token_duration", "24h")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_format", "text")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:     v.GetString("listen_addr"),
		DBPath:         v.GetString("db_path"),
		JWTSecret:      v.GetString("jwt_secret"),
		TokenDuration:  v.GetDuration("token_duration"),
		AllowedOrigins: v.GetStringSlice("allowed_origins"),
		LogFormat:      v.GetString("log_format"),
		LogLevel:       v.GetString("log_level"),
		Rates:          v.GetStringMapString("rates"),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required (EXSPLITTER_JWT_SECRET)")
	}
	return cfg, nil
}
