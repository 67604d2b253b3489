// Package config provides configuration management for the prop pricing
// service.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	v.SetEnvPrefix("PROP_EDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional
// fields, tolerating a missing config file.
func LoadWithDefaults(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix("PROP_EDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "prop-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 5)

	v.SetDefault("stats_source.enabled", false)
	v.SetDefault("stats_source.timeout_seconds", 10)
	v.SetDefault("stats_source.retry_max", 3)
	v.SetDefault("stats_source.requests_per_second", 5.0)
	v.SetDefault("stats_source.breaker_threshold", 5)
	v.SetDefault("stats_source.breaker_cooldown_seconds", 60)

	v.SetDefault("modeling.lookback_games", 20)
	v.SetDefault("modeling.seasonal_factor", 1.0)
	v.SetDefault("modeling.dispersion", 5.0)
	v.SetDefault("modeling.registry_ttl_seconds", 300)

	v.SetDefault("edge.ev_min", 0.05)
	v.SetDefault("edge.prob_over_min", 0.52)
	v.SetDefault("edge.prob_over_max", 0.75)
	v.SetDefault("edge.volatility_max", 2.0)

	v.SetDefault("correlation.min_samples", 10)
	v.SetDefault("correlation.cluster_threshold", 0.4)
	v.SetDefault("correlation.lookback_games", 20)

	v.SetDefault("parlay.adjustment_factor", 0.25)
	v.SetDefault("parlay.max_adjusted_probability", 0.95)
	v.SetDefault("parlay.correlation_materiality", 0.1)
	v.SetDefault("parlay.base_multiplier", 2.0)
	v.SetDefault("parlay.monte_carlo_iterations", 20000)

	v.SetDefault("ticketing.min_legs", 2)
	v.SetDefault("ticketing.max_legs", 6)
	v.SetDefault("ticketing.max_mean_abs_correlation", 0.85)
	v.SetDefault("ticketing.min_stake", 1.0)
	v.SetDefault("ticketing.max_stake", 10000.0)

	v.SetDefault("risk.max_stake_pct", 0.05)
	v.SetDefault("risk.max_exposure", 1000.0)
	v.SetDefault("risk.max_daily_loss", 500.0)
	v.SetDefault("risk.advisory_leg_count", 4)
	v.SetDefault("risk.kelly_fraction", 0.25)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.port", 8081)
}
