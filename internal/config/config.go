// Package config provides configuration management for the prop pricing
// service.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	StatsSource StatsSourceConfig `mapstructure:"stats_source" validate:"required"`
	Modeling    ModelingConfig    `mapstructure:"modeling" validate:"required"`
	Edge        EdgeConfig        `mapstructure:"edge" validate:"required"`
	Correlation CorrelationConfig `mapstructure:"correlation" validate:"required"`
	Parlay      ParlayConfig      `mapstructure:"parlay" validate:"required"`
	Ticketing   TicketingConfig   `mapstructure:"ticketing" validate:"required"`
	Risk        RiskConfig        `mapstructure:"risk" validate:"required"`
	Metrics     MetricsConfig     `mapstructure:"metrics" validate:"required"`
	Health      HealthConfig      `mapstructure:"health" validate:"required"`
	Secrets     SecretsConfig     `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// StatsSourceConfig represents the external player-stats HTTP source
type StatsSourceConfig struct {
	Enabled                bool    `mapstructure:"enabled"`
	BaseURL                string  `mapstructure:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	APIKey                 string  `mapstructure:"api_key"`
	TimeoutSeconds         int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryMax               int     `mapstructure:"retry_max" validate:"gte=0"`
	RequestsPerSecond      float64 `mapstructure:"requests_per_second" validate:"required,gt=0"`
	BreakerThreshold       int     `mapstructure:"breaker_threshold" validate:"required,gt=0"`
	BreakerCooldownSeconds int     `mapstructure:"breaker_cooldown_seconds" validate:"required,gt=0"`
}

// ModelingConfig represents baseline model and registry configuration
type ModelingConfig struct {
	LookbackGames      int     `mapstructure:"lookback_games" validate:"required,gt=0"`
	SeasonalFactor     float64 `mapstructure:"seasonal_factor" validate:"required,gt=0"`
	Dispersion         float64 `mapstructure:"dispersion" validate:"required,gt=0"`
	RegistryTTLSeconds int     `mapstructure:"registry_ttl_seconds" validate:"required,gt=0"`
}

// EdgeConfig represents edge qualification thresholds and sweep schedules
type EdgeConfig struct {
	EVMin         float64           `mapstructure:"ev_min" validate:"required,gt=0"`
	ProbOverMin   float64           `mapstructure:"prob_over_min" validate:"required,gt=0,lt=1"`
	ProbOverMax   float64           `mapstructure:"prob_over_max" validate:"required,gt=0,lte=1"`
	VolatilityMax float64           `mapstructure:"volatility_max" validate:"required,gt=0"`
	SweepCron     map[string]string `mapstructure:"sweep_cron"`
}

// CorrelationConfig represents pairwise correlation parameters
type CorrelationConfig struct {
	MinSamples       int     `mapstructure:"min_samples" validate:"required,gt=1"`
	ClusterThreshold float64 `mapstructure:"cluster_threshold" validate:"required,gt=0,lte=1"`
	LookbackGames    int     `mapstructure:"lookback_games" validate:"required,gt=0"`
}

// ParlayConfig represents parlay simulation parameters
type ParlayConfig struct {
	AdjustmentFactor       float64 `mapstructure:"adjustment_factor" validate:"required,gt=0"`
	MaxAdjustedProbability float64 `mapstructure:"max_adjusted_probability" validate:"required,gt=0,lte=1"`
	CorrelationMateriality float64 `mapstructure:"correlation_materiality" validate:"required,gt=0,lt=1"`
	BaseMultiplier         float64 `mapstructure:"base_multiplier" validate:"required,gt=1"`
	MonteCarloIterations   int     `mapstructure:"monte_carlo_iterations" validate:"required,gt=0"`
}

// TicketingConfig represents draft ticket limits
type TicketingConfig struct {
	MinLegs               int     `mapstructure:"min_legs" validate:"required,gt=0"`
	MaxLegs               int     `mapstructure:"max_legs" validate:"required,gt=0"`
	MaxMeanAbsCorrelation float64 `mapstructure:"max_mean_abs_correlation" validate:"required,gt=0,lte=1"`
	MinStake              float64 `mapstructure:"min_stake" validate:"required,gt=0"`
	MaxStake              float64 `mapstructure:"max_stake" validate:"required,gt=0"`
}

// RiskConfig represents pre-submission risk limits
type RiskConfig struct {
	MaxStakePct      float64 `mapstructure:"max_stake_pct" validate:"required,gt=0,lt=1"`
	MaxExposure      float64 `mapstructure:"max_exposure" validate:"required,gt=0"`
	MaxDailyLoss     float64 `mapstructure:"max_daily_loss" validate:"required,gt=0"`
	AdvisoryLegCount int     `mapstructure:"advisory_leg_count" validate:"required,gt=0"`
	KellyFraction    float64 `mapstructure:"kelly_fraction" validate:"required,gt=0,lte=1"`
}

// MetricsConfig represents metrics exposition configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig represents health endpoint configuration
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// SecretsConfig represents the AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
