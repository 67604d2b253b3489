// Package main provides the entry point for the prop pricing daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/prop-edge/internal/config"
	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/edge"
	"github.com/yourusername/prop-edge/internal/events"
	"github.com/yourusername/prop-edge/internal/health"
	"github.com/yourusername/prop-edge/internal/logger"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/modeling"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/repository"
	"github.com/yourusername/prop-edge/internal/scheduler"
	"github.com/yourusername/prop-edge/internal/valuation"
)

func main() {
	var (
		cfg    *config.Config
		err    error
		appLog *logrus.Logger
		db     *database.DB
	)

	// Load configuration
	cfg, err = config.Load("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Overlay AWS secrets if enabled
	if err := config.LoadSecretsFromAWS(context.Background(), cfg); err != nil {
		log.Fatalf("Failed to load secrets: %v", err)
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if len(cfg.Edge.SweepCron) == 0 {
		log.Fatalf("At least one sweep schedule must be configured (edge.sweep_cron)")
	}

	// Set up logging
	appLog = logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
	}).Info("Prop Edge pricing daemon starting")

	metrics.InitRegistry()

	// Initialize database connection
	db, err = database.Initialize(context.Background(), cfg)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	appLog.Info("Database connection established")

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Build the stat history fallback chain
	providers := []modeling.HistoricalStatsProvider{}
	var statsSource *modeling.HTTPStatsSource
	if cfg.StatsSource.Enabled {
		statsSource = modeling.NewHTTPStatsSource(modeling.HTTPSourceConfig{
			BaseURL:           cfg.StatsSource.BaseURL,
			APIKey:            cfg.StatsSource.APIKey,
			Timeout:           time.Duration(cfg.StatsSource.TimeoutSeconds) * time.Second,
			MaxRetries:        cfg.StatsSource.RetryMax,
			RetryWaitMin:      100 * time.Millisecond,
			RetryWaitMax:      10 * time.Second,
			RateLimit:         cfg.StatsSource.RequestsPerSecond,
			CircuitBreakerMax: cfg.StatsSource.BreakerThreshold,
			BreakerCooldown:   time.Duration(cfg.StatsSource.BreakerCooldownSeconds) * time.Second,
		}, appLog)
		defer statsSource.Close()
		providers = append(providers, statsSource)
		appLog.WithField("base_url", cfg.StatsSource.BaseURL).Info("Remote stats source enabled")
	}
	providers = append(providers,
		modeling.NewRecentLinesProvider(repos.Props),
		modeling.NewSyntheticProvider(),
	)
	chain := modeling.NewChainProvider(appLog, providers...)

	// Register baseline models and per-prop-type defaults
	registry := modeling.NewRegistry(
		time.Duration(cfg.Modeling.RegistryTTLSeconds)*time.Second, appLog)
	if err := registerBaselineModels(registry, chain, cfg); err != nil {
		appLog.WithError(err).Fatal("Failed to register baseline models")
	}
	metrics.UpdateRegisteredModels(float64(len(registry.ListModels())))

	// Initialize pricing services
	valuationEngine := valuation.NewEngine(repos.Props, repos.Predictions, repos.Valuations, registry, appLog)
	publisher := events.NewLogPublisher(appLog)
	edgeService := edge.NewService(repos.Edges, repos.Props, valuationEngine, edge.Thresholds{
		EVMin:         cfg.Edge.EVMin,
		ProbOverMin:   cfg.Edge.ProbOverMin,
		ProbOverMax:   cfg.Edge.ProbOverMax,
		VolatilityMax: cfg.Edge.VolatilityMax,
	}, publisher, appLog)

	// Schedule sweeps
	sweepScheduler := scheduler.NewScheduler(edgeService, appLog)
	for sport, expression := range cfg.Edge.SweepCron {
		if err := sweepScheduler.ScheduleSweep(expression, models.Sport(sport)); err != nil {
			appLog.WithError(err).WithField("sport", sport).Fatal("Failed to schedule sweep")
		}
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start health endpoints
	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Port:        cfg.Health.Port,
		Logger:      appLog,
		DB:          db,
	})
	if err := healthServer.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}

	// Start metrics exposition
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLog.WithError(err).Error("Metrics server failed")
			}
		}()
		appLog.WithFields(logrus.Fields{
			"port": cfg.Metrics.Port,
			"path": cfg.Metrics.Path,
		}).Info("Metrics server started")
	}

	// Start the sweep scheduler
	if err := sweepScheduler.Start(); err != nil {
		appLog.WithError(err).Fatal("Failed to start sweep scheduler")
	}
	healthServer.SetReady(true)

	appLog.WithFields(logrus.Fields{
		"sweep_schedules":   len(cfg.Edge.SweepCron),
		"stats_source":      cfg.StatsSource.Enabled,
		"registered_models": len(registry.ListModels()),
	}).Info("Pricing daemon is running")

	// Wait for shutdown signal
	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	// Graceful shutdown
	appLog.Info("Initiating graceful shutdown...")
	healthServer.SetReady(false)

	sweepScheduler.Stop()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("Error during metrics server shutdown")
		}
		shutdownCancel()
	}

	cancel()

	appLog.Info("Pricing daemon shut down successfully")
}

// registerBaselineModels wires the four baseline families into the registry
// and assigns a default family to every supported prop type.
func registerBaselineModels(registry *modeling.Registry, provider modeling.HistoricalStatsProvider, cfg *config.Config) error {
	params := modeling.ModelParams{
		LookbackGames:  cfg.Modeling.LookbackGames,
		SeasonalFactor: cfg.Modeling.SeasonalFactor,
		Dispersion:     cfg.Modeling.Dispersion,
	}

	factories := map[string]modeling.Factory{
		"baseline_poisson_v1": func() (modeling.Model, error) {
			return modeling.NewPoissonModel("baseline_poisson_v1", provider, params), nil
		},
		"baseline_normal_v1": func() (modeling.Model, error) {
			return modeling.NewNormalModel("baseline_normal_v1", provider, params), nil
		},
		"baseline_negbin_v1": func() (modeling.Model, error) {
			return modeling.NewNegativeBinomialModel("baseline_negbin_v1", provider, params), nil
		},
		"baseline_binomial_v1": func() (modeling.Model, error) {
			return modeling.NewBinomialModel("baseline_binomial_v1", provider, params), nil
		},
	}
	for versionID, factory := range factories {
		if err := registry.RegisterModel(versionID, factory); err != nil {
			return err
		}
	}

	defaults := map[models.PropType]string{
		models.PropTypeAssists:            "baseline_poisson_v1",
		models.PropTypeRebounds:           "baseline_poisson_v1",
		models.PropTypeHits:               "baseline_poisson_v1",
		models.PropTypeHomeRuns:           "baseline_poisson_v1",
		models.PropTypeRBI:                "baseline_poisson_v1",
		models.PropTypeWalks:              "baseline_poisson_v1",
		models.PropTypeStolenBases:        "baseline_poisson_v1",
		models.PropTypeOutsRecorded:       "baseline_poisson_v1",
		models.PropTypeStrikeoutsPitcher:  "baseline_negbin_v1",
		models.PropTypePoints:             "baseline_normal_v1",
		models.PropTypeReceivingYards:     "baseline_normal_v1",
		models.PropTypeRushingYards:       "baseline_normal_v1",
		models.PropTypeInningsPitched:     "baseline_normal_v1",
		models.PropTypePassingCompletions: "baseline_binomial_v1",
	}
	for propType, versionID := range defaults {
		if err := registry.SetDefaultForPropType(propType, versionID); err != nil {
			return err
		}
	}
	return nil
}
