// Package main provides a CLI for one-off edge sweeps and valuations.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/prop-edge/internal/config"
	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/edge"
	"github.com/yourusername/prop-edge/internal/events"
	"github.com/yourusername/prop-edge/internal/logger"
	"github.com/yourusername/prop-edge/internal/modeling"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/repository"
	"github.com/yourusername/prop-edge/internal/valuation"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile   string
	sportFlag    string
	propIDFlag   int64
	modelFlag    string
	appLog       *logrus.Logger
	cfg          *config.Config
	db           *database.DB
	repos        *repository.Repositories
	valuationEng *valuation.Engine
	edgeService  *edge.Service
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	runCmd.Flags().StringVarP(&sportFlag, "sport", "s", "", "Sport to sweep (NBA, MLB, NFL); empty sweeps every configured sport")
	valuateCmd.Flags().Int64VarP(&propIDFlag, "prop", "p", 0, "Prop ID to valuate")
	valuateCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model version ID (defaults to the prop type's default model)")
	valuateCmd.MarkFlagRequired("prop")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(valuateCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one-off edge sweeps and valuations",
	Long:  `Recomputes edges for a sport or prices a single prop against the live database, using the same engines as the pricing daemon.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recompute edges for a sport",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		sports := []models.Sport{}
		if sportFlag != "" {
			sports = append(sports, models.Sport(sportFlag))
		} else {
			for sport := range cfg.Edge.SweepCron {
				sports = append(sports, models.Sport(sport))
			}
		}
		if len(sports) == 0 {
			return fmt.Errorf("no sport given and no sweep schedules configured")
		}

		for _, sport := range sports {
			started := time.Now()
			stats, err := edgeService.RecomputeEdgesForSport(ctx, sport)
			if err != nil {
				return fmt.Errorf("sweep failed for %s: %w", sport, err)
			}
			fmt.Printf("%s: evaluated=%d new=%d updated=%d retired=%d (%.1fs)\n",
				sport, stats.Evaluated, stats.New, stats.Updated, stats.Retired,
				time.Since(started).Seconds())
		}
		return nil
	},
}

var valuateCmd = &cobra.Command{
	Use:   "valuate",
	Short: "Price a single prop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		v, err := valuationEng.Valuate(ctx, propIDFlag, modelFlag)
		if err != nil {
			return fmt.Errorf("valuation failed: %w", err)
		}

		fmt.Printf("Prop %d (%s)\n", v.PropID, v.ModelVersionID)
		fmt.Printf("  Fair Line:    %.4f\n", v.FairLine)
		fmt.Printf("  Offered Line: %.4f\n", v.OfferedLine)
		fmt.Printf("  P(over):      %.4f\n", v.ProbOver)
		fmt.Printf("  EV:           %+.4f\n", v.ExpectedValue)
		fmt.Printf("  Volatility:   %.4f\n", v.VolatilityScore)
		fmt.Printf("  Hash:         %s\n", v.ValuationHash)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sweep %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if err := config.LoadSecretsFromAWS(context.Background(), cfg); err != nil {
		return err
	}
	return config.Validate(cfg)
}

func setupDependencies() error {
	appLog = logger.NewLogger(cfg.App.LogLevel)
	appLog.SetLevel(logrus.WarnLevel)

	var err error
	db, err = database.Initialize(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos = repository.NewRepositories(db)

	chain := modeling.NewChainProvider(appLog,
		modeling.NewRecentLinesProvider(repos.Props),
		modeling.NewSyntheticProvider(),
	)
	registry := modeling.NewRegistry(
		time.Duration(cfg.Modeling.RegistryTTLSeconds)*time.Second, appLog)
	if err := registerBaselineModels(registry, chain); err != nil {
		return fmt.Errorf("failed to register models: %w", err)
	}

	valuationEng = valuation.NewEngine(repos.Props, repos.Predictions, repos.Valuations, registry, appLog)
	edgeService = edge.NewService(repos.Edges, repos.Props, valuationEng, edge.Thresholds{
		EVMin:         cfg.Edge.EVMin,
		ProbOverMin:   cfg.Edge.ProbOverMin,
		ProbOverMax:   cfg.Edge.ProbOverMax,
		VolatilityMax: cfg.Edge.VolatilityMax,
	}, events.NewLogPublisher(appLog), appLog)

	return nil
}

func registerBaselineModels(registry *modeling.Registry, provider modeling.HistoricalStatsProvider) error {
	params := modeling.ModelParams{
		LookbackGames:  cfg.Modeling.LookbackGames,
		SeasonalFactor: cfg.Modeling.SeasonalFactor,
		Dispersion:     cfg.Modeling.Dispersion,
	}

	type family struct {
		versionID string
		build     func() (modeling.Model, error)
	}
	families := []family{
		{"baseline_poisson_v1", func() (modeling.Model, error) {
			return modeling.NewPoissonModel("baseline_poisson_v1", provider, params), nil
		}},
		{"baseline_normal_v1", func() (modeling.Model, error) {
			return modeling.NewNormalModel("baseline_normal_v1", provider, params), nil
		}},
		{"baseline_negbin_v1", func() (modeling.Model, error) {
			return modeling.NewNegativeBinomialModel("baseline_negbin_v1", provider, params), nil
		}},
		{"baseline_binomial_v1", func() (modeling.Model, error) {
			return modeling.NewBinomialModel("baseline_binomial_v1", provider, params), nil
		}},
	}
	for _, f := range families {
		if err := registry.RegisterModel(f.versionID, f.build); err != nil {
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
