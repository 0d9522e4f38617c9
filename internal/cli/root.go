// Package cli provides the command-line interface for miteguard.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/futonlab/miteguard/internal/config"
	"github.com/futonlab/miteguard/internal/db"
	"github.com/futonlab/miteguard/internal/forecast"
	"github.com/futonlab/miteguard/internal/predictor"
	"github.com/futonlab/miteguard/internal/service"
	"github.com/futonlab/miteguard/internal/window"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client

	// Lazy-initialized coordinator
	coordinator *service.Coordinator
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "miteguard",
	Short: "Mite-risk tracking and drying scheduler for bedding",
	Long: `Miteguard tracks the dust-mite risk of futons and bedding over time,
finds weather windows suitable for sun-drying, and coordinates both
self-service drying and helper-assisted drying orders.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, nil)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
	},
}

// getCoordinator builds the engine coordinator with lazy predictor
// initialization. Commands that need outcome predictions pass requireLLM
// so an AI-backed predictor is wired when one is configured.
func getCoordinator(requireLLM bool) (*service.Coordinator, error) {
	if coordinator != nil {
		return coordinator, nil
	}

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}

	var pred predictor.Predictor = predictor.Fallback{}
	if requireLLM && cfg.LLMProvider != "" {
		model, err := predictor.NewModel(predictor.ModelConfig{
			Provider:        cfg.LLMProvider,
			Model:           cfg.LLMModel,
			OllamaHost:      cfg.OllamaHost,
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init predictor model: %w", err)
		}
		pred = predictor.NewLLM(model, nil)
	}

	coordinator = service.NewCoordinator(service.Deps{
		Store:     dbClient,
		Forecast:  forecast.NewClient(cfg.ForecastURL),
		Predictor: pred,
		Finder:    window.NewFinder(tuning),
		RadiusKm:  cfg.DefaultRadiusKm,
	})
	return coordinator, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(tickCmd)
}
