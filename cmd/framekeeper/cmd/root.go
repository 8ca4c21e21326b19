package cmd

import (
	"context"
	"fmt"

	"github.com/solatis/framekeeper/internal/core/catalog"
	"github.com/solatis/framekeeper/internal/core/config"
	"github.com/solatis/framekeeper/internal/core/db"
	"github.com/solatis/framekeeper/internal/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configFile  string
	catalogFile string
	dbURL       string
	logLevel    string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "framekeeper",
	Short: "FrameKeeper schema validation for columnar data",
	Long: `FrameKeeper validates tables against declarative schemas, reports why rows
fail and generates valid sample data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(logLevel, logFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "schema catalog file (overrides catalog.path)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "run store URL (sqlite://path or postgres://...), defaults to $"+config.DatabaseURLEnv)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if catalogFile != "" {
		cfg.Catalog.Path = catalogFile
	}
	return cfg, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// storeURL prefers --db-url over the environment. Empty means no store.
func storeURL() (string, error) {
	if dbURL != "" {
		return dbURL, config.ValidateDatabaseURL(dbURL)
	}
	return config.DatabaseURL("")
}

// openStore opens and migrates the run store; it returns nil without a
// configured URL unless required is set.
func openStore(ctx context.Context, required bool) (*db.Store, error) {
	url, err := storeURL()
	if err != nil {
		return nil, err
	}
	if url == "" {
		if required {
			return nil, fmt.Errorf("--db-url or %s required", config.DatabaseURLEnv)
		}
		return nil, nil
	}
	store, err := db.OpenStore(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return store, nil
}
