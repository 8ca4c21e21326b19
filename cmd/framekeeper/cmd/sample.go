package cmd

import (
	"fmt"
	"log/slog"

	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/schema"
	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate rows that pass a catalog schema",
	RunE:  runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().String("schema", "", "schema name in the catalog (required)")
	sampleCmd.Flags().Int("rows", 10, "number of rows (negative: one per override row)")
	sampleCmd.Flags().Uint64("seed", 0, "random seed (0 uses sampling.seed, then a random seed)")
	sampleCmd.Flags().String("overrides", "", "fix column values from this .csv or .parquet file, one row per sampled row")
	sampleCmd.Flags().String("out", "-", "output .csv or .parquet file, - for CSV on stdout")
	sampleCmd.MarkFlagRequired("schema")
}

func runSample(cmd *cobra.Command, args []string) error {
	schemaName, _ := cmd.Flags().GetString("schema")
	rows, _ := cmd.Flags().GetInt("rows")
	seed, _ := cmd.Flags().GetUint64("seed")
	overridesPath, _ := cmd.Flags().GetString("overrides")
	out, _ := cmd.Flags().GetString("out")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	sch, err := cat.Get(schemaName)
	if err != nil {
		return err
	}

	opts := schema.SampleOptions{MaxIterations: cfg.Sampling.MaxIterations}
	if seed == 0 {
		seed = cfg.Sampling.Seed
	}
	if seed != 0 {
		opts.Generator = random.New(seed)
	}
	if overridesPath != "" {
		overrides, _, err := readTable(cmd.Context(), overridesPath)
		if err != nil {
			return fmt.Errorf("failed to read overrides: %w", err)
		}
		opts.Overrides = overrides
	}

	sampled, err := sch.Sample(rows, opts)
	if err != nil {
		return err
	}
	slog.Debug("Sampled rows", "schema", schemaName, "rows", sampled.NumRows(), "seed", seed)
	return writeTable(cmd.OutOrStdout(), out, sampled)
}
