package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/solatis/framekeeper/internal/core/db"
	"github.com/solatis/framekeeper/internal/failure"
	"github.com/solatis/framekeeper/internal/types"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <input.csv|input.parquet>",
	Short: "Validate a table against a catalog schema",
	Long: `Filters the input with the named schema and prints per-rule failure counts.

CSV input is always cast to the schema types, since CSV carries no types.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("schema", "", "schema name in the catalog (required)")
	validateCmd.Flags().Bool("cast", false, "cast columns to the schema types before validating")
	validateCmd.Flags().String("out", "", "write valid rows to this .csv or .parquet file")
	validateCmd.Flags().String("failures-out", "", "write failing rows with rule outcomes to this .parquet file")
	validateCmd.Flags().Bool("strict", false, "exit with an error if any row fails")
	validateCmd.Flags().Bool("record", false, "record the run in the run store")
	validateCmd.MarkFlagRequired("schema")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input := args[0]
	schemaName, _ := cmd.Flags().GetString("schema")
	cast, _ := cmd.Flags().GetBool("cast")
	out, _ := cmd.Flags().GetString("out")
	failuresOut, _ := cmd.Flags().GetString("failures-out")
	strict, _ := cmd.Flags().GetBool("strict")
	record, _ := cmd.Flags().GetBool("record")

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

	t, f, err := readTable(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	if f == formatCSV {
		cast = true
	}

	valid, info, err := sch.Filter(t, cast)
	if err != nil {
		return err
	}

	if out != "" {
		if err := writeTable(cmd.OutOrStdout(), out, valid); err != nil {
			return fmt.Errorf("failed to write valid rows: %w", err)
		}
	}
	var runID types.RunID
	if failuresOut != "" || record {
		runID = types.NewRunID()
	}
	if failuresOut != "" {
		if err := info.WriteFile(failuresOut, map[string]string{"framekeeper.run_id": string(runID)}); err != nil {
			return fmt.Errorf("failed to write failures: %w", err)
		}
	}
	if record {
		store, err := openStore(ctx, true)
		if err != nil {
			return err
		}
		defer store.Close()
		source := input
		if failuresOut != "" {
			source = failuresOut
		}
		if _, err := store.RecordRun(ctx, db.RunRecord{
			ID: runID, Source: source, ValidRows: valid.NumRows(), Cast: cast, Failures: info,
		}); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	if out != "-" {
		printSummary(cmd.OutOrStdout(), schemaName, valid.NumRows(), info, runID)
	}
	if strict && info.Len() > 0 {
		return &types.RuleValidationError{Counts: info.Counts()}
	}
	return nil
}

func printSummary(w io.Writer, schemaName string, valid int, info *failure.Info, runID types.RunID) {
	fmt.Fprintf(w, "schema %s: %d valid, %d failed\n", schemaName, valid, info.Len())
	if runID != "" {
		fmt.Fprintf(w, "run %s\n", runID)
	}
	counts := info.Counts()
	if len(counts) == 0 {
		return
	}
	rules := make([]string, 0, len(counts))
	for r := range counts {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		if counts[rules[i]] != counts[rules[j]] {
			return counts[rules[i]] > counts[rules[j]]
		}
		return rules[i] < rules[j]
	})
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tFAILURES")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%d\n", r, counts[r])
	}
	tw.Flush()
}
