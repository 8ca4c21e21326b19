package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/solatis/framekeeper/internal/types"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded validation runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest runs of a schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaName, _ := cmd.Flags().GetString("schema")
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), schemaName, limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tCREATED\tSOURCE\tVALID\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
				r.ID, r.CreatedAt().UTC().Format(time.RFC3339), r.Source, r.ValidRows, r.FailedRows)
		}
		return tw.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the failure statistics of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseRunID(args[0])
		if err != nil {
			return fmt.Errorf("invalid run id: %w", err)
		}
		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := store.GetReport(cmd.Context(), id)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "run %s (schema %s, source %s)\n", report.ID, report.SchemaName, report.Source)
		fmt.Fprintf(w, "%d rows: %d valid, %d failed\n", report.TotalRows, report.ValidRows, report.FailedRows)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\nFAILED RULES\tROWS")
		for _, c := range report.Cooccurrences {
			fmt.Fprintf(tw, "%s\t%d\n", strings.Join(c.Rules, " + "), c.Rows)
		}
		return tw.Flush()
	},
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than a retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		store, err := openStore(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d runs\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsPruneCmd)
	runsListCmd.Flags().String("schema", "", "schema name (required)")
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs")
	runsListCmd.MarkFlagRequired("schema")
	runsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "retention period")
}
