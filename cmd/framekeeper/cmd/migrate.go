package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/framekeeper/internal/core/config"
	"github.com/solatis/framekeeper/internal/core/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending run store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := db.MigrateUp(cmd.Context(), database); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List run store migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer database.Close()
		statuses, err := db.MigrateStatus(cmd.Context(), database)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MIGRATION\tAPPLIED\tAPPLIED AT\tDURATION")
		for _, s := range statuses {
			at := "-"
			if s.Applied {
				at = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\t%dms\n", s.ID, s.Applied, at, s.ExecutionMs)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// openDatabase opens the run store database without migrating it.
func openDatabase(cmd *cobra.Command) (*sqlx.DB, error) {
	url, err := storeURL()
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, fmt.Errorf("--db-url or %s required", config.DatabaseURLEnv)
	}
	return db.Open(cmd.Context(), url)
}
