// File: cmd/history.go
package cmd

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/store"
)

// newHistoryCmd creates the `history` command for browsing past runs
// recorded in the optional database.
func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Shows recent runs from the run-history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("run history requires a database; set database.url or PILOT_DATABASE_URL")
			}

			pool, err := pgxpool.New(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			dbStore, err := store.New(ctx, pool, logger)
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := dbStore.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}

			for _, r := range runs {
				status := "ok"
				if r.Failed > 0 {
					status = fmt.Sprintf("%d failed", r.Failed)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d/%d goals  %s  %s\n",
					r.FinishedAt.Local().Format(time.RFC3339),
					r.RunID,
					r.Completed, r.TotalGoals,
					status,
					firstWords(r.Prompt, 8),
				)
			}
			return nil
		},
	}

	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show.")

	return historyCmd
}
