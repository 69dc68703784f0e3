// File: cmd/checkpoints.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

// newCheckpointsCmd creates the `checkpoints` command for inspecting and
// pruning saved resume points.
func newCheckpointsCmd() *cobra.Command {
	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Lists saved sequence checkpoints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := configFromContext(cmd)
			if err != nil {
				return err
			}

			checkpoints, err := sequencer.NewCheckpointStore(cfg.Checkpoint.Dir, logger)
			if err != nil {
				return fmt.Errorf("failed to open checkpoint store: %w", err)
			}

			if sweep, _ := cmd.Flags().GetBool("sweep"); sweep {
				maxAge, _ := cmd.Flags().GetDuration("max-age")
				if maxAge <= 0 {
					maxAge = cfg.Checkpoint.MaxAge
				}
				removed, err := checkpoints.Sweep(maxAge)
				if err != nil {
					return fmt.Errorf("checkpoint sweep failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoint(s) older than %s\n", removed, maxAge)
				return nil
			}

			list, err := checkpoints.List()
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints saved.")
				return nil
			}

			for _, cp := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  goal %d/%d  updated %s  %s\n",
					cp.SequenceID,
					cp.CurrentIndex, cp.TotalGoals,
					cp.UpdatedAt.Local().Format(time.RFC3339),
					firstWords(cp.OriginalPrompt, 8),
				)
			}
			return nil
		},
	}

	checkpointsCmd.Flags().Bool("sweep", false, "Delete checkpoints older than --max-age instead of listing.")
	checkpointsCmd.Flags().Duration("max-age", 0, "Age threshold for --sweep. Defaults to checkpoint.max_age from config.")

	return checkpointsCmd
}
