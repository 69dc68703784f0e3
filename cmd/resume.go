// File: cmd/resume.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

// newResumeCmd creates the `resume` command, which restarts an interrupted
// sequence from its saved checkpoint.
func newResumeCmd(v *viper.Viper) *cobra.Command {
	resumeCmd := &cobra.Command{
		Use:   "resume [sequence-id]",
		Short: "Resumes an interrupted goal sequence from its checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to finalize config: %w", err)
			}

			checkpoints, err := sequencer.NewCheckpointStore(cfg.Checkpoint.Dir, logger)
			if err != nil {
				return fmt.Errorf("failed to open checkpoint store: %w", err)
			}

			latest, _ := cmd.Flags().GetBool("latest")
			sequenceID, err := pickSequenceID(checkpoints, args, latest)
			if err != nil {
				return err
			}

			cp, err := checkpoints.Load(sequenceID)
			if err != nil {
				return fmt.Errorf("no checkpoint for sequence %s: %w", sequenceID, err)
			}

			// Re-parse the original instruction, then rehydrate progress. The
			// parse is deterministic, so the goal list lines up with the
			// indices recorded in the checkpoint.
			seq := sequencer.NewGoalSequencer(logger).Parse(cp.OriginalPrompt)
			cp.RestoreToSequence(seq)

			fmt.Fprintf(cmd.OutOrStdout(), "Resuming %q from goal %d of %d\n",
				firstWords(cp.OriginalPrompt, 8), seq.CurrentIndex(), len(seq.Goals))

			outputPath, _ := cmd.Flags().GetString("output")
			return executeSequence(ctx, cmd, cfg, seq, logger, runOptions{output: outputPath})
		},
	}

	resumeCmd.Flags().Bool("latest", false, "Resume the most recently updated checkpoint.")
	resumeCmd.Flags().StringP("output", "o", "", "Write the run summary as JSON to this path.")

	return resumeCmd
}

// pickSequenceID resolves which checkpoint to resume.
func pickSequenceID(checkpoints *sequencer.CheckpointStore, args []string, latest bool) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if !latest {
		return "", fmt.Errorf("pass a sequence ID or use --latest; `pilot checkpoints` lists what is available")
	}
	list, err := checkpoints.List()
	if err != nil {
		return "", fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(list) == 0 {
		return "", fmt.Errorf("no checkpoints to resume")
	}
	return list[0].SequenceID, nil
}

// firstWords truncates a prompt for display.
func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s
	}
	return strings.Join(fields[:n], " ") + "..."
}
