// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/llmclient"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/results"
	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
	"github.com/xkilldash9x/pilot-cli/internal/store"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd(v *viper.Viper) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [instruction...]",
		Short: "Parses a plain-language instruction into goals and executes them in a browser",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their corresponding Viper keys so command-line
			// flags correctly override values from the config file and
			// environment variables.
			if err := v.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := v.BindPFlag("agent.dry_run", cmd.Flags().Lookup("dry-run")); err != nil {
				return err
			}
			return v.BindPFlag("agent.max_goal_retries", cmd.Flags().Lookup("max-retries"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-read the config now that PreRunE has bound the flag
			// overrides into viper.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to finalize config with flag overrides: %w", err)
			}

			promptFile, _ := cmd.Flags().GetString("file")
			prompt, err := resolvePrompt(args, promptFile)
			if err != nil {
				return err
			}

			seq := sequencer.NewGoalSequencer(logger).Parse(prompt)
			if cfg.Agent.DryRun {
				fmt.Fprint(cmd.OutOrStdout(), renderPlan(seq))
				return nil
			}

			outputPath, _ := cmd.Flags().GetString("output")
			resumeFlag, _ := cmd.Flags().GetBool("resume")
			forever, _ := cmd.Flags().GetBool("forever")
			interval, _ := cmd.Flags().GetDuration("interval")

			opts := runOptions{
				output: outputPath,
				resume: resumeFlag,
			}

			if !forever {
				return executeSequence(ctx, cmd, cfg, seq, logger, opts)
			}

			// Repeated execution is paced by a limiter rather than a plain
			// ticker so the first iteration starts immediately.
			limiter := rate.NewLimiter(rate.Every(interval), 1)
			for {
				if err := limiter.Wait(ctx); err != nil {
					logger.Info("Stopping repeated run", zap.Error(err))
					return nil
				}
				// A fresh parse each round; goal statuses are not reusable
				// across runs.
				seq := sequencer.NewGoalSequencer(logger).Parse(prompt)
				if err := executeSequence(ctx, cmd, cfg, seq, logger, opts); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					logger.Warn("Run iteration failed", zap.Error(err))
				}
			}
		},
	}

	runCmd.Flags().StringP("file", "F", "", "Read the instruction from a file instead of arguments.")
	runCmd.Flags().StringP("output", "o", "", "Write the run summary as JSON to this path.")
	runCmd.Flags().Bool("resume", false, "Resume from a checkpoint of the same instruction, if one exists.")
	runCmd.Flags().Bool("forever", false, "Re-execute the instruction repeatedly until interrupted.")
	runCmd.Flags().Duration("interval", 5*time.Minute, "Delay between repeated executions with --forever.")

	// Config override flags.
	runCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	runCmd.Flags().Bool("dry-run", false, "Print the parsed goal plan without launching a browser.")
	runCmd.Flags().IntP("max-retries", "r", 0, "Per-goal retry budget override. (Overrides config/env)")

	return runCmd
}

// runOptions carries the per-invocation settings that are not config.
type runOptions struct {
	output string
	resume bool
}

// resolvePrompt picks the instruction text from args or a file.
func resolvePrompt(args []string, promptFile string) (string, error) {
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return "", fmt.Errorf("failed to read instruction file: %w", err)
		}
		prompt := strings.TrimSpace(string(data))
		if prompt == "" {
			return "", fmt.Errorf("instruction file %q is empty", promptFile)
		}
		return prompt, nil
	}
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return "", fmt.Errorf("no instruction given; pass it as arguments or via --file")
	}
	return prompt, nil
}

// renderPlan formats the parsed goals for a dry run.
func renderPlan(seq *sequencer.GoalSequence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Parsed %d goal(s) from: %s\n", len(seq.Goals), seq.OriginalPrompt)
	for _, g := range seq.Goals {
		fmt.Fprintf(&b, "  [%d] %-11s %s\n", g.Index, g.Type, g.Description)
		if g.Condition != nil {
			fmt.Fprintf(&b, "      if: %s\n", g.Condition.Check)
		}
		if g.ElseGoal != nil {
			fmt.Fprintf(&b, "      else: %s\n", g.ElseGoal.Description)
		}
	}
	return b.String()
}

// executeSequence wires the browser, LLM and checkpoint store together and
// drives one sequence to completion.
func executeSequence(ctx context.Context, cmd *cobra.Command, cfg *config.Config, seq *sequencer.GoalSequence, logger *zap.Logger, opts runOptions) error {
	checkpoints, err := sequencer.NewCheckpointStore(cfg.Checkpoint.Dir, logger)
	if err != nil {
		// Checkpointing is best-effort; a run without it is still a run.
		logger.Warn("Checkpoint store unavailable, continuing without resume support", zap.Error(err))
		checkpoints = nil
	}

	llm, err := llmclient.NewClient(cfg.Agent.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	session, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Error closing browser session", zap.Error(err))
		}
	}()

	executor := agent.NewBrowserExecutor(session, llm, logger)
	runner := agent.NewRunner(cfg.Agent, executor, checkpoints, logger)

	if opts.resume {
		if runner.Resume(seq) {
			logger.Info("Resumed from checkpoint",
				zap.String("sequence_id", sequencer.SequenceID(seq.OriginalPrompt)),
				zap.Int("current_index", seq.CurrentIndex()),
			)
		} else {
			logger.Info("No checkpoint found, starting from the beginning")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// Expire stale checkpoints in the background while the run proceeds.
	if checkpoints != nil && cfg.Checkpoint.MaxAge > 0 {
		g.Go(func() error {
			if removed, err := checkpoints.Sweep(cfg.Checkpoint.MaxAge); err != nil {
				logger.Warn("Checkpoint sweep failed", zap.Error(err))
			} else if removed > 0 {
				logger.Debug("Swept expired checkpoints", zap.Int("removed", removed))
			}
			return nil
		})
	}

	var summary *results.RunSummary
	g.Go(func() error {
		var runErr error
		summary, runErr = runner.Run(gctx, seq)
		return runErr
	})

	runErr := g.Wait()
	if summary == nil {
		return runErr
	}

	fmt.Fprint(cmd.OutOrStdout(), summary.Render())

	if opts.output != "" {
		if err := writeSummaryFile(opts.output, summary); err != nil {
			return err
		}
		logger.Info("Run summary written", zap.String("path", opts.output))
	}

	if cfg.Database.URL != "" {
		if err := recordRun(ctx, cfg, summary, logger); err != nil {
			// History persistence never fails the run itself.
			logger.Warn("Failed to record run history", zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if !summary.Succeeded() {
		return fmt.Errorf("run %s finished with %d failed goal(s)", summary.RunID, summary.Failed)
	}
	return nil
}

// writeSummaryFile exports the summary JSON to disk.
func writeSummaryFile(path string, summary *results.RunSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer f.Close()
	if err := summary.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to write summary JSON: %w", err)
	}
	return nil
}

// recordRun persists the summary to the optional run-history database.
func recordRun(ctx context.Context, cfg *config.Config, summary *results.RunSummary, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	dbStore, err := store.New(ctx, pool, logger)
	if err != nil {
		return err
	}
	if err := dbStore.EnsureSchema(ctx); err != nil {
		return err
	}
	return dbStore.RecordRun(ctx, summary)
}
