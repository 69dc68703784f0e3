// internal/agent/runner.go
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/results"
	"github.com/xkilldash9x/pilot-cli/internal/sequencer"
)

// Runner drives a goal sequence through an executor, checkpointing progress
// along the way. One Runner handles one sequence at a time.
type Runner struct {
	cfg         config.AgentConfig
	executor    Executor
	checkpoints *sequencer.CheckpointStore
	logger      *zap.Logger

	// cp is the single checkpoint object for the current sequence. Reusing
	// it across saves keeps checkpoint_count and created_at monotonic
	// instead of resetting them with every snapshot.
	cp *sequencer.Checkpoint
}

// NewRunner wires a runner. The checkpoint store may be nil, which disables
// persistence entirely (used by dry runs).
func NewRunner(cfg config.AgentConfig, executor Executor, checkpoints *sequencer.CheckpointStore, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:         cfg,
		executor:    executor,
		checkpoints: checkpoints,
		logger:      logger.Named("runner"),
	}
}

// Resume loads a prior checkpoint for the sequence's prompt, if one exists,
// and rehydrates the sequence from it. Returns true when progress was
// restored.
func (r *Runner) Resume(seq *sequencer.GoalSequence) bool {
	if r.checkpoints == nil {
		return false
	}
	id := sequencer.SequenceID(seq.OriginalPrompt)
	if !r.checkpoints.Exists(id) {
		return false
	}
	cp, err := r.checkpoints.Load(id)
	if err != nil {
		r.logger.Warn("Failed to load checkpoint, starting fresh",
			zap.String("sequence_id", id), zap.Error(err))
		return false
	}
	cp.RestoreToSequence(seq)
	r.cp = cp
	r.logger.Info("Resumed from checkpoint",
		zap.String("sequence_id", id),
		zap.Int("current_index", seq.CurrentIndex()),
		zap.Int("total_goals", len(seq.Goals)),
	)
	return true
}

// Run executes the sequence to its end and returns the run summary. The
// returned error is non-nil only for infrastructure failures; goal failures
// are reported through the summary.
func (r *Runner) Run(ctx context.Context, seq *sequencer.GoalSequence) (*results.RunSummary, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	log := r.logger.With(zap.String("run_id", runID))

	if r.cfg.MaxGoalRetries > 0 {
		for _, g := range seq.Goals {
			g.MaxRetries = r.cfg.MaxGoalRetries
			if g.ElseGoal != nil {
				g.ElseGoal.MaxRetries = r.cfg.MaxGoalRetries
			}
		}
	}

	log.Info("Starting run",
		zap.Int("total_goals", len(seq.Goals)),
		zap.Int("starting_index", seq.CurrentIndex()),
	)

	sinceCheckpoint := 0
	for {
		if err := ctx.Err(); err != nil {
			// Interrupted runs keep their checkpoint for a later resume.
			r.saveCheckpoint(seq, log)
			return results.Summarize(runID, seq, startedAt, time.Now().UTC()), err
		}

		goal := seq.GoalToExecute()
		if goal == nil {
			break
		}
		// slot is the sequence position being advanced; goal may be its else
		// branch, which shares the index but is a distinct object.
		slot := seq.CurrentGoal()

		goal.Status = sequencer.StatusExecuting
		log.Info("Executing goal",
			zap.Int("goal_index", goal.Index),
			zap.String("goal_type", string(goal.Type)),
			zap.String("description", goal.Description),
			zap.Int("attempt", goal.Retries+1),
		)

		outcome := r.executeWithTimeout(ctx, goal, seq.PageState)
		if !outcome.Success {
			// Advance owns the retry bookkeeping; EXECUTING goals that come
			// back for another attempt must read as PENDING again.
			goal.Status = sequencer.StatusPending
			log.Warn("Goal attempt failed",
				zap.Int("goal_index", goal.Index),
				zap.String("error", outcome.ErrText),
			)
		}

		more := seq.Advance(outcome.Success, outcome.Result, outcome.ErrText)

		// An executed else branch mirrors the final status of its slot.
		if slot != nil && goal != slot {
			goal.Status = slot.Status
			if outcome.Success {
				goal.SetResult(outcome.Result)
			}
		}

		if outcome.Success {
			sinceCheckpoint++
			if sinceCheckpoint >= r.cfg.CheckpointEvery {
				r.saveCheckpoint(seq, log)
				sinceCheckpoint = 0
			}
		}
		if !more {
			break
		}
	}

	summary := results.Summarize(runID, seq, startedAt, time.Now().UTC())
	r.finishCheckpoint(seq, summary, log)

	log.Info("Run finished",
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) executeWithTimeout(ctx context.Context, goal *sequencer.Goal, ps *sequencer.PageState) Outcome {
	if r.cfg.GoalTimeout <= 0 {
		return r.executor.Execute(ctx, goal, ps)
	}
	goalCtx, cancel := context.WithTimeout(ctx, r.cfg.GoalTimeout)
	defer cancel()
	return r.executor.Execute(goalCtx, goal, ps)
}

func (r *Runner) saveCheckpoint(seq *sequencer.GoalSequence, log *zap.Logger) {
	if r.checkpoints == nil {
		return
	}
	if r.cp == nil {
		// Pick up an existing file first so the save counter continues
		// where a prior process left off.
		if existing, err := r.checkpoints.Load(sequencer.SequenceID(seq.OriginalPrompt)); err == nil {
			r.cp = existing
		} else {
			r.cp = sequencer.CheckpointFromSequence(seq)
		}
	}
	r.cp.RefreshFromSequence(seq)
	if err := r.checkpoints.Save(r.cp); err != nil {
		// Checkpointing is best-effort; the run itself continues.
		log.Warn("Failed to save checkpoint", zap.Error(err))
	}
}

// finishCheckpoint deletes the checkpoint after a clean run and keeps it
// around after failures so the run can be resumed or inspected.
func (r *Runner) finishCheckpoint(seq *sequencer.GoalSequence, summary *results.RunSummary, log *zap.Logger) {
	if r.checkpoints == nil {
		return
	}
	id := sequencer.SequenceID(seq.OriginalPrompt)
	if summary.Failed == 0 {
		if err := r.checkpoints.Delete(id); err != nil {
			log.Warn("Failed to delete checkpoint after clean run", zap.Error(err))
		}
		return
	}
	r.saveCheckpoint(seq, log)
}
