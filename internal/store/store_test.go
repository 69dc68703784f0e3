// File: internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pilot-cli/internal/results"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

const sqlInsertRun = `
        INSERT INTO runs (id, sequence_id, prompt, total_goals, completed, failed, skipped, final_url, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

var runGoalColumns = []string{"run_id", "goal_index", "description", "goal_type", "status", "retries", "result", "error"}

func sampleSummary() *results.RunSummary {
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)
	return &results.RunSummary{
		RunID:      uuid.NewString(),
		SequenceID: "a1b2c3d4e5f60718",
		Prompt:     "go to example.com then extract the heading",
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
		TotalGoals: 2,
		Completed:  2,
		FinalURL:   "https://example.com/",
		Goals: []results.GoalOutcome{
			{Index: 0, Description: "go to example.com", Type: "ACTION", Status: "COMPLETED", Result: "Now at https://example.com/"},
			{Index: 1, Description: "extract the heading", Type: "ACTION", Status: "COMPLETED", Retries: 1, Result: "Example Domain"},
		},
	}
}

// -- Test Cases --

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	mockPool.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a run and its goals without rollback errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		observedLogger := zap.New(observedZapCore)

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(context.Background(), mockPool, observedLogger)
		require.NoError(t, err)

		summary := sampleSummary()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				summary.RunID, summary.SequenceID, summary.Prompt,
				summary.TotalGoals, summary.Completed, summary.Failed, summary.Skipped,
				summary.FinalURL, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_goals"}, runGoalColumns).
			WillReturnResult(int64(len(summary.Goals)))

		// Expect Commit AND the subsequent Rollback (which returns ErrTxClosed)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.RecordRun(ctx, summary))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should skip CopyFrom when the run has no goals", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		summary := sampleSummary()
		summary.Goals = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				summary.RunID, summary.SequenceID, summary.Prompt,
				summary.TotalGoals, summary.Completed, summary.Failed, summary.Skipped,
				summary.FinalURL, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.RecordRun(ctx, summary))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the run insert fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		summary := sampleSummary()
		insertErr := errors.New("duplicate key value")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				summary.RunID, summary.SequenceID, summary.Prompt,
				summary.TotalGoals, summary.Completed, summary.Failed, summary.Skipped,
				summary.FinalURL, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
			).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		err = store.RecordRun(ctx, summary)
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail when the copied goal count does not match", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		summary := sampleSummary()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				summary.RunID, summary.SequenceID, summary.Prompt,
				summary.TotalGoals, summary.Completed, summary.Failed, summary.Skipped,
				summary.FinalURL, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_goals"}, runGoalColumns).
			WillReturnResult(1)
		mockPool.ExpectRollback()

		err = store.RecordRun(ctx, summary)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied goal count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRecentRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("should scan rows and compute durations", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		finished := started.Add(90 * time.Second)

		rows := pgxmock.NewRows([]string{
			"id", "sequence_id", "prompt", "total_goals", "completed", "failed", "skipped", "final_url", "started_at", "finished_at",
		}).
			AddRow("run-2", "seq-b", "check my mail", 1, 1, 0, 0, "https://mail.example.com/", started, finished).
			AddRow("run-1", "seq-a", "go to example.com", 3, 2, 1, 0, "https://example.com/", started, started.Add(10*time.Second))

		mockPool.ExpectQuery(`SELECT id, sequence_id, prompt`).
			WithArgs(5).
			WillReturnRows(rows)

		got, err := store.RecentRuns(ctx, 5)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "run-2", got[0].RunID)
		assert.Equal(t, "check my mail", got[0].Prompt)
		assert.Equal(t, 90*time.Second, got[0].Duration)
		assert.Equal(t, "https://example.com/", got[1].FinalURL)
		assert.Equal(t, 1, got[1].Failed)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should default the limit when non-positive", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		rows := pgxmock.NewRows([]string{
			"id", "sequence_id", "prompt", "total_goals", "completed", "failed", "skipped", "final_url", "started_at", "finished_at",
		})
		mockPool.ExpectQuery(`SELECT id, sequence_id, prompt`).
			WithArgs(20).
			WillReturnRows(rows)

		got, err := store.RecentRuns(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)

		queryErr := errors.New("connection reset")
		mockPool.ExpectQuery(`SELECT id, sequence_id, prompt`).
			WithArgs(3).
			WillReturnError(queryErr)

		_, err = store.RecentRuns(ctx, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, queryErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
