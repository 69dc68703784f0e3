// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/results"
)

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists run history to PostgreSQL. The database is optional; the
// CLI only constructs a Store when database.url is configured.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the run-history tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS runs (
            id           TEXT PRIMARY KEY,
            sequence_id  TEXT NOT NULL,
            prompt       TEXT NOT NULL,
            total_goals  INTEGER NOT NULL,
            completed    INTEGER NOT NULL,
            failed       INTEGER NOT NULL,
            skipped      INTEGER NOT NULL,
            final_url    TEXT,
            started_at   TIMESTAMPTZ NOT NULL,
            finished_at  TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS run_goals (
            run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            goal_index  INTEGER NOT NULL,
            description TEXT NOT NULL,
            goal_type   TEXT NOT NULL,
            status      TEXT NOT NULL,
            retries     INTEGER NOT NULL,
            result      TEXT,
            error       TEXT,
            PRIMARY KEY (run_id, goal_index)
        );`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create run-history schema: %w", err)
	}
	return nil
}

// RecordRun writes a finished run and its per-goal outcomes in one
// transaction.
func (s *Store) RecordRun(ctx context.Context, summary *results.RunSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is
		// the normal path, not an error.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	const insertRun = `
        INSERT INTO runs (id, sequence_id, prompt, total_goals, completed, failed, skipped, final_url, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	_, err = tx.Exec(ctx, insertRun,
		summary.RunID, summary.SequenceID, summary.Prompt,
		summary.TotalGoals, summary.Completed, summary.Failed, summary.Skipped,
		summary.FinalURL, summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", summary.RunID, err)
	}

	if len(summary.Goals) > 0 {
		rows := make([][]interface{}, len(summary.Goals))
		for i, g := range summary.Goals {
			rows[i] = []interface{}{
				summary.RunID, g.Index, g.Description, g.Type,
				g.Status, g.Retries, g.Result, g.Error,
			}
		}

		copyCount, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"run_goals"},
			[]string{"run_id", "goal_index", "description", "goal_type", "status", "retries", "result", "error"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy run goals: %w", err)
		}
		if int(copyCount) != len(summary.Goals) {
			return fmt.Errorf("mismatch in copied goal count: expected %d, got %d", len(summary.Goals), copyCount)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("Run recorded",
		zap.String("run_id", summary.RunID),
		zap.Int("goals", len(summary.Goals)),
	)
	return nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*results.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, sequence_id, prompt, total_goals, completed, failed, skipped, final_url, started_at, finished_at
        FROM runs ORDER BY finished_at DESC LIMIT $1;`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*results.RunSummary
	for rows.Next() {
		var r results.RunSummary
		if err := rows.Scan(
			&r.RunID, &r.SequenceID, &r.Prompt,
			&r.TotalGoals, &r.Completed, &r.Failed, &r.Skipped,
			&r.FinalURL, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Duration = r.FinishedAt.Sub(r.StartedAt)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading run rows: %w", err)
	}
	return out, nil
}
