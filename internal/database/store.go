package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for run ledger operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveCycleRun inserts a finished cycle into the ledger.
	SaveCycleRun(ctx context.Context, run *CycleRun) error

	// LastCycleRun returns the most recent run of task. Returns nil, nil if none exist.
	LastCycleRun(ctx context.Context, task string) (*CycleRun, error)

	// PruneCycleRuns deletes runs that started before the cutoff and returns how many were removed.
	PruneCycleRuns(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveCycleRun inserts a finished cycle into the ledger.
func (s *sqlxStore) SaveCycleRun(ctx context.Context, run *CycleRun) error {
	if run == nil {
		return fmt.Errorf("cannot save nil cycle run")
	}
	if run.CycleID == "" {
		return fmt.Errorf("cycle run must have a cycle_id")
	}
	if run.Task == "" {
		return fmt.Errorf("cycle run must have a task")
	}
	if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
		return fmt.Errorf("cycle run must have start and finish timestamps")
	}
	if run.Outcome != OutcomeSuccess && run.Outcome != OutcomeFailure {
		return fmt.Errorf("invalid cycle outcome %q", run.Outcome)
	}

	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving cycle run", "cycle_id", run.CycleID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	query := `
        INSERT INTO cycle_runs (cycle_id, task, started_at, finished_at, outcome, error_code, error_detail, poll_message_id)
        VALUES (:cycle_id, :task, :started_at, :finished_at, :outcome, :error_code, :error_detail, :poll_message_id);
    `

	result, err := tx.NamedExecContext(ctx, query, run)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving cycle run", "cycle_id", run.CycleID, "error", err)
		return fmt.Errorf("failed to save cycle run %s: %w", run.CycleID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		run.ID = id
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving cycle run", "cycle_id", run.CycleID, "error", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "cycle_id", run.CycleID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Cycle run saved", "id", run.ID, "cycle_id", run.CycleID, "outcome", run.Outcome)
	return nil
}

// LastCycleRun returns the most recent run of task, or nil when the ledger has none.
func (s *sqlxStore) LastCycleRun(ctx context.Context, task string) (*CycleRun, error) {
	var run CycleRun
	query := `
        SELECT id, cycle_id, task, started_at, finished_at, outcome, error_code, error_detail, poll_message_id
        FROM cycle_runs
        WHERE task = ?
        ORDER BY id DESC
        LIMIT 1;
    `
	err := s.db.GetContext(ctx, &run, query, task)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching last cycle run", "task", task, "error", err)
		return nil, fmt.Errorf("failed to fetch last cycle run for %s: %w", task, err)
	}
	return &run, nil
}

// PruneCycleRuns deletes runs that started before the cutoff.
func (s *sqlxStore) PruneCycleRuns(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cycle_runs WHERE started_at < ?;`, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning cycle runs", "before", before, "error", err)
		return 0, fmt.Errorf("failed to prune cycle runs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not read affected rows after pruning", "error", err)
		return 0, nil
	}
	s.logger.InfoContext(ctx, "Pruned cycle runs", "before", before, "deleted", affected)
	return affected, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM cannot run inside a transaction; only the busy timeout is set in one.
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
		return nil
	}
}

// nopStore is used when the ledger is disabled. Writes are dropped and reads find nothing.
type nopStore struct{}

// NewNopStore returns a Store that persists nothing.
func NewNopStore() Store { return nopStore{} }

func (nopStore) Ping(context.Context) error                               { return nil }
func (nopStore) SaveCycleRun(context.Context, *CycleRun) error            { return nil }
func (nopStore) LastCycleRun(context.Context, string) (*CycleRun, error)  { return nil, nil }
func (nopStore) PruneCycleRuns(context.Context, time.Time) (int64, error) { return 0, nil }
func (nopStore) RunSQLMaintenance(context.Context) error                  { return nil }
