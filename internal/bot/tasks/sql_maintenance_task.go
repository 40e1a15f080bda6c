package tasks

import (
	"context"
	"fmt"
)

// newSQLMaintenanceTask creates the task that prunes old ledger rows and vacuums the database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		startTime := deps.Clock.Now()

		if deps.Config != nil && deps.Config.Database.Retention > 0 {
			cutoff := startTime.Add(-deps.Config.Database.Retention)
			if _, err := deps.Store.PruneCycleRuns(ctx, cutoff); err != nil {
				log.ErrorContext(ctx, "Pruning cycle runs failed", "error", err)
				return fmt.Errorf("prune cycle runs: %w", err)
			}
		}

		err := deps.Store.RunSQLMaintenance(ctx)
		duration := deps.Clock.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", duration)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled SQL maintenance task completed successfully", "duration", duration)
		return nil
	}
}
