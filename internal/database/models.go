package database

import "time"

// Cycle outcomes as stored in cycle_runs.outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CycleRun records when a scheduled cycle ran and how it ended. It carries no
// question content; the ledger exists to restore the schedule phase after a restart.
type CycleRun struct {
	ID            int64     `db:"id"`
	CycleID       string    `db:"cycle_id"`
	Task          string    `db:"task"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
	Outcome       string    `db:"outcome"`
	ErrorCode     string    `db:"error_code"`
	ErrorDetail   string    `db:"error_detail"`
	PollMessageID int64     `db:"poll_message_id"`
}
