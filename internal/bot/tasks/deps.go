// Package tasks implements the jobs run by the scheduler: posting a quiz and
// maintaining the run ledger.
package tasks

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/cycle"
	"github.com/edgard/quizbot/internal/database"
)

// CycleRunner runs one quiz cycle.
type CycleRunner interface {
	Run(ctx context.Context) cycle.Result
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Runner CycleRunner
	Config *config.Config
	Clock  clockwork.Clock
}
