package tasks

import (
	"context"
	"fmt"
)

// newQuizPollTask creates the task that generates and posts one quiz per run.
// A failed cycle is returned as an error for the scheduler to log; the job stays scheduled.
func newQuizPollTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "quiz_poll")

	return func(ctx context.Context) error {
		res := deps.Runner.Run(ctx)
		if !res.OK() {
			return fmt.Errorf("quiz cycle %s failed at %s: %w", res.CycleID, res.Stage, res.Err)
		}
		log.DebugContext(ctx, "Quiz posted", "cycle_id", res.CycleID, "poll_message_id", res.Receipt.PollMessageID)
		return nil
	}
}
