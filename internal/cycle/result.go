package cycle

import (
	"time"

	"github.com/edgard/quizbot/internal/dispatcher"
	"github.com/edgard/quizbot/internal/errs"
)

// Outcome tags a Result as a success or a failure.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// Stage names the step a cycle was in when it ended.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageDispatch Stage = "dispatch"
	StageDone     Stage = "done"
)

// Result describes one finished cycle. Err is nil exactly when Outcome is Success.
type Result struct {
	CycleID    string
	Outcome    Outcome
	Stage      Stage
	Err        error
	Receipt    dispatcher.Receipt
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether the cycle posted its poll.
func (r Result) OK() bool { return r.Outcome == Success }

// Code returns the error code of a failed cycle, or "" on success.
func (r Result) Code() string {
	if r.Err == nil {
		return ""
	}
	return errs.Code(r.Err)
}

// Duration is the wall time the cycle took.
func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
