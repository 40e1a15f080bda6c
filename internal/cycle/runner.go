// Package cycle runs a single generate-then-dispatch attempt and reports it as a Result.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/quizbot/internal/database"
	"github.com/edgard/quizbot/internal/dispatcher"
	"github.com/edgard/quizbot/internal/errs"
	"github.com/edgard/quizbot/internal/logger"
	"github.com/edgard/quizbot/internal/quiz"
)

// State of a Runner.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrBusy is returned in a failed Result when Run is called while a cycle is in flight.
var ErrBusy = errors.New("a quiz cycle is already running")

const recordTimeout = 5 * time.Second

// QuestionSource produces one question per call.
type QuestionSource interface {
	Generate(ctx context.Context) (*quiz.Question, error)
}

// Publisher posts a question to a channel.
type Publisher interface {
	Dispatch(ctx context.Context, channelID string, q *quiz.Question) (dispatcher.Receipt, error)
}

// Recorder stores finished cycles in the run ledger.
type Recorder interface {
	SaveCycleRun(ctx context.Context, run *database.CycleRun) error
}

// Runner executes cycles. Only one cycle runs at a time.
type Runner struct {
	source    QuestionSource
	publisher Publisher
	recorder  Recorder
	channelID string
	task      string
	clock     clockwork.Clock
	log       *slog.Logger
	state     atomic.Int32
}

// NewRunner wires a Runner. A nil recorder disables the ledger and a nil clock uses the real one.
func NewRunner(
	source QuestionSource,
	publisher Publisher,
	recorder Recorder,
	channelID string,
	task string,
	clock clockwork.Clock,
	log *slog.Logger,
) *Runner {
	if recorder == nil {
		recorder = database.NewNopStore()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		source:    source,
		publisher: publisher,
		recorder:  recorder,
		channelID: channelID,
		task:      task,
		clock:     clock,
		log:       log.With("component", "cycle"),
	}
}

// State reports whether a cycle is in flight.
func (r *Runner) State() State { return State(r.state.Load()) }

// Run performs one cycle. It never panics and never returns an error directly;
// every failure is carried by the returned Result.
func (r *Runner) Run(ctx context.Context) Result {
	res := Result{
		CycleID:   uuid.NewString(),
		StartedAt: r.clock.Now(),
	}

	if !r.state.CompareAndSwap(int32(Idle), int32(Running)) {
		res.Outcome, res.Stage, res.Err = Failure, StageGenerate, ErrBusy
		res.FinishedAt = res.StartedAt
		r.log.WarnContext(ctx, "Skipping quiz cycle, previous one still running", "cycle_id", res.CycleID)
		return res
	}
	defer r.state.Store(int32(Idle))

	log := r.log.With("cycle_id", res.CycleID)
	log.InfoContext(ctx, "Starting quiz cycle", "channel_id", r.channelID)

	r.execute(ctx, &res)
	res.FinishedAt = r.clock.Now()

	if res.OK() {
		log.InfoContext(ctx, "Quiz cycle succeeded",
			"poll_message_id", res.Receipt.PollMessageID,
			"duration", res.Duration())
	} else {
		log.ErrorContext(ctx, "Quiz cycle failed",
			"stage", res.Stage,
			"error_code", res.Code(),
			"error", res.Err,
			"duration", res.Duration())
	}

	r.record(ctx, log, res)
	return res
}

func (r *Runner) execute(ctx context.Context, res *Result) {
	res.Stage = StageGenerate
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = Failure
			res.Err = fmt.Errorf("quiz cycle panicked during %s: %v", res.Stage, p)
		}
	}()

	q, err := r.source.Generate(ctx)
	if err != nil {
		res.Outcome, res.Err = Failure, err
		return
	}

	res.Stage = StageDispatch
	receipt, err := r.publisher.Dispatch(ctx, r.channelID, q)
	res.Receipt = receipt
	if err != nil {
		res.Outcome, res.Err = Failure, err
		return
	}

	res.Stage = StageDone
	res.Outcome = Success
}

// record writes res to the ledger even when ctx was cancelled by shutdown.
func (r *Runner) record(ctx context.Context, log *slog.Logger, res Result) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	run := &database.CycleRun{
		CycleID:       res.CycleID,
		Task:          r.task,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		Outcome:       string(res.Outcome),
		PollMessageID: int64(res.Receipt.PollMessageID),
	}
	if res.Err != nil {
		run.ErrorCode = res.Code()
		run.ErrorDetail = logger.Truncate(res.Err.Error(), 500)
	}

	if err := r.recorder.SaveCycleRun(recCtx, run); err != nil {
		log.WarnContext(ctx, "Failed to record quiz cycle", "error", errs.NewDatabaseError("save cycle run", err))
	}
}

// NextStart returns when a task last started at last should run next, given
// its interval. Missed or unknown runs are due at now.
func NextStart(last time.Time, interval time.Duration, now time.Time) time.Time {
	if last.IsZero() || interval <= 0 {
		return now
	}
	next := last.Add(interval)
	if !next.After(now) {
		return now
	}
	return next
}
