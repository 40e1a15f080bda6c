package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/quizbot/internal/database"
	"github.com/edgard/quizbot/internal/dispatcher"
	"github.com/edgard/quizbot/internal/errs"
	"github.com/edgard/quizbot/internal/quiz"
)

type fakeSource struct {
	q     *quiz.Question
	err   error
	panic bool
	clock *clockwork.FakeClock
	calls int
}

func (f *fakeSource) Generate(context.Context) (*quiz.Question, error) {
	f.calls++
	if f.clock != nil {
		f.clock.Advance(2 * time.Second)
	}
	if f.panic {
		panic("boom")
	}
	return f.q, f.err
}

type fakePublisher struct {
	receipt   dispatcher.Receipt
	err       error
	channelID string
	got       *quiz.Question
	calls     int
	block     chan struct{}
	entered   chan struct{}
}

func (f *fakePublisher) Dispatch(_ context.Context, channelID string, q *quiz.Question) (dispatcher.Receipt, error) {
	f.calls++
	f.channelID = channelID
	f.got = q
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.receipt, f.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []*database.CycleRun
	err  error
}

func (f *fakeRecorder) SaveCycleRun(_ context.Context, run *database.CycleRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

func sampleQuestion() *quiz.Question {
	return &quiz.Question{
		Stem:         "What is the capital of India?",
		Options:      []string{"Mumbai", "New Delhi", "Kolkata", "Chennai"},
		CorrectIndex: 1,
		Explanation:  "New Delhi is the capital.",
	}
}

func TestRunSuccess(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	source := &fakeSource{q: sampleQuestion(), clock: clock}
	pub := &fakePublisher{receipt: dispatcher.Receipt{PollMessageID: 42}}
	rec := &fakeRecorder{}

	r := NewRunner(source, pub, rec, "@channel", "quiz_poll", clock, nil)
	res := r.Run(context.Background())

	if !res.OK() || res.Err != nil {
		t.Fatalf("Run() = %+v, want success", res)
	}
	if res.Stage != StageDone {
		t.Errorf("Stage = %q, want %q", res.Stage, StageDone)
	}
	if res.Duration() != 2*time.Second {
		t.Errorf("Duration() = %v, want 2s", res.Duration())
	}
	if res.CycleID == "" {
		t.Error("CycleID is empty")
	}
	if pub.channelID != "@channel" || pub.got != source.q {
		t.Errorf("Dispatch got channel %q question %p, want @channel %p", pub.channelID, pub.got, source.q)
	}
	if r.State() != Idle {
		t.Errorf("State() = %v after cycle, want idle", r.State())
	}

	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(rec.runs))
	}
	run := rec.runs[0]
	if run.Outcome != database.OutcomeSuccess || run.PollMessageID != 42 || run.Task != "quiz_poll" || run.CycleID != res.CycleID {
		t.Errorf("recorded run = %+v", run)
	}
}

func TestRunFailures(t *testing.T) {
	genErr := errs.NewGenerationParseError("no correct-answer marker", "Q: x")
	apiErr := errs.NewGenerationAPIError("openai", 500, "server error", nil)
	authErr := errs.NewDispatchAuthError("@channel", "bot is not an admin", nil)

	tests := []struct {
		name      string
		source    *fakeSource
		publisher *fakePublisher
		wantStage Stage
		wantCode  string
		dispatch  int
	}{
		{
			name:      "parse error skips dispatch",
			source:    &fakeSource{err: genErr},
			publisher: &fakePublisher{},
			wantStage: StageGenerate,
			wantCode:  errs.CodeGenerationParse,
		},
		{
			name:      "api error skips dispatch",
			source:    &fakeSource{err: apiErr},
			publisher: &fakePublisher{},
			wantStage: StageGenerate,
			wantCode:  errs.CodeGenerationAPI,
		},
		{
			name:      "dispatch auth error",
			source:    &fakeSource{q: sampleQuestion()},
			publisher: &fakePublisher{err: authErr},
			wantStage: StageDispatch,
			wantCode:  errs.CodeDispatchAuth,
			dispatch:  1,
		},
		{
			name:      "panic is recovered",
			source:    &fakeSource{panic: true},
			publisher: &fakePublisher{},
			wantStage: StageGenerate,
			wantCode:  errs.CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			r := NewRunner(tt.source, tt.publisher, rec, "@channel", "quiz_poll", clockwork.NewFakeClock(), nil)

			res := r.Run(context.Background())

			if res.OK() || res.Err == nil {
				t.Fatalf("Run() = %+v, want failure", res)
			}
			if res.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", res.Stage, tt.wantStage)
			}
			if res.Code() != tt.wantCode {
				t.Errorf("Code() = %q, want %q", res.Code(), tt.wantCode)
			}
			if tt.publisher.calls != tt.dispatch {
				t.Errorf("Dispatch calls = %d, want %d", tt.publisher.calls, tt.dispatch)
			}
			if r.State() != Idle {
				t.Errorf("State() = %v after failed cycle, want idle", r.State())
			}
			if len(rec.runs) != 1 || rec.runs[0].Outcome != database.OutcomeFailure || rec.runs[0].ErrorCode != tt.wantCode {
				t.Errorf("recorded runs = %+v", rec.runs)
			}
		})
	}
}

func TestRunRecorderFailureDoesNotFailCycle(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	r := NewRunner(&fakeSource{q: sampleQuestion()}, &fakePublisher{}, rec, "1", "quiz_poll", nil, nil)

	if res := r.Run(context.Background()); !res.OK() {
		t.Errorf("Run() = %+v, want success despite ledger error", res)
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{}), entered: make(chan struct{})}
	r := NewRunner(&fakeSource{q: sampleQuestion()}, pub, nil, "1", "quiz_poll", nil, nil)

	done := make(chan Result)
	go func() { done <- r.Run(context.Background()) }()

	<-pub.entered
	if r.State() != Running {
		t.Errorf("State() during cycle = %v, want running", r.State())
	}

	second := r.Run(context.Background())
	if !errors.Is(second.Err, ErrBusy) {
		t.Errorf("overlapping Run() error = %v, want ErrBusy", second.Err)
	}

	close(pub.block)
	if first := <-done; !first.OK() {
		t.Errorf("first Run() = %+v, want success", first)
	}
	if r.State() != Idle {
		t.Errorf("State() = %v, want idle", r.State())
	}
}

func TestNextStart(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		last     time.Time
		interval time.Duration
		want     time.Time
	}{
		{"no previous run", time.Time{}, time.Hour, now},
		{"within interval", now.Add(-20 * time.Minute), time.Hour, now.Add(40 * time.Minute)},
		{"overdue", now.Add(-3 * time.Hour), time.Hour, now},
		{"exactly due", now.Add(-time.Hour), time.Hour, now},
		{"no interval", now.Add(-time.Minute), 0, now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextStart(tt.last, tt.interval, now); !got.Equal(tt.want) {
				t.Errorf("NextStart() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Running.String() != "running" {
		t.Errorf("State strings = %q, %q", Idle, Running)
	}
}
