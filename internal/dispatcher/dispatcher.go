// Package dispatcher posts quiz questions to a Telegram channel as native quiz polls.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/quizbot/internal/errs"
	"github.com/edgard/quizbot/internal/quiz"
)

// Telegram poll limits, in characters.
const (
	maxQuestionLen    = 300
	maxOptionLen      = 100
	maxExplanationLen = 200
)

// PollSender is the subset of *bot.Bot the dispatcher uses.
type PollSender interface {
	SendPoll(ctx context.Context, params *bot.SendPollParams) (*models.Message, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Options tunes how polls are posted.
type Options struct {
	// Anonymous hides voter identities.
	Anonymous bool
	// SendExplanation posts the explanation as a follow-up message after the poll.
	SendExplanation bool
	// Timeout bounds each API call. Zero leaves the deadline to ctx.
	Timeout time.Duration
}

// Receipt identifies the messages a dispatch created.
type Receipt struct {
	PollMessageID        int
	ExplanationMessageID int
}

// Dispatcher creates quiz polls. It never retries.
type Dispatcher struct {
	sender PollSender
	opts   Options
	log    *slog.Logger
}

// New creates a Dispatcher around sender, usually a *bot.Bot.
func New(sender PollSender, opts Options, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sender: sender,
		opts:   opts,
		log:    log.With("component", "dispatcher"),
	}
}

// Dispatch posts q to channelID as a quiz poll with the correct option marked,
// then optionally the explanation as a plain message. Errors are
// *errs.DispatchAuthError or *errs.DispatchAPIError. When the follow-up fails the
// returned Receipt still carries the poll's message id.
func (d *Dispatcher) Dispatch(ctx context.Context, channelID string, q *quiz.Question) (Receipt, error) {
	var receipt Receipt

	if err := q.Validate(); err != nil {
		return receipt, errs.NewDispatchAPIError(channelID, 0, "refusing to send invalid question", err)
	}

	params := BuildPollParams(channelID, q, d.opts.Anonymous)

	msg, err := d.call(ctx, func(ctx context.Context) (*models.Message, error) {
		return d.sender.SendPoll(ctx, params)
	})
	if err != nil {
		err = classify(channelID, "send poll", err)
		d.log.ErrorContext(ctx, "Failed to send quiz poll", "channel_id", channelID, "error", err)
		return receipt, err
	}
	receipt.PollMessageID = msg.ID
	d.log.InfoContext(ctx, "Quiz poll sent", "channel_id", channelID, "message_id", msg.ID)

	if !d.opts.SendExplanation || strings.TrimSpace(q.Explanation) == "" {
		return receipt, nil
	}

	follow, err := d.call(ctx, func(ctx context.Context) (*models.Message, error) {
		return d.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID(channelID),
			Text:   ExplanationText(q),
			ReplyParameters: &models.ReplyParameters{
				MessageID:                receipt.PollMessageID,
				AllowSendingWithoutReply: true,
			},
		})
	})
	if err != nil {
		err = classify(channelID, "send explanation", err)
		d.log.ErrorContext(ctx, "Failed to send explanation", "channel_id", channelID, "poll_message_id", receipt.PollMessageID, "error", err)
		return receipt, err
	}
	receipt.ExplanationMessageID = follow.ID
	d.log.DebugContext(ctx, "Explanation sent", "channel_id", channelID, "message_id", follow.ID)

	return receipt, nil
}

func (d *Dispatcher) call(ctx context.Context, fn func(context.Context) (*models.Message, error)) (*models.Message, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}
	msg, err := fn(ctx)
	if err == nil && msg == nil {
		err = errors.New("telegram returned no message")
	}
	return msg, err
}

// BuildPollParams shapes q into a quiz poll request. Options keep their order
// and CorrectOptionID equals q.CorrectIndex.
func BuildPollParams(channelID string, q *quiz.Question, anonymous bool) *bot.SendPollParams {
	options := make([]models.InputPollOption, len(q.Options))
	for i, opt := range q.Options {
		options[i] = models.InputPollOption{Text: clip(opt, maxOptionLen)}
	}

	isAnonymous := bot.False()
	if anonymous {
		isAnonymous = bot.True()
	}

	return &bot.SendPollParams{
		ChatID:          chatID(channelID),
		Question:        clip(q.Stem, maxQuestionLen),
		Options:         options,
		IsAnonymous:     isAnonymous,
		Type:            "quiz",
		CorrectOptionID: q.CorrectIndex,
		Explanation:     pollExplanation(q),
	}
}

// pollExplanation is shown by Telegram after a vote. Long explanations don't fit,
// so they fall back to naming the answer.
func pollExplanation(q *quiz.Question) string {
	exp := strings.TrimSpace(q.Explanation)
	if exp != "" && len([]rune(exp)) <= maxExplanationLen {
		return exp
	}
	return "Correct answer: " + quiz.Letter(q.CorrectIndex)
}

// ExplanationText is the follow-up message body.
func ExplanationText(q *quiz.Question) string {
	return fmt.Sprintf("✅ Correct answer: %s) %s\n\n%s",
		quiz.Letter(q.CorrectIndex), q.CorrectOption(), strings.TrimSpace(q.Explanation))
}

// chatID passes numeric ids as integers and @usernames as strings.
func chatID(channelID string) any {
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		return id
	}
	return channelID
}

func clip(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

// classify maps Telegram failures onto the dispatch error taxonomy.
func classify(channelID, op string, err error) error {
	if errors.Is(err, bot.ErrorForbidden) || errors.Is(err, bot.ErrorUnauthorized) {
		return errs.NewDispatchAuthError(channelID, op+": bot is not allowed to post to the channel", err)
	}

	retryAfter := 0
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		retryAfter = tooMany.RetryAfter
	}
	return errs.NewDispatchAPIError(channelID, retryAfter, op+" failed", err)
}
