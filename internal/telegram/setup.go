// Package telegram creates and verifies the go-telegram/bot client.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
// The bot only sends; it never starts the update poller.
func NewTelegramBot(token string, requestTimeout time.Duration, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	baseOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithErrorsHandler(func(err error) {
			log.Error("Telegram client error", "error", err)
		}),
	}
	if requestTimeout > 0 {
		baseOpts = append(baseOpts, bot.WithHTTPClient(requestTimeout, &http.Client{Timeout: requestTimeout}))
	}

	b, err := bot.New(token, append(baseOpts, opts...)...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", tokenPrefix(token))
	return b, nil
}

// Identity is the part of *bot.Bot used to verify credentials.
type Identity interface {
	GetMe(ctx context.Context) (*models.User, error)
}

// VerifyIdentity calls getMe so a bad token fails at startup instead of on the first poll.
func VerifyIdentity(ctx context.Context, b Identity, logger *slog.Logger) (*models.User, error) {
	if logger == nil {
		logger = slog.Default()
	}
	me, err := b.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Info("Bot initialized successfully", "component", "telegram_bot", "bot_id", me.ID, "bot_username", me.Username)
	return me, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "..."
	}
	return token[:8] + "..."
}
