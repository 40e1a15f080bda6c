// Package main contains the entrypoint for the quiz poll bot.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/quizbot/internal/bot"
	"github.com/edgard/quizbot/internal/bot/tasks"
	"github.com/edgard/quizbot/internal/config"
	"github.com/edgard/quizbot/internal/cycle"
	"github.com/edgard/quizbot/internal/database"
	"github.com/edgard/quizbot/internal/dispatcher"
	"github.com/edgard/quizbot/internal/errs"
	"github.com/edgard/quizbot/internal/generator"
	"github.com/edgard/quizbot/internal/logger"
	"github.com/edgard/quizbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components (config, logger, ledger, AI client, Telegram
// client, scheduler), blocks until shutdown, and returns the process exit code.
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error_code", errs.Code(err), "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	store := database.NewNopStore()
	if cfg.Database.Enabled {
		db, err := database.OpenLedger(cfg.Database.Path)
		if err != nil {
			log.Error("Failed to open run ledger", "path", cfg.Database.Path, "error", errs.NewDatabaseError("open database", err))
			return 1
		}
		defer database.CloseLedger(db)
		store = database.NewStore(db, log)
	} else {
		log.Info("Run ledger disabled; schedule phase resets on restart")
	}

	completer, err := generator.NewCompleter(ctx, cfg.AI)
	if err != nil {
		log.Error("Failed to initialize AI client", "provider", cfg.AI.Provider, "error", err)
		return 1
	}
	gen := generator.New(completer, cfg.AI.Prompt, cfg.AI.Timeout, log)

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, cfg.Telegram.RequestTimeout, log)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	if _, err := telegram.VerifyIdentity(ctx, tg, log); err != nil {
		log.Error("Failed to verify Telegram bot token", "error", err)
		return 1
	}

	disp := dispatcher.New(tg, dispatcher.Options{
		Anonymous:       cfg.Telegram.Anonymous,
		SendExplanation: cfg.Telegram.SendExplanation,
		Timeout:         cfg.Telegram.RequestTimeout,
	}, log)

	clock := clockwork.NewRealClock()
	runner := cycle.NewRunner(gen, disp, store, cfg.Telegram.ChannelID, config.TaskQuizPoll, clock, log)

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Runner: runner,
		Config: cfg,
		Clock:  clock,
	})
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap, store, clock)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, store, sched)

	log.Info("Starting quiz bot...", "channel_id", cfg.Telegram.ChannelID, "provider", completer.Name())
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
