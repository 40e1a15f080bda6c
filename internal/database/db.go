// Package database provides the SQLite run ledger: connection setup,
// embedded migrations and the Store used by scheduled tasks.
package database

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/quizbot/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// OpenLedger opens the run ledger at dsn and brings cycle_runs up to the
// latest embedded schema. dsn is a file path or a "file:" URI.
func OpenLedger(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", dsn, err)
	}

	// One writer at a time; the ledger sees a single insert per cycle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrateLedger(db, ledgerFile(dsn)); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Warn("Could not close ledger after failed migration", "error", closeErr)
		}
		return nil, err
	}

	slog.Info("Run ledger ready", "dsn", dsn)
	return db, nil
}

// CloseLedger releases the pool. A nil db is ignored.
func CloseLedger(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Warn("Run ledger did not close cleanly", "error", err)
		return
	}
	slog.Debug("Run ledger closed")
}

func migrateLedger(db *sqlx.DB, file string) error {
	if file == "" {
		return errors.New("ledger file name is empty")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded ledger schema: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{DatabaseName: file})
	if err != nil {
		return fmt.Errorf("attach migrate driver to ledger: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("prepare ledger migration: %w", err)
	}
	m.Log = migrateLog{}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		slog.Debug("Ledger schema already current", "file", file)
	case err != nil:
		return fmt.Errorf("migrate ledger schema: %w", err)
	default:
		version, _, _ := m.Version()
		slog.Info("Ledger schema migrated", "file", file, "version", version)
	}
	return nil
}

// migrateLog routes golang-migrate's progress lines to slog at debug level.
type migrateLog struct{}

func (migrateLog) Printf(format string, v ...any) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (migrateLog) Verbose() bool { return false }

// ledgerFile reduces a sqlite DSN to the bare file name the migrate driver
// records: "file:" scheme and query options dropped, escapes decoded.
func ledgerFile(dsn string) string {
	file, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if decoded, err := url.PathUnescape(file); err == nil {
		return decoded
	}
	return file
}
