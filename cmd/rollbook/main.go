// Command rollbook manages the roster and daily attendance from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"rollbook/internal/attendance"
	"rollbook/internal/config"
	"rollbook/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runMain(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", attendance.Message(err))
		if attendance.Outcome(err) == "error" {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runMain(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Trace(err)
	}
	// The CLI stays quiet unless asked otherwise.
	level := "<root>=WARNING"
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = v
	}
	if err := loggo.ConfigureLoggers(level); err != nil {
		return errors.Annotatef(err, "configuring logging %q", level)
	}

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return errors.Trace(err)
	}
	defer db.Close()

	repo := attendance.NewRepository(db.Client, db.Dialect, cfg.Cohort)
	if err := repo.Migrate(ctx); err != nil {
		return errors.Trace(err)
	}
	return run(ctx, attendance.NewService(repo, nil, nil), args, os.Stdout)
}
