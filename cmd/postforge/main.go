package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"PostForge/internal/app"
	"PostForge/internal/config"
	"PostForge/internal/domain"
	"PostForge/internal/logging"
)

const usage = `usage:
  postforge serve              start the scheduler and HTTP API
  postforge run -project <id>  execute one manual run and exit`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", zap.Error(err))
		return 1
	}
	defer application.Close()

	switch args[0] {
	case "serve":
		if err := application.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("application stopped", zap.Error(err))
			return 1
		}
		return 0
	case "run":
		fs := flag.NewFlagSet("run", flag.ContinueOnError)
		projectID := fs.String("project", "", "project id to run")
		if err := fs.Parse(args[1:]); err != nil || *projectID == "" {
			fmt.Fprintln(os.Stderr, usage)
			return 2
		}
		result, err := application.RunOnce(ctx, *projectID)
		if err != nil {
			logger.Error("run failed to start", zap.String("project_id", *projectID), zap.Error(err))
			return 1
		}
		fmt.Printf("run %s finished: %s\n", result.ID, result.Status)
		if result.Status == domain.RunFailed {
			return 1
		}
		return 0
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}
