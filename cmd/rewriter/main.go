package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ArticleRewriter/internal/app"
	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewRewriter(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start rewriter", zap.Error(err))
		return 1
	}
	defer application.Close(context.Background())

	report, err := application.RunOnce(ctx)
	if err != nil {
		logger.Error("rewrite run aborted", zap.Error(err))
		return 1
	}

	logger.Info("rewrite run finished",
		zap.String("run_id", report.RunID),
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Bool("cancelled", report.Cancelled),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return 0
}
