package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/court-captions/internal/async"
	"github.com/joseph-ayodele/court-captions/internal/common"
	"github.com/joseph-ayodele/court-captions/internal/ingest"
	repo "github.com/joseph-ayodele/court-captions/internal/repository"
	"github.com/joseph-ayodele/court-captions/internal/server"
)

// exitError carries the process exit status for an error returned by run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := run(); err != nil {
		slog.Error("courtextractd stopped", "error", err)
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

func run() error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Server.InboxDir == "" {
		return &exitError{code: 2, err: errors.New("missing INBOX_DIR environment variable")}
	}
	if err := os.MkdirAll(cfg.Server.InboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox %s: %w", cfg.Server.InboxDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := server.NewHealthServer(logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- health.Serve(ctx, lis) }()

	extractor, err := server.BuildExtractor(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	var results repo.ResultRepository
	if db != nil {
		defer db.Close()
		if err := db.HealthCheck(ctx, 3*time.Second); err != nil {
			return fmt.Errorf("DB health: %w", err)
		}
		results = repo.NewResultRepository(db, logger)
	} else {
		logger.Warn("no result store configured, documents are not deduplicated across restarts")
	}

	svc := server.NewExtractionService(extractor, results, logger)
	queue := async.NewWorkerQueue(svc.Handle, logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.DocumentTimeout.Std()),
	)

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Server.InboxDir},
		InitialScan: true,
		Debounce:    cfg.Server.Debounce.Std(),
		SkipHidden:  true,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	health.MarkServing()
	logger.Info("watching inbox", "dir", cfg.Server.InboxDir)

loop:
	for {
		select {
		case path, ok := <-events:
			if !ok {
				break loop
			}
			if err := queue.Enqueue(ctx, async.NewJob(path)); err != nil {
				logger.Warn("failed to queue document", "path", path, "error", err)
			}
			if err := svc.Fatal(); err != nil {
				logger.Error("ocr engine became unavailable", "error", err)
				health.MarkNotServing()
				stop()
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warn("watcher error", "error", err)
		case err := <-serveErr:
			if err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("grpc serve", "error", err)
			}
			stop()
		case <-ctx.Done():
			break loop
		}
	}

	logger.Info("shutting down...")
	health.MarkNotServing()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Batch.DocumentTimeout.Std()+10*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	processed, failed := queue.Stats()
	logger.Info("stopped", "processed", processed, "failed", failed, "skipped", len(svc.Skipped()))
	return svc.Fatal()
}
