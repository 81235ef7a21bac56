package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/court-captions/internal/common"
	repo "github.com/joseph-ayodele/court-captions/internal/repository"
)

// ConnectDB opens and migrates the result store. It returns a nil DB when no
// driver is configured.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Driver == "" {
		logger.Info("result store disabled")
		return nil, nil
	}
	db, err := repo.Open(ctx, repo.Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime.Std(),
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     cfg.DialTimeout.Std(),
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
