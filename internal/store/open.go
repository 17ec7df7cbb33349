package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/models"
)

// Open connects to the configured backend and verifies it answers a ping.
// Any failure wraps models.ErrStoreConnection.
func Open(ctx context.Context, cfg *config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case BackendRedis, "":
		s = NewRedisStore(cfg, WithRedisLogger(logger))
	case BackendSQLite:
		s, err = NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStoreConnection, err)
		}
	case BackendMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		if !errors.Is(err, models.ErrStoreConnection) {
			err = fmt.Errorf("%w: %v", models.ErrStoreConnection, err)
		}
		return nil, err
	}
	logger.Debug("store connected", zap.String("backend", cfg.Backend), zap.String("addr", describe(cfg)))
	return s, nil
}

func describe(cfg *config.StoreConfig) string {
	switch cfg.Backend {
	case BackendSQLite:
		return cfg.SQLitePath
	case BackendMemory:
		return "memory"
	default:
		return cfg.Addr
	}
}
