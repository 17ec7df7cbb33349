package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/models"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  *config.StoreConfig
		want any
	}{
		{"memory", &config.StoreConfig{Backend: BackendMemory}, &MemoryStore{}},
		{"sqlite", &config.StoreConfig{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "kv.db")}, &SQLiteStore{}},
		{"redis", redisConfig(mr.Addr()), &RedisStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg, nil)
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, &config.StoreConfig{Backend: "etcd"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = Open(ctx, redisConfig(addr), nil)
	assert.True(t, errors.Is(err, models.ErrStoreConnection), "got %v", err)
}
