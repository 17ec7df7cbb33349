package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/models"
)

const scanPageSize = 500

// maxRetryElapsed caps the total time spent retrying one command.
const maxRetryElapsed = time.Minute

// RedisStore implements Store on a Redis server. Every command runs under a
// per-attempt timeout and transient network failures are retried with
// exponential backoff; exhausting the retries yields models.ErrStoreConnection.
type RedisStore struct {
	client     *redis.Client
	addr       string
	opTimeout  time.Duration
	maxRetries int
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisLogger sets a logger for retry diagnostics.
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(s *RedisStore) { s.logger = l }
}

// NewRedisStore creates a client for cfg.Addr. It does not contact the server;
// call Ping to verify connectivity.
func NewRedisStore(cfg *config.StoreConfig, opts ...RedisOption) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
		// Retries are handled here so they are bounded and logged in one place.
		MaxRetries: -1,
	})
	s := &RedisStore{
		client:     client,
		addr:       cfg.Addr,
		opTimeout:  cfg.OpTimeout,
		maxRetries: cfg.Retries(),
		minBackoff: cfg.MinBackoff,
		maxBackoff: cfg.MaxBackoff,
		logger:     zap.NewNop(),
	}
	if s.opTimeout <= 0 {
		s.opTimeout = 3 * time.Second
	}
	if s.minBackoff <= 0 {
		s.minBackoff = 100 * time.Millisecond
	}
	if s.maxBackoff < s.minBackoff {
		s.maxBackoff = s.minBackoff
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set runs SET key value.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.do(ctx, "SET", func(ctx context.Context) error {
		return s.client.Set(ctx, key, value, 0).Err()
	})
}

// Get runs GET key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.do(ctx, "GET", func(ctx context.Context) error {
		b, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: key %s", models.ErrNotFound, key)
	}
	return out, err
}

// Exists runs EXISTS key.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.do(ctx, "EXISTS", func(ctx context.Context) error {
		var err error
		n, err = s.client.Exists(ctx, key).Result()
		return err
	})
	return n > 0, err
}

// Delete runs DEL key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.do(ctx, "DEL", func(ctx context.Context) error {
		return s.client.Del(ctx, key).Err()
	})
}

// Scan walks SCAN MATCH <prefix>* pages. Keys returned twice by the server are
// reported once.
func (s *RedisStore) Scan(ctx context.Context, prefix string, fn func(key string) error) error {
	match := escapeGlob(prefix) + "*"
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		var keys []string
		err := s.do(ctx, "SCAN", func(ctx context.Context) error {
			var err error
			keys, cursor, err = s.client.Scan(ctx, cursor, match, scanPageSize).Result()
			return err
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if err := fn(k); err != nil {
				return err
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

// Ping runs PING.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.do(ctx, "PING", func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

// Close closes the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.minBackoff
	eb.MaxInterval = s.maxBackoff
	eb.MaxElapsedTime = maxRetryElapsed
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.maxRetries)), ctx)
}

// do runs fn with a per-attempt timeout and retries transient failures.
func (s *RedisStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
		err := fn(opCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isTransient(err) {
			return backoff.Permanent(err)
		}
		s.logger.Debug("redis command failed, retrying",
			zap.String("op", op), zap.String("addr", s.addr), zap.Int("attempt", attempts), zap.Error(err))
		return err
	}, s.newBackOff(ctx))
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if isTransient(err) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: redis %s at %s failed after %d attempt(s): %v", models.ErrStoreConnection, op, s.addr, attempts, err)
	}
	return err
}

// isTransient reports whether err is a network-level failure worth retrying.
// Server replies (including redis.Nil) are final.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
		return false
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		return strings.HasPrefix(msg, "LOADING") || strings.HasPrefix(msg, "TRYAGAIN")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
