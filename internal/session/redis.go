package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"pangandash/pkg/contracts/domain"
)

// RedisOptions configures the Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Now      func() time.Time
}

// RedisStore keeps each session as a JSON document under <prefix>:<id>.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreWithClient(rdb, opts, logger), nil
}

// NewRedisStoreWithClient wraps an existing client without pinging it.
func NewRedisStoreWithClient(rdb *goredis.Client, opts RedisOptions, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	prefix := strings.TrimSuffix(opts.Prefix, ":")
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		ttl:    opts.TTL,
		now:    opts.Now,
		logger: logger.With(slog.String("component", "session_store"), slog.String("backend", "redis")),
	}
}

// Key returns the Redis key of a session.
func (s *RedisStore) Key(id string) string {
	if s.prefix == "" {
		return id
	}
	return s.prefix + ":" + id
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context) (*domain.DashboardContext, error) {
	dc := domain.NewDashboardContext(uuid.New().String(), s.now())
	raw, err := encodeContext(dc)
	if err != nil {
		return nil, err
	}

	ok, err := s.rdb.SetNX(ctx, s.Key(dc.SessionID), raw, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session id collision: %s", dc.SessionID)
	}

	s.logger.DebugContext(ctx, "session created", slog.String("session_id", dc.SessionID))
	return dc, nil
}

// Get implements Store. Reading a session refreshes its TTL.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.DashboardContext, error) {
	var (
		raw string
		err error
	)
	if s.ttl > 0 {
		raw, err = s.rdb.GetEx(ctx, s.Key(id), s.ttl).Result()
	} else {
		raw, err = s.rdb.Get(ctx, s.Key(id)).Result()
	}
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return decodeContext(id, []byte(raw))
}

// Save implements Store. Only existing keys are overwritten.
func (s *RedisStore) Save(ctx context.Context, dc *domain.DashboardContext) error {
	raw, err := encodeContext(dc)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetXX(ctx, s.Key(dc.SessionID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setxx: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, s.Key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func encodeContext(dc *domain.DashboardContext) ([]byte, error) {
	raw, err := json.Marshal(dc)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return raw, nil
}

func decodeContext(id string, raw []byte) (*domain.DashboardContext, error) {
	var dc domain.DashboardContext
	if err := json.Unmarshal(raw, &dc); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &dc, nil
}
