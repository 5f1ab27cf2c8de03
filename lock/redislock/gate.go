// Package redislock provides a write gate shared by every process pointed at
// the same redis instance.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-reconcile/core"
)

const (
	DefaultLeaseTTL     = 30 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	defaultKeyPrefix    = "go-reconcile::lock::"
)

// releaseScript deletes KEYS[1] only while it still holds the caller token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLeaseLost = errors.New("redislock: lease expired before release")

type Gate struct {
	client       redis.UniversalClient
	prefix       string
	leaseTTL     time.Duration
	pollInterval time.Duration
}

type Option func(*Gate)

func WithLeaseTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.leaseTTL = ttl
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(g *Gate) {
		if interval > 0 {
			g.pollInterval = interval
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(g *Gate) {
		if strings.TrimSpace(prefix) != "" {
			g.prefix = prefix
		}
	}
}

func New(client redis.UniversalClient, opts ...Option) (*Gate, error) {
	if client == nil {
		return nil, core.NewConfigurationError("redislock: redis client is required")
	}
	gate := &Gate{
		client:       client,
		prefix:       defaultKeyPrefix,
		leaseTTL:     DefaultLeaseTTL,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate, nil
}

func NewFromConfig(cfg core.RedisConfig, opts ...Option) (*Gate, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, core.NewConfigurationError("redislock: redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return New(client, opts...)
}

// Ping reports whether the redis instance is reachable.
func (g *Gate) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Acquire polls SET NX until the lease is granted or ctx is done. A lease
// that outlives its holder expires after the configured ttl.
func (g *Gate) Acquire(ctx context.Context, key string) (core.LockHandle, error) {
	if g == nil || g.client == nil {
		return nil, core.NewConfigurationError("redislock: gate is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("redislock: key is required")
	}
	redisKey := g.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := g.client.SetNX(ctx, redisKey, token, g.leaseTTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redislock: acquire %q: %w", key, err)
		}
		if ok {
			return &handle{client: g.client, key: redisKey, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type handle struct {
	client redis.UniversalClient
	key    string
	token  string
	once   sync.Once
	err    error
}

func (h *handle) Unlock(ctx context.Context) error {
	h.once.Do(func() {
		released, err := releaseScript.Run(ctx, h.client, []string{h.key}, h.token).Int64()
		if err != nil {
			h.err = fmt.Errorf("redislock: release %q: %w", h.key, err)
			return
		}
		if released == 0 {
			h.err = ErrLeaseLost
		}
	})
	return h.err
}

var _ core.WriteGate = (*Gate)(nil)
