// Package redis implements storage.Ledger on a Redis set, so several hosts
// running ingestion can share one dedup ledger.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/newsrag/storage"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis set holding ingested article identities.
const DefaultKey = "newsrag:ledger"

const pingTimeout = 5 * time.Second

// Config selects the Redis server and set.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Ledger implements storage.Ledger with SADD and SISMEMBER.
type Ledger struct {
	client *goredis.Client
	key    string
	logger *slog.Logger
}

var _ storage.Ledger = (*Ledger)(nil)

// NewLedger connects to Redis and verifies the connection.
func NewLedger(ctx context.Context, cfg Config) (storage.Ledger, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", storage.ErrBackendRequired)
	}
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &Ledger{
		client: client,
		key:    key,
		logger: slog.Default().With("component", "redis-ledger", "key", key),
	}, nil
}

// Close closes the Redis client.
func (l *Ledger) Close() error {
	return l.client.Close()
}

// Seen reports whether an identity is a member of the ledger set.
func (l *Ledger) Seen(ctx context.Context, identity string) (bool, error) {
	return l.client.SIsMember(ctx, l.key, identity).Result()
}

// Record adds identities to the ledger set.
func (l *Ledger) Record(ctx context.Context, identities ...string) error {
	if len(identities) == 0 {
		return nil
	}
	members := make([]any, len(identities))
	for i, identity := range identities {
		if identity == "" {
			return fmt.Errorf("%w: empty ledger identity", storage.ErrInvalidQuery)
		}
		members[i] = identity
	}
	added, err := l.client.SAdd(ctx, l.key, members...).Result()
	if err != nil {
		return err
	}
	l.logger.Debug("recorded identities", "requested", len(identities), "added", added)
	return nil
}

// Count returns the cardinality of the ledger set.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	n, err := l.client.SCard(ctx, l.key).Result()
	return int(n), err
}
