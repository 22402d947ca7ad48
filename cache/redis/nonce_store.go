// Package redis provides the Redis-backed nonce store used when the service
// runs more than one instance.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NonceStore implements cache.NonceStore on Redis. GETDEL makes consumption
// atomic across instances.
type NonceStore struct {
	client *redis.Client
	prefix string
}

func NewNonceStore(client *redis.Client, prefix string) *NonceStore {
	return &NonceStore{client: client, prefix: prefix}
}

func (s *NonceStore) key(nonce string) string {
	return fmt.Sprintf("%s:nonce:%s", s.prefix, nonce)
}

func (s *NonceStore) Issue(ctx context.Context, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(nonce), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to register nonce in Redis: %w", err)
	}
	return nil
}

func (s *NonceStore) Consume(ctx context.Context, nonce string) bool {
	err := s.client.GetDel(ctx, s.key(nonce)).Err()
	if err == nil {
		return true
	}
	if !errors.Is(err, redis.Nil) {
		// Redis being unreachable must not open a replay window.
		log.Warn().Err(err).Msg("nonce lookup unavailable, failing closed")
	}
	return false
}
