package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryNonceStore implements NonceStore on ttlcache, for single-instance
// deployments. Multi-instance deployments need the Redis store so a nonce
// issued by one instance can be consumed by another.
type MemoryNonceStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, struct{}]
}

func NewMemoryNonceStore() *MemoryNonceStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go cache.Start()

	return &MemoryNonceStore{cache: cache}
}

func (s *MemoryNonceStore) Issue(_ context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(nonce, struct{}{}, ttl)
	return nil
}

func (s *MemoryNonceStore) Consume(_ context.Context, nonce string) bool {
	// The mutex makes check-and-delete atomic between concurrent logins.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache.Get(nonce) == nil {
		return false
	}
	s.cache.Delete(nonce)
	return true
}

// Stop shuts down the expiration goroutine.
func (s *MemoryNonceStore) Stop() {
	s.cache.Stop()
}
