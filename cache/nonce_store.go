// Package cache holds the single-use nonce store that closes the
// signed-message replay window: a nonce is valid for one verification within
// a short TTL and is consumed atomically.
package cache

import (
	"context"
	"time"
)

// NonceStore registers sign-in nonces and enforces single use.
type NonceStore interface {
	// Issue registers a nonce for one sign-in attempt.
	Issue(ctx context.Context, nonce string, ttl time.Duration) error
	// Consume atomically checks and deletes the nonce. False means the
	// nonce was never issued, already used, or expired; the caller treats
	// all three as an invalid signature.
	Consume(ctx context.Context, nonce string) bool
}
