package domain

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned when no User matches the natural key.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateKey is returned when an insert loses the race against a
	// concurrent login for the same natural key. Callers recover by
	// re-fetching and updating instead of failing the request.
	ErrDuplicateKey = errors.New("duplicate natural key")
)

// UserRepository is the persistence collaborator for User records. The
// backing store must enforce uniqueness on each natural key; that constraint
// is the only serialization point between concurrent logins.
type UserRepository interface {
	FindByKey(ctx context.Context, key NaturalKey) (*User, error)
	Insert(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}

// NFTStore persists the NFT inventory snapshot taken at wallet login.
type NFTStore interface {
	ReplaceForUser(ctx context.Context, userID string, nfts []OwnedNFT) error
}

// ReviewStore is the collaborator behind the gated write endpoint. Listing,
// likes and pagination are out of this service's scope.
type ReviewStore interface {
	Insert(ctx context.Context, review *Review) error
}
