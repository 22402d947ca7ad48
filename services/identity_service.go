package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/plaguebrands/ribbit/domain"
)

var ErrMissingNaturalKey = errors.New("identity candidate carries no natural key")

// IdentityCandidate is a verified identity about to be reconciled against
// the user store. HasPlagueNFT is the freshly evaluated trust result; it is
// never client-supplied and always overwrites the stored flag.
type IdentityCandidate struct {
	Key             domain.NaturalKey
	DiscordUsername string
	AvatarURL       string
	HasPlagueNFT    bool
	// NFTsSynced stamps nfts_last_synced_at; only the wallet path syncs
	// inventory.
	NFTsSynced bool
}

// IdentityService reconciles verified identities with persisted user
// records.
type IdentityService struct {
	users domain.UserRepository
}

func NewIdentityService(users domain.UserRepository) *IdentityService {
	return &IdentityService{users: users}
}

// Reconcile looks the candidate up by its natural key and either updates the
// mutable mirror fields or creates a fresh record. A duplicate-key failure
// on insert means a concurrent login for the same key won the race; the
// loser re-fetches and applies its update instead of erroring the request.
func (s *IdentityService) Reconcile(ctx context.Context, cand IdentityCandidate) (*domain.User, error) {
	if cand.Key.Zero() {
		return nil, ErrMissingNaturalKey
	}

	user, err := s.users.FindByKey(ctx, cand.Key)
	switch {
	case err == nil:
		return s.update(ctx, user, cand)
	case errors.Is(err, domain.ErrUserNotFound):
		// fall through to insert
	default:
		return nil, fmt.Errorf("identity lookup: %w", err)
	}

	user = newUser(cand)
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			log.Debug().Str("key_kind", string(cand.Key.Kind())).
				Msg("lost insert race, re-fetching existing identity")
			existing, findErr := s.users.FindByKey(ctx, cand.Key)
			if findErr != nil {
				return nil, fmt.Errorf("re-fetch after duplicate insert: %w", findErr)
			}
			return s.update(ctx, existing, cand)
		}
		return nil, fmt.Errorf("identity insert: %w", err)
	}
	return user, nil
}

func (s *IdentityService) update(ctx context.Context, user *domain.User, cand IdentityCandidate) (*domain.User, error) {
	applyCandidate(user, cand)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("identity update: %w", err)
	}
	return user, nil
}

func newUser(cand IdentityCandidate) *domain.User {
	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	switch cand.Key.Kind() {
	case domain.KeyKindWallet:
		user.WalletAddress = cand.Key.Value()
	case domain.KeyKindDiscord:
		user.DiscordID = cand.Key.Value()
	}
	applyCandidate(user, cand)
	return user
}

func applyCandidate(user *domain.User, cand IdentityCandidate) {
	now := time.Now().UTC()
	user.HasPlagueNFT = cand.HasPlagueNFT
	if cand.DiscordUsername != "" {
		user.DiscordUsername = cand.DiscordUsername
	}
	if cand.AvatarURL != "" {
		user.AvatarURL = cand.AvatarURL
	}
	if cand.NFTsSynced {
		user.NFTsLastSyncedAt = &now
	}
	user.UpdatedAt = now
}
