package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaguebrands/ribbit/domain"
	"github.com/plaguebrands/ribbit/services"
)

// fakeUserRepo is an in-memory UserRepository with the same uniqueness
// semantics the real store enforces.
type fakeUserRepo struct {
	mu      sync.Mutex
	byKey   map[string]*domain.User
	inserts int
	updates int

	// failNextInsert simulates losing the concurrent-insert race: the
	// insert fails with ErrDuplicateKey and the record appears as if the
	// winner had created it.
	failNextInsert *domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byKey: map[string]*domain.User{}}
}

func repoKey(key domain.NaturalKey) string {
	return string(key.Kind()) + ":" + key.Value()
}

func (r *fakeUserRepo) FindByKey(_ context.Context, key domain.NaturalKey) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byKey[repoKey(key)]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) Insert(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := naturalKeyOf(user)
	if r.failNextInsert != nil {
		r.byKey[key] = r.failNextInsert
		r.failNextInsert = nil
		return domain.ErrDuplicateKey
	}
	if _, ok := r.byKey[key]; ok {
		return domain.ErrDuplicateKey
	}
	copied := *user
	r.byKey[key] = &copied
	r.inserts++
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.byKey[naturalKeyOf(user)] = &copied
	r.updates++
	return nil
}

func naturalKeyOf(user *domain.User) string {
	if user.WalletAddress != "" {
		return repoKey(domain.WalletKey(user.WalletAddress))
	}
	return repoKey(domain.DiscordKey(user.DiscordID))
}

func TestReconcileCreatesFreshIdentity(t *testing.T) {
	repo := newFakeUserRepo()
	svc := services.NewIdentityService(repo)

	user, err := svc.Reconcile(context.Background(), services.IdentityCandidate{
		Key:          domain.WalletKey("0xABCdef0000000000000000000000000000000001"),
		HasPlagueNFT: true,
		NFTsSynced:   true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", user.WalletAddress)
	assert.Empty(t, user.DiscordID)
	assert.True(t, user.HasPlagueNFT)
	assert.NotNil(t, user.NFTsLastSyncedAt)
	assert.Equal(t, 1, repo.inserts)
}

func TestReconcileOverwritesTrustFlag(t *testing.T) {
	repo := newFakeUserRepo()
	svc := services.NewIdentityService(repo)
	ctx := context.Background()
	key := domain.DiscordKey("555")

	first, err := svc.Reconcile(ctx, services.IdentityCandidate{
		Key: key, DiscordUsername: "frog", HasPlagueNFT: true,
	})
	require.NoError(t, err)
	require.True(t, first.HasPlagueNFT)

	// The role was lost between logins: the fresh result overwrites the
	// stored flag, no trust squatting.
	second, err := svc.Reconcile(ctx, services.IdentityCandidate{
		Key: key, DiscordUsername: "frog", HasPlagueNFT: false,
	})
	require.NoError(t, err)
	assert.False(t, second.HasPlagueNFT)
	assert.Equal(t, first.ID, second.ID, "same natural key must not create a second row")
	assert.Equal(t, 1, repo.inserts)
}

func TestReconcileUpdatesUsernameMirror(t *testing.T) {
	repo := newFakeUserRepo()
	svc := services.NewIdentityService(repo)
	ctx := context.Background()
	key := domain.DiscordKey("555")

	_, err := svc.Reconcile(ctx, services.IdentityCandidate{Key: key, DiscordUsername: "frog#1234"})
	require.NoError(t, err)

	updated, err := svc.Reconcile(ctx, services.IdentityCandidate{Key: key, DiscordUsername: "frog"})
	require.NoError(t, err)
	assert.Equal(t, "frog", updated.DiscordUsername)
}

func TestReconcileRecoversFromInsertRace(t *testing.T) {
	repo := newFakeUserRepo()
	svc := services.NewIdentityService(repo)

	winner := &domain.User{ID: "winner-id", WalletAddress: "0xaaa0000000000000000000000000000000000001"}
	repo.failNextInsert = winner

	user, err := svc.Reconcile(context.Background(), services.IdentityCandidate{
		Key:          domain.WalletKey("0xAAA0000000000000000000000000000000000001"),
		HasPlagueNFT: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "winner-id", user.ID, "loser must adopt the winner's row")
	assert.True(t, user.HasPlagueNFT, "loser still applies its update")
	assert.Equal(t, 1, repo.updates)
}

func TestReconcileRejectsEmptyKey(t *testing.T) {
	svc := services.NewIdentityService(newFakeUserRepo())

	_, err := svc.Reconcile(context.Background(), services.IdentityCandidate{})
	assert.ErrorIs(t, err, services.ErrMissingNaturalKey)
}
