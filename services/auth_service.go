package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/plaguebrands/ribbit/cache"
	"github.com/plaguebrands/ribbit/domain"
	"github.com/plaguebrands/ribbit/internal/discord"
	"github.com/plaguebrands/ribbit/internal/metrics"
	"github.com/plaguebrands/ribbit/internal/siwe"
	"github.com/plaguebrands/ribbit/internal/trust"
)

// ErrInvalidSignature is the single error the wallet path exposes for every
// verification failure: bad signature, malformed message, replayed nonce.
// Detail stays in the server logs.
var ErrInvalidSignature = errors.New("invalid signature")

const nonceTTL = 5 * time.Minute

// OwnershipOracle is the on-chain ownership collaborator. CheckHolder is
// fail-closed by contract: it answers false when it cannot answer at all.
type OwnershipOracle interface {
	CheckHolder(ctx context.Context, address string) bool
	NFTsForOwner(ctx context.Context, address string) ([]domain.OwnedNFT, error)
}

// DiscordIdentity is the Discord OAuth collaborator.
type DiscordIdentity interface {
	AuthCodeURL(redirectURI string) (string, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*discord.Profile, error)
	VerifyHolderRole(ctx context.Context, token *oauth2.Token) (bool, error)
}

// LoginResult is what both login paths hand back to the HTTP layer.
type LoginResult struct {
	Token        string
	User         *domain.User
	HasPlagueNFT bool
}

// AuthService orchestrates both login paths. Trust is always evaluated
// before the identity reconcile so a stale flag is never written.
type AuthService struct {
	nonces   cache.NonceStore
	oracle   OwnershipOracle
	discord  DiscordIdentity
	identity *IdentityService
	sessions *SessionService
	nfts     domain.NFTStore
}

func NewAuthService(
	nonces cache.NonceStore,
	oracle OwnershipOracle,
	discordClient DiscordIdentity,
	identity *IdentityService,
	sessions *SessionService,
	nfts domain.NFTStore,
) *AuthService {
	return &AuthService{
		nonces:   nonces,
		oracle:   oracle,
		discord:  discordClient,
		identity: identity,
		sessions: sessions,
		nfts:     nfts,
	}
}

// IssueNonce registers a fresh single-use nonce for one sign-in attempt.
func (s *AuthService) IssueNonce(ctx context.Context) (string, error) {
	nonce := siwe.GenerateNonce()
	if err := s.nonces.Issue(ctx, nonce, nonceTTL); err != nil {
		return "", fmt.Errorf("issue nonce: %w", err)
	}
	return nonce, nil
}

// WalletLogin runs the SIWE path: verify the signature, consume the nonce,
// evaluate on-chain trust, reconcile the identity, sync the NFT inventory
// and issue a session token.
func (s *AuthService) WalletLogin(ctx context.Context, message, signature string) (*LoginResult, error) {
	verified, err := siwe.Verify(message, signature)
	if err != nil {
		log.Info().Err(err).Msg("wallet signature verification failed")
		metrics.LoginFailureTotal.WithLabelValues("wallet").Inc()
		return nil, ErrInvalidSignature
	}

	if !s.nonces.Consume(ctx, verified.Nonce) {
		log.Warn().Str("address", verified.Address).
			Msg("sign-in nonce unknown or already consumed")
		metrics.NonceReplayTotal.Inc()
		metrics.LoginFailureTotal.WithLabelValues("wallet").Inc()
		return nil, ErrInvalidSignature
	}

	level := trust.FromOwnership(s.oracle.CheckHolder(ctx, verified.Address))
	if !level.Verified {
		metrics.TrustCheckFailedTotal.WithLabelValues(string(level.Source)).Inc()
	}

	user, err := s.identity.Reconcile(ctx, IdentityCandidate{
		Key:          domain.WalletKey(verified.Address),
		HasPlagueNFT: level.Verified,
		NFTsSynced:   true,
	})
	if err != nil {
		metrics.LoginFailureTotal.WithLabelValues("wallet").Inc()
		return nil, err
	}

	s.syncInventory(ctx, user)

	token, err := s.sessions.Issue(domain.SessionClaims{
		IdentityID:    user.ID,
		WalletAddress: user.WalletAddress,
		HasPlagueNFT:  user.HasPlagueNFT,
	})
	if err != nil {
		metrics.LoginFailureTotal.WithLabelValues("wallet").Inc()
		return nil, fmt.Errorf("issue session: %w", err)
	}

	log.Info().Str("address", user.WalletAddress).Bool("holder", user.HasPlagueNFT).
		Msg("wallet login succeeded")
	metrics.LoginSuccessTotal.WithLabelValues("wallet").Inc()

	return &LoginResult{Token: token, User: user, HasPlagueNFT: user.HasPlagueNFT}, nil
}

// syncInventory refreshes the stored NFT listing. Failures are logged and
// swallowed: a stale inventory must not fail a login that already verified.
func (s *AuthService) syncInventory(ctx context.Context, user *domain.User) {
	nfts, err := s.oracle.NFTsForOwner(ctx, user.WalletAddress)
	if err != nil {
		log.Warn().Err(err).Str("address", user.WalletAddress).
			Msg("NFT inventory fetch failed, keeping previous snapshot")
		return
	}
	if err := s.nfts.ReplaceForUser(ctx, user.ID, nfts); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).
			Msg("NFT inventory write failed")
	}
}

// DiscordLoginURL builds the OAuth authorization URL for the Discord path.
func (s *AuthService) DiscordLoginURL(redirectURI string) (string, error) {
	return s.discord.AuthCodeURL(redirectURI)
}

// DiscordLogin runs the OAuth callback path: exchange the single-use code,
// fetch the profile, evaluate the guild role, reconcile the identity. A
// profile is created even without the holder role; only the trust flag and
// the session decision differ.
func (s *AuthService) DiscordLogin(ctx context.Context, code, redirectURI string) (*LoginResult, error) {
	token, err := s.discord.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		log.Error().Err(err).Msg("discord code exchange failed")
		metrics.LoginFailureTotal.WithLabelValues("discord").Inc()
		return nil, err
	}

	profile, err := s.discord.FetchProfile(ctx, token)
	if err != nil {
		metrics.LoginFailureTotal.WithLabelValues("discord").Inc()
		return nil, err
	}

	level := trust.FromRole(trust.ResultOrFalse(s.discord.VerifyHolderRole(ctx, token)))
	if !level.Verified {
		metrics.TrustCheckFailedTotal.WithLabelValues(string(level.Source)).Inc()
	}

	avatarURL := ""
	if profile.Avatar != "" {
		avatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", profile.ID, profile.Avatar)
	}

	user, err := s.identity.Reconcile(ctx, IdentityCandidate{
		Key:             domain.DiscordKey(profile.ID),
		DiscordUsername: profile.DisplayName(),
		AvatarURL:       avatarURL,
		HasPlagueNFT:    level.Verified,
	})
	if err != nil {
		metrics.LoginFailureTotal.WithLabelValues("discord").Inc()
		return nil, err
	}

	sessionToken, err := s.sessions.Issue(domain.SessionClaims{
		IdentityID:   user.ID,
		DiscordID:    user.DiscordID,
		HasPlagueNFT: user.HasPlagueNFT,
	})
	if err != nil {
		metrics.LoginFailureTotal.WithLabelValues("discord").Inc()
		return nil, fmt.Errorf("issue session: %w", err)
	}

	log.Info().Str("discord_id", user.DiscordID).Bool("holder", user.HasPlagueNFT).
		Msg("discord login succeeded")
	metrics.LoginSuccessTotal.WithLabelValues("discord").Inc()

	return &LoginResult{Token: sessionToken, User: user, HasPlagueNFT: user.HasPlagueNFT}, nil
}
