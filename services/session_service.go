package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/plaguebrands/ribbit/domain"
	"github.com/plaguebrands/ribbit/internal/metrics"
)

var ErrNoSigningSecret = errors.New("session signing secret is not set")

// sessionJWTClaims is the wire shape of a session token payload.
type sessionJWTClaims struct {
	WalletAddress string `json:"wallet,omitempty"`
	DiscordID     string `json:"discord_id,omitempty"`
	HasPlagueNFT  bool   `json:"has_plague_nft"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies the signed, self-contained bearer
// tokens that gate write access. There is no server-side session store: the
// token is the session, and a claims snapshot lives until expiry.
type SessionService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewSessionService(secret, issuer string, ttl time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, ErrNoSigningSecret
	}
	return &SessionService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue signs a compact HS256 token carrying the identity and the trust flag
// as snapshotted at login.
func (s *SessionService) Issue(claims domain.SessionClaims) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionJWTClaims{
		WalletAddress: claims.WalletAddress,
		DiscordID:     claims.DiscordID,
		HasPlagueNFT:  claims.HasPlagueNFT,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   claims.IdentityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	metrics.SessionsIssuedTotal.Inc()
	return signed, nil
}

// Verify checks signature and expiry. It returns nil on any failure
// (expired, tampered, malformed, wrong algorithm) so callers see exactly
// two states: anonymous or authenticated-with-claims.
func (s *SessionService) Verify(tokenString string) *domain.SessionClaims {
	parsed, err := jwt.ParseWithClaims(tokenString, &sessionJWTClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil || !parsed.Valid {
		log.Debug().Err(err).Msg("session token rejected")
		return nil
	}

	claims, ok := parsed.Claims.(*sessionJWTClaims)
	if !ok {
		return nil
	}

	out := &domain.SessionClaims{
		IdentityID:    claims.Subject,
		WalletAddress: claims.WalletAddress,
		DiscordID:     claims.DiscordID,
		HasPlagueNFT:  claims.HasPlagueNFT,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out
}
