package echo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	api "github.com/plaguebrands/ribbit/api/echo"
	"github.com/plaguebrands/ribbit/cache"
	"github.com/plaguebrands/ribbit/domain"
	"github.com/plaguebrands/ribbit/internal/discord"
	"github.com/plaguebrands/ribbit/internal/siwe"
	"github.com/plaguebrands/ribbit/services"
)

const appURL = "https://ribbit.plague.dev"

type memUserRepo struct {
	users map[string]*domain.User
}

func (r *memUserRepo) FindByKey(_ context.Context, key domain.NaturalKey) (*domain.User, error) {
	if u, ok := r.users[string(key.Kind())+":"+key.Value()]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) Insert(_ context.Context, u *domain.User) error {
	key := keyOf(u)
	if _, ok := r.users[key]; ok {
		return domain.ErrDuplicateKey
	}
	copied := *u
	r.users[key] = &copied
	return nil
}

func (r *memUserRepo) Update(_ context.Context, u *domain.User) error {
	copied := *u
	r.users[keyOf(u)] = &copied
	return nil
}

func keyOf(u *domain.User) string {
	if u.WalletAddress != "" {
		k := domain.WalletKey(u.WalletAddress)
		return string(k.Kind()) + ":" + k.Value()
	}
	k := domain.DiscordKey(u.DiscordID)
	return string(k.Kind()) + ":" + k.Value()
}

type stubOracle struct{ holder bool }

func (o *stubOracle) CheckHolder(context.Context, string) bool { return o.holder }
func (o *stubOracle) NFTsForOwner(context.Context, string) ([]domain.OwnedNFT, error) {
	return nil, nil
}

type stubNFTStore struct{}

func (stubNFTStore) ReplaceForUser(context.Context, string, []domain.OwnedNFT) error { return nil }

type stubReviewStore struct {
	inserted []*domain.Review
	err      error
}

func (s *stubReviewStore) Insert(_ context.Context, r *domain.Review) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, r)
	return nil
}

type stubDiscord struct {
	urlErr      error
	exchangeErr error
	profile     *discord.Profile
	hasRole     bool
}

func (d *stubDiscord) AuthCodeURL(redirectURI string) (string, error) {
	if d.urlErr != nil {
		return "", d.urlErr
	}
	return "https://discord.com/oauth2/authorize?client_id=x&redirect_uri=" + url.QueryEscape(redirectURI), nil
}

func (d *stubDiscord) ExchangeCode(context.Context, string, string) (*oauth2.Token, error) {
	if d.exchangeErr != nil {
		return nil, d.exchangeErr
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (d *stubDiscord) FetchProfile(context.Context, *oauth2.Token) (*discord.Profile, error) {
	return d.profile, nil
}

func (d *stubDiscord) VerifyHolderRole(context.Context, *oauth2.Token) (bool, error) {
	return d.hasRole, nil
}

type fixture struct {
	e        *echo.Echo
	auth     *services.AuthService
	sessions *services.SessionService
	oracle   *stubOracle
	discord  *stubDiscord
	reviews  *stubReviewStore
	nonces   *cache.MemoryNonceStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sessions, err := services.NewSessionService("test-signing-secret-0123456789ab", "ribbit", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		sessions: sessions,
		oracle:   &stubOracle{},
		discord:  &stubDiscord{},
		reviews:  &stubReviewStore{},
		nonces:   cache.NewMemoryNonceStore(),
	}
	t.Cleanup(f.nonces.Stop)

	repo := &memUserRepo{users: map[string]*domain.User{}}
	f.auth = services.NewAuthService(
		f.nonces, f.oracle, f.discord,
		services.NewIdentityService(repo), sessions, stubNFTStore{},
	)

	f.e = echo.New()
	api.NewAuthAPI(f.auth, sessions, f.reviews, appURL).RegisterRoutes(f.e)
	return f
}

func (f *fixture) request(method, path, body, auth string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) signedLogin(t *testing.T) (message, signature string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	rec := f.request(http.MethodGet, "/auth/nonce", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var nonceResp struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nonceResp))

	msg := &siwe.Message{
		Domain:   "ribbit.plague.dev",
		Address:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
		URI:      appURL,
		Version:  siwe.Version,
		ChainID:  1,
		Nonce:    nonceResp.Nonce,
		IssuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	raw := msg.String()

	sig, err := crypto.Sign(accounts.TextHash([]byte(raw)), key)
	require.NoError(t, err)
	return raw, hexutil.Encode(sig)
}

func TestVerifyHandlerMissingFields(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{}`,
		`{"message":"only a message"}`,
		`{"signature":"0xabc"}`,
	} {
		rec := f.request(http.MethodPost, "/auth/verify", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_request")
	}
}

func TestVerifyHandlerInvalidSignature(t *testing.T) {
	f := newFixture(t)
	message, _ := f.signedLogin(t)

	body, _ := json.Marshal(map[string]string{"message": message, "signature": "0xdeadbeef"})
	rec := f.request(http.MethodPost, "/auth/verify", string(body), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_signature")
}

func TestVerifyHandlerSuccess(t *testing.T) {
	f := newFixture(t)
	f.oracle.holder = true
	message, signature := f.signedLogin(t)

	body, _ := json.Marshal(map[string]string{"message": message, "signature": signature})
	rec := f.request(http.MethodPost, "/auth/verify", string(body), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token        string       `json:"token"`
		User         *domain.User `json:"user"`
		HasPlagueNFT bool         `json:"hasPlagueNFT"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.HasPlagueNFT)
	require.NotNil(t, resp.User)
	assert.True(t, strings.HasPrefix(resp.User.WalletAddress, "0x"))

	claims := f.sessions.Verify(resp.Token)
	require.NotNil(t, claims)
	assert.Equal(t, resp.User.ID, claims.IdentityID)
}

func TestDiscordStartHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodGet, "/auth/discord", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.URL, "discord.com/oauth2/authorize")
	assert.Contains(t, resp.URL, url.QueryEscape(appURL+"/auth/discord/callback"))
}

func TestDiscordStartHandlerMisconfigured(t *testing.T) {
	f := newFixture(t)
	f.discord.urlErr = discord.ErrNotConfigured

	rec := f.request(http.MethodGet, "/auth/discord", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "server_error")
}

func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), appURL))
	return loc.Query()
}

func TestDiscordCallbackProviderError(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodGet, "/auth/discord/callback?error=access_denied", "", "")
	q := redirectQuery(t, rec)
	assert.Equal(t, "discord_auth_failed", q.Get("error"))
}

func TestDiscordCallbackMissingCode(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodGet, "/auth/discord/callback", "", "")
	q := redirectQuery(t, rec)
	assert.Equal(t, "missing_code", q.Get("error"))
}

func TestDiscordCallbackExchangeFailure(t *testing.T) {
	f := newFixture(t)
	f.discord.exchangeErr = &discord.ExchangeError{Status: 400, Body: `{"error":"invalid_grant"}`}

	rec := f.request(http.MethodGet, "/auth/discord/callback?code=expired", "", "")
	q := redirectQuery(t, rec)
	assert.Equal(t, "discord_callback_failed", q.Get("error"))
	assert.NotEmpty(t, q.Get("message"))
	// Upstream body never leaks onto the redirect.
	assert.NotContains(t, rec.Header().Get("Location"), "invalid_grant")
}

func TestDiscordCallbackMissingRole(t *testing.T) {
	f := newFixture(t)
	f.discord.profile = &discord.Profile{ID: "555", Username: "frog", Discriminator: "0"}
	f.discord.hasRole = false

	rec := f.request(http.MethodGet, "/auth/discord/callback?code=code123", "", "")
	q := redirectQuery(t, rec)
	assert.Equal(t, "missing_role", q.Get("error"))
	assert.NotEmpty(t, q.Get("message"))
	assert.Empty(t, q.Get("token"), "no token without the holder role")
}

func TestDiscordCallbackSuccess(t *testing.T) {
	f := newFixture(t)
	f.discord.profile = &discord.Profile{ID: "555", Username: "frog", Discriminator: "0"}
	f.discord.hasRole = true

	rec := f.request(http.MethodGet, "/auth/discord/callback?code=code123", "", "")
	q := redirectQuery(t, rec)
	assert.Equal(t, "discord", q.Get("auth"))
	require.NotEmpty(t, q.Get("token"))

	claims := f.sessions.Verify(q.Get("token"))
	require.NotNil(t, claims)
	assert.Equal(t, "555", claims.DiscordID)
	assert.True(t, claims.HasPlagueNFT)
}

func holderToken(t *testing.T, f *fixture) string {
	t.Helper()
	token, err := f.sessions.Issue(domain.SessionClaims{IdentityID: "user-1", HasPlagueNFT: true})
	require.NoError(t, err)
	return token
}

func TestCreateReviewRequiresAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodPost, "/reviews", `{"subject":"Osaka","rating":5}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateReviewRequiresHolder(t *testing.T) {
	f := newFixture(t)
	token, err := f.sessions.Issue(domain.SessionClaims{IdentityID: "user-1", HasPlagueNFT: false})
	require.NoError(t, err)

	rec := f.request(http.MethodPost, "/reviews", `{"subject":"Osaka","rating":5}`, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateReviewValidation(t *testing.T) {
	f := newFixture(t)
	auth := "Bearer " + holderToken(t, f)

	for _, body := range []string{
		`{"rating":5}`,
		`{"subject":"Osaka","rating":0}`,
		`{"subject":"Osaka","rating":6}`,
	} {
		rec := f.request(http.MethodPost, "/reviews", body, auth)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestCreateReviewSuccess(t *testing.T) {
	f := newFixture(t)
	auth := "Bearer " + holderToken(t, f)

	rec := f.request(http.MethodPost, "/reviews", `{"subject":"Osaka","category":"travel","rating":5,"title":"Great","content":"Croak"}`, auth)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, f.reviews.inserted, 1)
	review := f.reviews.inserted[0]
	assert.Equal(t, "user-1", review.UserID)
	assert.Equal(t, "Osaka", review.Subject)
	assert.NotEmpty(t, review.ID)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
