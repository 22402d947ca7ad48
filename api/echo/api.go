// Package echo exposes the authentication HTTP API.
package echo

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/plaguebrands/ribbit/domain"
	apierrors "github.com/plaguebrands/ribbit/errors"
	"github.com/plaguebrands/ribbit/internal/discord"
	"github.com/plaguebrands/ribbit/middleware"
	"github.com/plaguebrands/ribbit/services"
)

// AuthAPI holds the handlers for both login paths and the gated write
// endpoint.
type AuthAPI struct {
	auth     *services.AuthService
	sessions *services.SessionService
	reviews  domain.ReviewStore
	// appURL is the application root the Discord callback redirects to.
	appURL string
}

func NewAuthAPI(
	auth *services.AuthService,
	sessions *services.SessionService,
	reviews domain.ReviewStore,
	appURL string,
) *AuthAPI {
	return &AuthAPI{
		auth:     auth,
		sessions: sessions,
		reviews:  reviews,
		appURL:   strings.TrimRight(appURL, "/"),
	}
}

// RegisterRoutes registers all routes on the server.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.SessionAuth(a.sessions))

	e.GET("/auth/nonce", a.NonceHandler)
	e.POST("/auth/verify", a.VerifyHandler)
	e.GET("/auth/discord", a.DiscordStartHandler)
	e.GET("/auth/discord/callback", a.DiscordCallbackHandler)

	e.POST("/reviews", middleware.RequireHolder(a.CreateReviewHandler))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// NonceHandler issues a fresh single-use nonce for one sign-in attempt.
func (a *AuthAPI) NonceHandler(c echo.Context) error {
	nonce, err := a.auth.IssueNonce(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue sign-in nonce")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("Failed to issue nonce"))
	}
	return c.JSON(http.StatusOK, map[string]string{"nonce": nonce})
}

type verifyRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type loginResponse struct {
	Token        string       `json:"token"`
	User         *domain.User `json:"user"`
	HasPlagueNFT bool         `json:"hasPlagueNFT"`
}

// VerifyHandler handles the wallet login path. Every verification failure
// maps to the same 401 body; the distinction lives in the server logs only.
func (a *AuthAPI) VerifyHandler(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Message and signature are required"))
	}
	if req.Message == "" || req.Signature == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Message and signature are required"))
	}

	result, err := a.auth.WalletLogin(c.Request().Context(), req.Message, req.Signature)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			return c.JSON(http.StatusUnauthorized, apierrors.NewInvalidSignature())
		}
		log.Error().Err(err).Msg("Wallet login failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("Authentication failed"))
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:        result.Token,
		User:         result.User,
		HasPlagueNFT: result.HasPlagueNFT,
	})
}

func (a *AuthAPI) callbackURI() string {
	return a.appURL + "/auth/discord/callback"
}

// DiscordStartHandler returns the OAuth authorization URL.
func (a *AuthAPI) DiscordStartHandler(c echo.Context) error {
	authURL, err := a.auth.DiscordLoginURL(a.callbackURI())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build Discord authorization URL")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("Failed to generate Discord authorization URL"))
	}
	return c.JSON(http.StatusOK, map[string]string{"url": authURL})
}

// redirectWithError sends the user back to the application root with a
// stable error code and a short human-readable message. Upstream detail
// never travels on the redirect.
func (a *AuthAPI) redirectWithError(c echo.Context, code, message string) error {
	q := url.Values{}
	q.Set("error", code)
	if message != "" {
		q.Set("message", message)
	}
	return c.Redirect(http.StatusFound, a.appURL+"/?"+q.Encode())
}

// DiscordCallbackHandler finishes the OAuth flow. Outcomes:
// success → /?token=...&auth=discord; authenticated but roleless →
// /?error=missing_role (profile still created, no token); hard failure →
// /?error=discord_auth_failed|missing_code|discord_callback_failed.
func (a *AuthAPI) DiscordCallbackHandler(c echo.Context) error {
	if oauthErr := c.QueryParam("error"); oauthErr != "" {
		log.Warn().Str("oauth_error", oauthErr).Msg("Discord authorization denied")
		return a.redirectWithError(c, apierrors.RedirectDiscordAuthFailed, "Discord authorization was denied")
	}

	code := c.QueryParam("code")
	if code == "" {
		return a.redirectWithError(c, apierrors.RedirectMissingCode, "Missing authorization code")
	}

	result, err := a.auth.DiscordLogin(c.Request().Context(), code, a.callbackURI())
	if err != nil {
		var exchangeErr *discord.ExchangeError
		if errors.As(err, &exchangeErr) {
			log.Error().Int("status", exchangeErr.Status).Str("body", exchangeErr.Body).
				Msg("Discord code exchange rejected")
		} else {
			log.Error().Err(err).Msg("Discord callback failed")
		}
		return a.redirectWithError(c, apierrors.RedirectDiscordCallbackFailed, "Discord sign-in failed")
	}

	if !result.HasPlagueNFT {
		// Profile exists now, but without the holder role there is no
		// write capability and no token.
		return a.redirectWithError(c, apierrors.RedirectMissingRole,
			"Your Discord account does not have the holder role")
	}

	q := url.Values{}
	q.Set("token", result.Token)
	q.Set("auth", "discord")
	return c.Redirect(http.StatusFound, a.appURL+"/?"+q.Encode())
}

type createReviewRequest struct {
	Subject  string `json:"subject"`
	Category string `json:"category"`
	Rating   int    `json:"rating"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// CreateReviewHandler is the gated write endpoint. RequireHolder has already
// checked the session snapshot by the time it runs.
func (a *AuthAPI) CreateReviewHandler(c echo.Context) error {
	claims := domain.ClaimsFromContext(c.Request().Context())

	var req createReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Invalid review payload"))
	}
	if req.Subject == "" || req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Subject and a 1-5 rating are required"))
	}

	review := &domain.Review{
		ID:        uuid.NewString(),
		UserID:    claims.IdentityID,
		Subject:   req.Subject,
		Category:  req.Category,
		Rating:    req.Rating,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.reviews.Insert(c.Request().Context(), review); err != nil {
		log.Error().Err(err).Msg("Failed to store review")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("Failed to store review"))
	}

	return c.JSON(http.StatusCreated, review)
}
