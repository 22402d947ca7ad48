// Package discord talks to the Discord OAuth2 and REST APIs: authorization
// URL construction, code exchange, profile lookup and guild role checks.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Endpoints are variables so tests can point the client at a local server.
var (
	APIBaseURL = "https://discord.com/api/v10"

	Endpoint = oauth2.Endpoint{
		AuthURL:  "https://discord.com/oauth2/authorize",
		TokenURL: "https://discord.com/api/v10/oauth2/token",
	}
)

// Scopes requested on every authorization: identity plus enough guild access
// to read the caller's own membership record.
var Scopes = []string{"identify", "guilds", "guilds.members.read"}

var ErrNotConfigured = errors.New("discord: client not configured")

// ExchangeError carries the upstream status and body of a failed code
// exchange. The authorization code is single-use, so the exchange is never
// retried; the user must restart the flow.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("discord: code exchange failed: status %d", e.Status)
}

// Profile is the subset of a Discord user record this service reads.
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// DisplayName renders the username the way Discord displays it: the legacy
// "name#1234" form only when the discriminator is a real one. Accounts
// migrated to the new username system carry discriminator "0".
func (p *Profile) DisplayName() string {
	if p.Discriminator != "" && p.Discriminator != "0" {
		return p.Username + "#" + p.Discriminator
	}
	return p.Username
}

// Config holds the OAuth application credentials and the guild/role pair
// that proves holder status.
type Config struct {
	ClientID     string
	ClientSecret string
	GuildID      string
	HolderRoleID string
}

// Client is the Discord identity client. Zero-value Config fields surface as
// ErrNotConfigured at first use; Validate at startup catches them earlier.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) oauthConfig(redirectURI string) (*oauth2.Config, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint:     Endpoint,
	}, nil
}

// AuthCodeURL constructs the authorization URL the user is redirected to.
func (c *Client) AuthCodeURL(redirectURI string) (string, error) {
	conf, err := c.oauthConfig(redirectURI)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(""), nil
}

// ExchangeCode trades a single-use authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	conf, err := c.oauthConfig(redirectURI)
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, &ExchangeError{
				Status: retrieveErr.Response.StatusCode,
				Body:   string(retrieveErr.Body),
			}
		}
		return nil, fmt.Errorf("discord: code exchange: %w", err)
	}
	return token, nil
}

func (c *Client) httpClient(ctx context.Context, token *oauth2.Token) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}

// FetchProfile returns the authenticated user's Discord profile.
func (c *Client) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	resp, err := c.httpClient(ctx, token).Get(APIBaseURL + "/users/@me")
	if err != nil {
		return nil, fmt.Errorf("discord: fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Warn().Int("status", resp.StatusCode).Str("body", string(body)).
			Msg("discord profile fetch failed")
		return nil, fmt.Errorf("discord: fetch profile: status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("discord: decode profile: %w", err)
	}
	return &profile, nil
}

// FetchGuildRoles returns the caller's role IDs in one guild. A non-2xx
// response means the user is not a member (or the token lacks access), which
// is an expected outcome, not an error: it comes back as no roles.
func (c *Client) FetchGuildRoles(ctx context.Context, token *oauth2.Token, guildID string) ([]string, error) {
	url := fmt.Sprintf("%s/users/@me/guilds/%s/member", APIBaseURL, guildID)
	resp, err := c.httpClient(ctx, token).Get(url)
	if err != nil {
		return nil, fmt.Errorf("discord: fetch guild member: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("guild_id", guildID).
			Msg("not a guild member or membership not readable")
		return nil, nil
	}

	var member struct {
		Roles []string `json:"roles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return nil, fmt.Errorf("discord: decode guild member: %w", err)
	}
	return member.Roles, nil
}

// HasRole reports whether the caller holds roleID in guildID. Any transport
// failure resolves to false: trust is never granted because a check could
// not be completed.
func (c *Client) HasRole(ctx context.Context, token *oauth2.Token, guildID, roleID string) bool {
	roles, err := c.FetchGuildRoles(ctx, token, guildID)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", guildID).
			Msg("guild role check unavailable, failing closed")
		return false
	}
	for _, r := range roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// VerifyHolderRole checks the configured guild/role pair that gates write
// access.
func (c *Client) VerifyHolderRole(ctx context.Context, token *oauth2.Token) (bool, error) {
	if c.cfg.GuildID == "" || c.cfg.HolderRoleID == "" {
		return false, ErrNotConfigured
	}
	return c.HasRole(ctx, token, c.cfg.GuildID, c.cfg.HolderRoleID), nil
}
