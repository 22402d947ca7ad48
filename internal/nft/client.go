// Package nft queries an Alchemy-style NFT indexer for wallet ownership of
// the approved collections and for full inventory listings.
package nft

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plaguebrands/ribbit/domain"
)

const defaultTimeout = 10 * time.Second

// Config binds the client to one indexer deployment and the approved
// collection contracts (primary Plague plus Exodus Plague).
type Config struct {
	BaseURL   string
	APIKey    string
	Contracts []string
	Timeout   time.Duration
}

// Client is the NFT ownership oracle.
type Client struct {
	baseURL   string
	apiKey    string
	contracts []string
	http      *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	contracts := make([]string, 0, len(cfg.Contracts))
	for _, c := range cfg.Contracts {
		contracts = append(contracts, strings.ToLower(c))
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		contracts: contracts,
		http:      &http.Client{Timeout: timeout},
	}
}

type ownedNFTsResponse struct {
	OwnedNFTs []struct {
		Contract struct {
			Address string `json:"address"`
			Name    string `json:"name"`
			Symbol  string `json:"symbol"`
		} `json:"contract"`
		TokenID   string `json:"tokenId"`
		TokenType string `json:"tokenType"`
		Image     struct {
			ThumbnailURL string `json:"thumbnailUrl"`
			CachedURL    string `json:"cachedUrl"`
			OriginalURL  string `json:"originalUrl"`
		} `json:"image"`
	} `json:"ownedNfts"`
}

func (c *Client) getNFTsForOwner(ctx context.Context, owner string, contracts []string) (*ownedNFTsResponse, error) {
	q := url.Values{}
	q.Set("owner", owner)
	for _, contract := range contracts {
		q.Add("contractAddresses[]", contract)
	}

	endpoint := fmt.Sprintf("%s/nft/v3/%s/getNFTsForOwner?%s", c.baseURL, c.apiKey, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("nft: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nft: query indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nft: indexer returned status %d", resp.StatusCode)
	}

	var parsed ownedNFTsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("nft: decode response: %w", err)
	}
	return &parsed, nil
}

// NFTsForOwner lists every token the wallet holds, for the inventory sync at
// wallet login.
func (c *Client) NFTsForOwner(ctx context.Context, owner string) ([]domain.OwnedNFT, error) {
	parsed, err := c.getNFTsForOwner(ctx, owner, nil)
	if err != nil {
		return nil, err
	}

	nfts := make([]domain.OwnedNFT, 0, len(parsed.OwnedNFTs))
	for _, raw := range parsed.OwnedNFTs {
		imageURL := raw.Image.ThumbnailURL
		if imageURL == "" {
			imageURL = raw.Image.CachedURL
		}
		if imageURL == "" {
			imageURL = raw.Image.OriginalURL
		}
		name := raw.Contract.Name
		if name == "" {
			name = "Unknown"
		}
		nfts = append(nfts, domain.OwnedNFT{
			ContractAddress: raw.Contract.Address,
			TokenID:         raw.TokenID,
			CollectionName:  name,
			CollectionSlug:  strings.ToLower(raw.Contract.Symbol),
			ImageURL:        imageURL,
			TokenType:       raw.TokenType,
		})
	}
	return nfts, nil
}

// OwnsAny probes the contracts one at a time and short-circuits on the first
// hit.
func (c *Client) OwnsAny(ctx context.Context, owner string, contracts []string) (bool, error) {
	for _, contract := range contracts {
		parsed, err := c.getNFTsForOwner(ctx, owner, []string{strings.ToLower(contract)})
		if err != nil {
			return false, err
		}
		if len(parsed.OwnedNFTs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// CheckHolder reports whether the wallet holds any approved collection.
// Errors and timeouts resolve to false: ownership that cannot be confirmed
// is ownership that does not count.
func (c *Client) CheckHolder(ctx context.Context, owner string) bool {
	owns, err := c.OwnsAny(ctx, owner, c.contracts)
	if err != nil {
		log.Warn().Err(err).Str("owner", owner).
			Msg("ownership check unavailable, failing closed")
		return false
	}
	return owns
}
