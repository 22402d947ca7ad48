package nft_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaguebrands/ribbit/internal/nft"
)

const (
	plagueContract = "0xc379e535caff250a01caa6c3724ed1359fe5c29b"
	exodusContract = "0xa4631a191044096834ce65d1ee86b16b171d8080"
)

func newTestClient(server *httptest.Server) *nft.Client {
	return nft.New(nft.Config{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		Contracts: []string{plagueContract, exodusContract},
	})
}

func TestNFTsForOwner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/nft/v3/test-key/getNFTsForOwner", r.URL.Path)
		assert.Equal(t, "0xabc", r.URL.Query().Get("owner"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ownedNfts":[
			{"contract":{"address":"0xc379","name":"The Plague","symbol":"FROG"},
			 "tokenId":"42","tokenType":"ERC721",
			 "image":{"thumbnailUrl":"https://img/thumb.png","cachedUrl":"https://img/cached.png"}},
			{"contract":{"address":"0xa463","symbol":""},
			 "tokenId":"7","tokenType":"ERC721",
			 "image":{"originalUrl":"https://img/original.png"}}
		]}`))
	}))
	defer server.Close()

	nfts, err := newTestClient(server).NFTsForOwner(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, nfts, 2)

	assert.Equal(t, "The Plague", nfts[0].CollectionName)
	assert.Equal(t, "frog", nfts[0].CollectionSlug)
	assert.Equal(t, "42", nfts[0].TokenID)
	assert.Equal(t, "https://img/thumb.png", nfts[0].ImageURL)

	// Missing name falls back, image preference falls through to original.
	assert.Equal(t, "Unknown", nfts[1].CollectionName)
	assert.Equal(t, "https://img/original.png", nfts[1].ImageURL)
}

func TestOwnsAnyShortCircuits(t *testing.T) {
	var queried []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contract := r.URL.Query().Get("contractAddresses[]")
		queried = append(queried, contract)

		w.Header().Set("Content-Type", "application/json")
		if contract == plagueContract {
			_, _ = w.Write([]byte(`{"ownedNfts":[{"contract":{"address":"0xc379"},"tokenId":"1"}]}`))
		} else {
			_, _ = w.Write([]byte(`{"ownedNfts":[]}`))
		}
	}))
	defer server.Close()

	owns, err := newTestClient(server).
		OwnsAny(context.Background(), "0xabc", []string{plagueContract, exodusContract})
	require.NoError(t, err)
	assert.True(t, owns)
	assert.Equal(t, []string{plagueContract}, queried)
}

func TestCheckHolder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ownedNfts":[]}`))
	}))
	defer server.Close()

	assert.False(t, newTestClient(server).CheckHolder(context.Background(), "0xabc"))
}

func TestCheckHolderSecondContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("contractAddresses[]") == exodusContract {
			_, _ = w.Write([]byte(`{"ownedNfts":[{"contract":{"address":"0xa463"},"tokenId":"9"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"ownedNfts":[]}`))
	}))
	defer server.Close()

	assert.True(t, newTestClient(server).CheckHolder(context.Background(), "0xabc"))
}

func TestCheckHolderFailsClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	assert.False(t, newTestClient(server).CheckHolder(context.Background(), "0xabc"))

	server.Close()
	assert.False(t, newTestClient(server).CheckHolder(context.Background(), "0xabc"))
}
