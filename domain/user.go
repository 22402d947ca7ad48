package domain

import (
	"strings"
	"time"
)

// User is the authenticated principal. Exactly one of WalletAddress or
// DiscordID is populated; the two login paths never merge records.
type User struct {
	ID               string     `bson:"_id,omitempty" json:"id"`
	WalletAddress    string     `bson:"wallet_address,omitempty" json:"walletAddress,omitempty"`
	DiscordID        string     `bson:"discord_id,omitempty" json:"discordId,omitempty"`
	DiscordUsername  string     `bson:"discord_username,omitempty" json:"discordUsername,omitempty"`
	DisplayName      string     `bson:"display_name,omitempty" json:"displayName,omitempty"`
	Bio              string     `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarURL        string     `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	HasPlagueNFT     bool       `bson:"has_plague_nft" json:"hasPlagueNFT"`
	NFTsLastSyncedAt *time.Time `bson:"nfts_last_synced_at,omitempty" json:"nftsLastSyncedAt,omitempty"`
	CreatedAt        time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updatedAt"`
}

// KeyKind discriminates the natural key of a User record.
type KeyKind string

const (
	KeyKindWallet  KeyKind = "wallet"
	KeyKindDiscord KeyKind = "discord"
)

// NaturalKey is the tagged union used to look up a User. It is resolved at
// the API boundary by which credential was presented, never by sniffing the
// shape of a string.
type NaturalKey struct {
	kind  KeyKind
	value string
}

// WalletKey builds a wallet natural key. Addresses are stored lower-cased.
func WalletKey(address string) NaturalKey {
	return NaturalKey{kind: KeyKindWallet, value: strings.ToLower(address)}
}

// DiscordKey builds a Discord natural key from the numeric Discord user ID.
func DiscordKey(discordID string) NaturalKey {
	return NaturalKey{kind: KeyKindDiscord, value: discordID}
}

func (k NaturalKey) Kind() KeyKind { return k.kind }

func (k NaturalKey) Value() string { return k.value }

// Zero reports whether the key carries no credential at all.
func (k NaturalKey) Zero() bool { return k.value == "" }

// OwnedNFT is one token held by a wallet, as reported by the NFT indexer.
type OwnedNFT struct {
	ContractAddress string `bson:"contract_address" json:"contractAddress"`
	TokenID         string `bson:"token_id" json:"tokenId"`
	CollectionName  string `bson:"collection_name" json:"collectionName"`
	CollectionSlug  string `bson:"collection_slug" json:"collectionSlug"`
	ImageURL        string `bson:"image_url" json:"imageUrl"`
	TokenType       string `bson:"token_type" json:"tokenType"`
}

// Review is the minimal shape of a review this service writes on behalf of a
// verified holder. Listing and pagination live elsewhere.
type Review struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"userId"`
	Subject   string    `bson:"subject" json:"subject"`
	Category  string    `bson:"category" json:"category"`
	Rating    int       `bson:"rating" json:"rating"`
	Title     string    `bson:"title" json:"title"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
