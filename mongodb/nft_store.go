package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/plaguebrands/ribbit/domain"
)

// NFTStore persists the per-user NFT inventory snapshot taken at wallet
// login.
type NFTStore struct {
	nfts *mongo.Collection
}

func NewNFTStore(db *mongo.Database) *NFTStore {
	return &NFTStore{nfts: db.Collection("user_nfts")}
}

type storedNFT struct {
	UserID string `bson:"user_id"`
	domain.OwnedNFT `bson:",inline"`
}

// ReplaceForUser swaps the stored inventory for a fresh listing. Delete and
// insert mirror the sync semantics: the snapshot always reflects the latest
// successful fetch in full.
func (s *NFTStore) ReplaceForUser(ctx context.Context, userID string, nfts []domain.OwnedNFT) error {
	if _, err := s.nfts.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("clear NFT inventory: %w", err)
	}
	if len(nfts) == 0 {
		return nil
	}

	docs := make([]any, 0, len(nfts))
	for _, nft := range nfts {
		docs = append(docs, storedNFT{UserID: userID, OwnedNFT: nft})
	}
	if _, err := s.nfts.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("write NFT inventory: %w", err)
	}
	return nil
}
