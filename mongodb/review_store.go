package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/plaguebrands/ribbit/domain"
)

// ReviewStore backs the gated write endpoint. Listing, likes and pagination
// live in a different service; this one only ever inserts.
type ReviewStore struct {
	reviews *mongo.Collection
}

func NewReviewStore(db *mongo.Database) *ReviewStore {
	return &ReviewStore{reviews: db.Collection("reviews")}
}

func (s *ReviewStore) Insert(ctx context.Context, review *domain.Review) error {
	if _, err := s.reviews.InsertOne(ctx, review); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}
