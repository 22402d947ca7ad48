package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/plaguebrands/ribbit/domain"
)

// UserRepository implements domain.UserRepository. Partial unique indexes on
// wallet_address and discord_id are the serialization point between
// concurrent logins for the same natural key; the service layer recovers
// from the resulting duplicate-key error.
type UserRepository struct {
	users *mongo.Collection
}

func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	repo := &UserRepository{users: db.Collection("users")}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	// Partial, not sparse: only documents that carry the field take part
	// in the uniqueness check, so wallet users and Discord users coexist.
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "wallet_address", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"wallet_address": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "discord_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"discord_id": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func filterForKey(key domain.NaturalKey) bson.M {
	switch key.Kind() {
	case domain.KeyKindDiscord:
		return bson.M{"discord_id": key.Value()}
	default:
		return bson.M{"wallet_address": key.Value()}
	}
}

func (r *UserRepository) FindByKey(ctx context.Context, key domain.NaturalKey) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, filterForKey(key)).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) Insert(ctx context.Context, user *domain.User) error {
	_, err := r.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
