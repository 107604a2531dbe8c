package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const bindingsCollection = "chat_bindings"

// BindingRepository reads per-user delivery destinations. Verification and
// activation of a binding are owned by the chat collaborator.
type BindingRepository struct {
	client *mongodb.MongoClient
}

// NewBindingRepository creates a new binding repository
func NewBindingRepository(client *mongodb.MongoClient) *BindingRepository {
	return &BindingRepository{client: client}
}

// EnsureIndexes creates the per-user uniqueness index
func (r *BindingRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetName("user_idx").SetUnique(true),
		},
	}
	return r.client.CreateIndexes(ctx, bindingsCollection, indexes)
}

// FindByUser returns the user's binding, or nil when none exists
func (r *BindingRepository) FindByUser(ctx context.Context, userID string) (*domain.ChatBinding, error) {
	var binding domain.ChatBinding
	err := r.client.Collection(bindingsCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&binding)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

// Upsert stores a binding, keyed by user
func (r *BindingRepository) Upsert(ctx context.Context, binding *domain.ChatBinding) error {
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = time.Now()
	}

	filter := bson.M{"user_id": binding.UserID}
	update := bson.M{"$set": binding}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(bindingsCollection).UpdateOne(ctx, filter, update, opts)
	return err
}
