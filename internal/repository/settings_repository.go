package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const settingsCollection = "reminder_settings"

// SettingsRepository handles reminder settings data operations
type SettingsRepository struct {
	client *mongodb.MongoClient
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(client *mongodb.MongoClient) *SettingsRepository {
	return &SettingsRepository{client: client}
}

// EnsureIndexes creates the per-user uniqueness index
func (r *SettingsRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetName("user_idx").SetUnique(true),
		},
	}
	return r.client.CreateIndexes(ctx, settingsCollection, indexes)
}

// GetOrCreate returns the user's settings, creating defaults on first access
func (r *SettingsRepository) GetOrCreate(ctx context.Context, userID string) (*domain.ReminderSettings, error) {
	var settings domain.ReminderSettings
	err := r.client.Collection(settingsCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if err == nil {
		return &settings, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	defaults := domain.DefaultReminderSettings(userID)
	defaults.ID = primitive.NewObjectID()
	defaults.CreatedAt = time.Now()
	defaults.UpdatedAt = time.Now()

	if _, err := r.client.Collection(settingsCollection).InsertOne(ctx, defaults); err != nil {
		// A concurrent first access may have created the document already
		if mongo.IsDuplicateKeyError(err) {
			err = r.client.Collection(settingsCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
			if err != nil {
				return nil, err
			}
			return &settings, nil
		}
		return nil, err
	}
	return defaults, nil
}

// Update upserts a user's settings
func (r *SettingsRepository) Update(ctx context.Context, settings *domain.ReminderSettings) error {
	settings.UpdatedAt = time.Now()

	filter := bson.M{"user_id": settings.UserID}
	update := bson.M{"$set": settings}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(settingsCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

// ListSummaryEnabled returns every settings document with the daily summary on
func (r *SettingsRepository) ListSummaryEnabled(ctx context.Context) ([]*domain.ReminderSettings, error) {
	cursor, err := r.client.Collection(settingsCollection).Find(ctx, bson.M{"daily_summary_enabled": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var settings []*domain.ReminderSettings
	if err = cursor.All(ctx, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}
