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

const (
	generationsCollection    = "routine_generations"
	generatedTasksCollection = "generated_tasks"
)

// GenerationRepository handles generation records and generated task links
type GenerationRepository struct {
	client *mongodb.MongoClient
}

// NewGenerationRepository creates a new generation repository
func NewGenerationRepository(client *mongodb.MongoClient) *GenerationRepository {
	return &GenerationRepository{client: client}
}

// EnsureIndexes creates necessary indexes. The partial unique index on the
// generation key enforces at-most-one completed generation per
// (user, template, target date) even when two ticks race past the read check.
func (r *GenerationRepository) EnsureIndexes(ctx context.Context) error {
	generationIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "template_id", Value: 1},
				{Key: "target_date", Value: 1},
			},
			Options: options.Index().
				SetName("generation_key_completed_idx").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(domain.GenerationStatusCompleted)}),
		},
		{
			Keys: bson.D{
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("created_idx"),
		},
	}
	if err := r.client.CreateIndexes(ctx, generationsCollection, generationIndexes); err != nil {
		return err
	}

	recordIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "generation_id", Value: 1},
			},
			Options: options.Index().SetName("generation_idx"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "template_id", Value: 1},
				{Key: "target_date", Value: 1},
			},
			Options: options.Index().SetName("record_key_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, generatedTasksCollection, recordIndexes)
}

// Create inserts a generation row. Inserting a second completed row for the
// same generation key fails with a duplicate key error; callers detect that
// with IsDuplicateKey.
func (r *GenerationRepository) Create(ctx context.Context, generation *domain.DailyRoutineGeneration) error {
	if generation.ID.IsZero() {
		generation.ID = primitive.NewObjectID()
	}
	generation.CreatedAt = time.Now()
	generation.TargetDate = domain.DateOnly(generation.TargetDate)

	_, err := r.client.Collection(generationsCollection).InsertOne(ctx, generation)
	return err
}

// IsDuplicateKey reports whether err is a unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// FindCompleted returns the completed generation for the key, or nil
func (r *GenerationRepository) FindCompleted(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (*domain.DailyRoutineGeneration, error) {
	filter := bson.M{
		"user_id":     userID,
		"template_id": templateID,
		"target_date": domain.DateOnly(targetDate),
		"status":      domain.GenerationStatusCompleted,
	}

	var generation domain.DailyRoutineGeneration
	err := r.client.Collection(generationsCollection).FindOne(ctx, filter).Decode(&generation)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &generation, nil
}

// DeleteByID removes a generation row
func (r *GenerationRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.client.Collection(generationsCollection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ListByUser lists a user's generation history, newest first
func (r *GenerationRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*domain.DailyRoutineGeneration, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.client.Collection(generationsCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.client.Collection(generationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var generations []*domain.DailyRoutineGeneration
	if err = cursor.All(ctx, &generations); err != nil {
		return nil, 0, err
	}
	return generations, total, nil
}

// DeleteOlderThan removes generation rows created before the cutoff.
// Used by the retention cleanup trigger; no business invariant depends on it.
func (r *GenerationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.client.Collection(generationsCollection).DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// CreateRecord links a materialized task to its generation
func (r *GenerationRepository) CreateRecord(ctx context.Context, record *domain.GeneratedTaskRecord) error {
	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now()
	record.TargetDate = domain.DateOnly(record.TargetDate)

	_, err := r.client.Collection(generatedTasksCollection).InsertOne(ctx, record)
	return err
}

// ListRecords returns the generated task links for one generation key
func (r *GenerationRepository) ListRecords(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) ([]*domain.GeneratedTaskRecord, error) {
	filter := bson.M{
		"user_id":     userID,
		"template_id": templateID,
		"target_date": domain.DateOnly(targetDate),
	}

	cursor, err := r.client.Collection(generatedTasksCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.GeneratedTaskRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecordsByGeneration removes the links created by one generation run
func (r *GenerationRepository) DeleteRecordsByGeneration(ctx context.Context, generationID primitive.ObjectID) (int64, error) {
	result, err := r.client.Collection(generatedTasksCollection).DeleteMany(ctx, bson.M{"generation_id": generationID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// DeleteRecords removes the generated task links for one generation key
func (r *GenerationRepository) DeleteRecords(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (int64, error) {
	filter := bson.M{
		"user_id":     userID,
		"template_id": templateID,
		"target_date": domain.DateOnly(targetDate),
	}

	result, err := r.client.Collection(generatedTasksCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
