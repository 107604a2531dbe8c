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

const remindersCollection = "scheduled_reminders"

// ReminderRepository handles scheduled reminder data operations
type ReminderRepository struct {
	client *mongodb.MongoClient
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(client *mongodb.MongoClient) *ReminderRepository {
	return &ReminderRepository{client: client}
}

// EnsureIndexes creates necessary indexes for the dispatcher scan
func (r *ReminderRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "fire_at", Value: 1},
			},
			Options: options.Index().SetName("status_fire_idx"),
		},
		{
			Keys: bson.D{
				{Key: "task_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("task_status_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, remindersCollection, indexes)
}

// Create creates a new scheduled reminder
func (r *ReminderRepository) Create(ctx context.Context, reminder *domain.ScheduledReminder) error {
	reminder.ID = primitive.NewObjectID()
	reminder.Status = domain.ReminderStatusPending
	reminder.CreatedAt = time.Now()

	_, err := r.client.Collection(remindersCollection).InsertOne(ctx, reminder)
	return err
}

// FindDue returns all pending reminders whose fire time has passed,
// oldest first
func (r *ReminderRepository) FindDue(ctx context.Context, now time.Time) ([]*domain.ScheduledReminder, error) {
	filter := bson.M{
		"status":  domain.ReminderStatusPending,
		"fire_at": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "fire_at", Value: 1}})

	cursor, err := r.client.Collection(remindersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reminders []*domain.ScheduledReminder
	if err = cursor.All(ctx, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// ListPendingByTask returns the pending reminders for a task
func (r *ReminderRepository) ListPendingByTask(ctx context.Context, taskID primitive.ObjectID, userID string) ([]*domain.ScheduledReminder, error) {
	filter := bson.M{
		"task_id": taskID,
		"user_id": userID,
		"status":  domain.ReminderStatusPending,
	}

	cursor, err := r.client.Collection(remindersCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reminders []*domain.ScheduledReminder
	if err = cursor.All(ctx, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// MarkSent consumes a reminder. Sent reminders are immutable history and
// are never retargeted.
func (r *ReminderRepository) MarkSent(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "status": domain.ReminderStatusPending}
	update := bson.M{"$set": bson.M{"status": domain.ReminderStatusSent}}

	result, err := r.client.Collection(remindersCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// IncrementAttempts counts one failed delivery attempt
func (r *ReminderRepository) IncrementAttempts(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"attempts": 1}}

	_, err := r.client.Collection(remindersCollection).UpdateOne(ctx, filter, update)
	return err
}

// DeletePendingByTask discards a task's pending reminders, e.g. before
// re-planning after a time edit or on task deletion
func (r *ReminderRepository) DeletePendingByTask(ctx context.Context, taskID primitive.ObjectID, userID string) (int64, error) {
	filter := bson.M{
		"task_id": taskID,
		"user_id": userID,
		"status":  domain.ReminderStatusPending,
	}

	result, err := r.client.Collection(remindersCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
