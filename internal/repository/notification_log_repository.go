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

const notificationLogCollection = "notification_log"

// NotificationLogRepository handles the append-only notification audit log
type NotificationLogRepository struct {
	client *mongodb.MongoClient
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(client *mongodb.MongoClient) *NotificationLogRepository {
	return &NotificationLogRepository{client: client}
}

// EnsureIndexes creates necessary indexes for history queries and dedup scans
func (r *NotificationLogRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("user_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "task_id", Value: 1},
				{Key: "type", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("task_type_created_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, notificationLogCollection, indexes)
}

// Append inserts a log entry. Entries are never updated afterwards.
func (r *NotificationLogRepository) Append(ctx context.Context, entry *domain.NotificationLog) error {
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()

	_, err := r.client.Collection(notificationLogCollection).InsertOne(ctx, entry)
	return err
}

// CountRecentByTask counts delivered entries of one type for a task newer
// than since. The overdue sweep uses this as its dedup window; only sent
// entries consume it, so a failed attempt does not suppress the retry.
func (r *NotificationLogRepository) CountRecentByTask(ctx context.Context, taskID primitive.ObjectID, notificationType domain.NotificationType, since time.Time) (int64, error) {
	filter := bson.M{
		"task_id": taskID,
		"type":    notificationType,
		"status":  domain.DeliveryStatusSent,
		"sent_at": bson.M{"$gte": since},
	}
	return r.client.Collection(notificationLogCollection).CountDocuments(ctx, filter)
}

// ListByUser lists a user's notification history with pagination
func (r *NotificationLogRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*domain.NotificationLog, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.client.Collection(notificationLogCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.client.Collection(notificationLogCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []*domain.NotificationLog
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Stats aggregates a user's log entries by delivery status
func (r *NotificationLogRepository) Stats(ctx context.Context, userID string) (*domain.NotificationStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.client.Collection(notificationLogCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status domain.DeliveryStatus `bson:"_id"`
		Count  int64                 `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	stats := &domain.NotificationStats{}
	for _, row := range rows {
		switch row.Status {
		case domain.DeliveryStatusSent:
			stats.Sent = row.Count
		case domain.DeliveryStatusSkipped:
			stats.Skipped = row.Count
		case domain.DeliveryStatusFailed:
			stats.Failed = row.Count
		}
	}
	return stats, nil
}
