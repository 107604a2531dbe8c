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

const tasksCollection = "tasks"

// TaskRepository handles task instance data operations
type TaskRepository struct {
	client *mongodb.MongoClient
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(client *mongodb.MongoClient) *TaskRepository {
	return &TaskRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "due_date", Value: 1},
			},
			Options: options.Index().SetName("user_due_idx"),
		},
		{
			Keys: bson.D{
				{Key: "due_date", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("due_status_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, tasksCollection, indexes)
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	task.ID = primitive.NewObjectID()
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	task.DueDate = domain.DateOnly(task.DueDate)
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}

	_, err := r.client.Collection(tasksCollection).InsertOne(ctx, task)
	return err
}

// FindByID finds a task by ID scoped to its owner
func (r *TaskRepository) FindByID(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error) {
	var task domain.Task
	filter := bson.M{"_id": id, "user_id": userID}
	err := r.client.Collection(tasksCollection).FindOne(ctx, filter).Decode(&task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Update updates a task
func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	task.UpdatedAt = time.Now()
	task.DueDate = domain.DateOnly(task.DueDate)

	filter := bson.M{"_id": task.ID, "user_id": task.UserID}
	update := bson.M{"$set": task}

	result, err := r.client.Collection(tasksCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a task and returns the deleted document
func (r *TaskRepository) Delete(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error) {
	var task domain.Task
	filter := bson.M{"_id": id, "user_id": userID}
	err := r.client.Collection(tasksCollection).FindOneAndDelete(ctx, filter).Decode(&task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteMany removes a set of tasks belonging to one user
func (r *TaskRepository) DeleteMany(ctx context.Context, ids []primitive.ObjectID, userID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	filter := bson.M{"_id": bson.M{"$in": ids}, "user_id": userID}
	result, err := r.client.Collection(tasksCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// ListByUser lists a user's tasks with pagination, newest first
func (r *TaskRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*domain.Task, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.client.Collection(tasksCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.client.Collection(tasksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListDueOn lists a user's tasks due on the given calendar day
func (r *TaskRepository) ListDueOn(ctx context.Context, userID string, date time.Time) ([]*domain.Task, error) {
	filter := bson.M{"user_id": userID, "due_date": domain.DateOnly(date)}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.client.Collection(tasksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOverdue lists unfinished tasks due before the cutoff day, oldest
// first. A limit of zero scans without bound; the sweep caps the alerts it
// sends, not the candidates it reads.
func (r *TaskRepository) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*domain.Task, error) {
	filter := bson.M{
		"due_date": bson.M{"$lt": domain.DateOnly(before)},
		"status":   bson.M{"$ne": domain.TaskStatusDone},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "due_date", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.client.Collection(tasksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.Task
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
