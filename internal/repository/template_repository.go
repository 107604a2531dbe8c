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
	templatesCollection     = "routine_templates"
	templateTasksCollection = "template_tasks"
)

// TemplateRepository handles routine template and template task data operations
type TemplateRepository struct {
	client *mongodb.MongoClient
	cache  *TemplateCache
}

// NewTemplateRepository creates a new template repository with caching
func NewTemplateRepository(client *mongodb.MongoClient) *TemplateRepository {
	return &TemplateRepository{
		client: client,
		cache:  NewTemplateCache(5 * time.Minute),
	}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *TemplateRepository) EnsureIndexes(ctx context.Context) error {
	templateIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "is_active", Value: 1},
			},
			Options: options.Index().SetName("user_active_idx"),
		},
	}
	if err := r.client.CreateIndexes(ctx, templatesCollection, templateIndexes); err != nil {
		return err
	}

	taskIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "template_id", Value: 1},
				{Key: "order_index", Value: 1},
			},
			Options: options.Index().SetName("template_order_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, templateTasksCollection, taskIndexes)
}

// Create creates a new routine template
func (r *TemplateRepository) Create(ctx context.Context, template *domain.RoutineTemplate) error {
	template.ID = primitive.NewObjectID()
	template.CreatedAt = time.Now()
	template.UpdatedAt = time.Now()

	_, err := r.client.Collection(templatesCollection).InsertOne(ctx, template)
	return err
}

// FindByID finds a template by ID scoped to its owner
func (r *TemplateRepository) FindByID(ctx context.Context, id primitive.ObjectID, userID string) (*domain.RoutineTemplate, error) {
	var template domain.RoutineTemplate
	filter := bson.M{"_id": id, "user_id": userID}
	err := r.client.Collection(templatesCollection).FindOne(ctx, filter).Decode(&template)
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// FindWithTasks loads a template and its active tasks ordered by order index,
// with caching
func (r *TemplateRepository) FindWithTasks(ctx context.Context, id primitive.ObjectID, userID string) (*TemplateBundle, error) {
	cacheKey := "id:" + id.Hex() + ":user:" + userID
	if bundle, found := r.cache.Get(cacheKey); found {
		return bundle, nil
	}

	template, err := r.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"template_id": id, "is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "order_index", Value: 1}})
	cursor, err := r.client.Collection(templateTasksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.TemplateTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}

	bundle := &TemplateBundle{Template: template, Tasks: tasks}
	_ = r.cache.Set(cacheKey, bundle)

	return bundle, nil
}

// ListActive lists a user's active templates
func (r *TemplateRepository) ListActive(ctx context.Context, userID string) ([]*domain.RoutineTemplate, error) {
	filter := bson.M{"user_id": userID, "is_active": true}
	cursor, err := r.client.Collection(templatesCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []*domain.RoutineTemplate
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// ListByUser lists all of a user's templates
func (r *TemplateRepository) ListByUser(ctx context.Context, userID string) ([]*domain.RoutineTemplate, error) {
	filter := bson.M{"user_id": userID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.client.Collection(templatesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []*domain.RoutineTemplate
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// DistinctActiveOwners returns every user with at least one active template.
// The orchestrator fans generation out over this set.
func (r *TemplateRepository) DistinctActiveOwners(ctx context.Context) ([]string, error) {
	values, err := r.client.Collection(templatesCollection).Distinct(ctx, "user_id", bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}

	owners := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			owners = append(owners, s)
		}
	}
	return owners, nil
}

// Update updates a template and invalidates its cache entry
func (r *TemplateRepository) Update(ctx context.Context, template *domain.RoutineTemplate) error {
	template.UpdatedAt = time.Now()

	filter := bson.M{"_id": template.ID, "user_id": template.UserID}
	update := bson.M{"$set": template}

	result, err := r.client.Collection(templatesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	r.cache.Invalidate("id:" + template.ID.Hex() + ":user:" + template.UserID)
	return nil
}

// SetActive toggles a template's active flag. Templates referenced by
// generation history are disabled this way instead of being deleted.
func (r *TemplateRepository) SetActive(ctx context.Context, id primitive.ObjectID, userID string, active bool) error {
	filter := bson.M{"_id": id, "user_id": userID}
	update := bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now()}}

	result, err := r.client.Collection(templatesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	r.cache.Invalidate("id:" + id.Hex() + ":user:" + userID)
	return nil
}

// AddTask appends a task definition to a template
func (r *TemplateRepository) AddTask(ctx context.Context, userID string, task *domain.TemplateTask) error {
	if _, err := r.FindByID(ctx, task.TemplateID, userID); err != nil {
		return err
	}

	task.ID = primitive.NewObjectID()
	_, err := r.client.Collection(templateTasksCollection).InsertOne(ctx, task)
	if err != nil {
		return err
	}

	r.cache.Invalidate("id:" + task.TemplateID.Hex() + ":user:" + userID)
	return nil
}

// UpdateTask updates a template task
func (r *TemplateRepository) UpdateTask(ctx context.Context, userID string, task *domain.TemplateTask) error {
	if _, err := r.FindByID(ctx, task.TemplateID, userID); err != nil {
		return err
	}

	filter := bson.M{"_id": task.ID, "template_id": task.TemplateID}
	update := bson.M{"$set": task}

	result, err := r.client.Collection(templateTasksCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	r.cache.Invalidate("id:" + task.TemplateID.Hex() + ":user:" + userID)
	return nil
}

// RemoveTask deletes a task definition from a template
func (r *TemplateRepository) RemoveTask(ctx context.Context, userID string, templateID, taskID primitive.ObjectID) error {
	if _, err := r.FindByID(ctx, templateID, userID); err != nil {
		return err
	}

	result, err := r.client.Collection(templateTasksCollection).DeleteOne(ctx, bson.M{"_id": taskID, "template_id": templateID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}

	r.cache.Invalidate("id:" + templateID.Hex() + ":user:" + userID)
	return nil
}
