package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus represents the lifecycle status of a task instance
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// GenerationStatus represents the outcome recorded for one generation attempt
type GenerationStatus string

const (
	GenerationStatusCompleted GenerationStatus = "completed"
	GenerationStatusFailed    GenerationStatus = "failed"
	GenerationStatusDeleted   GenerationStatus = "deleted"
)

// RoutineTemplate is a named, reusable ordered set of task definitions
// owned by a user. Templates are soft-disabled via IsActive rather than
// deleted while generation history still references them.
type RoutineTemplate struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID      string             `json:"user_id" bson:"user_id"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	IsActive    bool               `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// TemplateTask is one recurring task definition inside a routine template.
// Only active template tasks are materialized, in OrderIndex order.
type TemplateTask struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TemplateID       primitive.ObjectID `json:"template_id" bson:"template_id"`
	Title            string             `json:"title" bson:"title"`
	Description      string             `json:"description,omitempty" bson:"description,omitempty"`
	Category         string             `json:"category,omitempty" bson:"category,omitempty"`
	Priority         TaskPriority       `json:"priority" bson:"priority"`
	StartTime        string             `json:"start_time,omitempty" bson:"start_time,omitempty"` // "06:00"
	EndTime          string             `json:"end_time,omitempty" bson:"end_time,omitempty"`
	EstimatedMinutes int                `json:"estimated_minutes,omitempty" bson:"estimated_minutes,omitempty"`
	OrderIndex       int                `json:"order_index" bson:"order_index"`
	IsActive         bool               `json:"is_active" bson:"is_active"`
}

// DailyRoutineGeneration records one dated materialization attempt of a
// template. At most one row with status completed may exist per
// (user, template, target date); that tuple is the idempotency key for
// the whole engine. A failed row does not block a later retry.
type DailyRoutineGeneration struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     string             `json:"user_id" bson:"user_id"`
	TemplateID primitive.ObjectID `json:"template_id" bson:"template_id"`
	TargetDate time.Time          `json:"target_date" bson:"target_date"` // calendar day at midnight UTC
	TaskCount  int                `json:"task_count" bson:"task_count"`
	Status     GenerationStatus   `json:"status" bson:"status"`
	Error      string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// GeneratedTaskRecord links a materialized task back to the template task
// and generation that produced it, for traceability and reversible deletion.
type GeneratedTaskRecord struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         string             `json:"user_id" bson:"user_id"`
	GenerationID   primitive.ObjectID `json:"generation_id" bson:"generation_id"`
	TemplateID     primitive.ObjectID `json:"template_id" bson:"template_id"`
	TemplateTaskID primitive.ObjectID `json:"template_task_id" bson:"template_task_id"`
	TaskID         primitive.ObjectID `json:"task_id" bson:"task_id"`
	TargetDate     time.Time          `json:"target_date" bson:"target_date"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// Task is a concrete, dated task instance. The generation engine creates
// these but does not own their lifecycle after creation.
type Task struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID           string             `json:"user_id" bson:"user_id"`
	Title            string             `json:"title" bson:"title"`
	Description      string             `json:"description,omitempty" bson:"description,omitempty"`
	Category         string             `json:"category,omitempty" bson:"category,omitempty"`
	Priority         TaskPriority       `json:"priority" bson:"priority"`
	Status           TaskStatus         `json:"status" bson:"status"`
	DueDate          time.Time          `json:"due_date" bson:"due_date"` // calendar day at midnight UTC
	StartTime        string             `json:"start_time,omitempty" bson:"start_time,omitempty"` // "06:00"
	EndTime          string             `json:"end_time,omitempty" bson:"end_time,omitempty"`
	EstimatedMinutes int                `json:"estimated_minutes,omitempty" bson:"estimated_minutes,omitempty"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" bson:"updated_at"`
}

// ChatBinding is the per-user delivery destination handle. Verification and
// activation are owned by the chat collaborator; the engine only reads it.
type ChatBinding struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	ChatID    string             `json:"chat_id" bson:"chat_id"`
	Verified  bool               `json:"verified" bson:"verified"`
	IsActive  bool               `json:"is_active" bson:"is_active"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// Deliverable reports whether the binding can receive messages
func (b *ChatBinding) Deliverable() bool {
	return b != nil && b.Verified && b.IsActive && b.ChatID != ""
}
