package consumer

import (
	"context"
	"encoding/json"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"github.com/vhvplatform/go-routine-service/internal/shared/rabbitmq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	taskExchange   = "tasks"
	taskQueue      = "routine_reminder_planner"
	taskRoutingKey = "task.*"
	consumerTag    = "routine-service"
)

// TaskEvent is the wire format published by the task collaborator when a
// task changes outside this service.
type TaskEvent struct {
	Type   string `json:"type"` // task.created, task.updated, task.deleted
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// TaskLoader reads the current task state for re-planning
type TaskLoader interface {
	FindByID(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error)
}

// Planner is the reminder planning surface driven by task events
type Planner interface {
	Reschedule(ctx context.Context, task *domain.Task) error
	CancelForTask(ctx context.Context, taskID primitive.ObjectID, userID string) error
}

// TaskEventConsumer keeps scheduled reminders in step with task changes made
// by other services. Edits replan, deletions cancel.
type TaskEventConsumer struct {
	client  *rabbitmq.RabbitMQClient
	tasks   TaskLoader
	planner Planner
	log     *logger.Logger
}

// NewTaskEventConsumer creates a new task event consumer
func NewTaskEventConsumer(client *rabbitmq.RabbitMQClient, tasks TaskLoader, planner Planner, log *logger.Logger) *TaskEventConsumer {
	return &TaskEventConsumer{
		client:  client,
		tasks:   tasks,
		planner: planner,
		log:     log,
	}
}

// Start starts consuming task events. It blocks until the message channel
// closes.
func (c *TaskEventConsumer) Start() error {
	c.log.Info("Starting task event consumer", "queue", taskQueue)

	if err := c.client.DeclareExchange(taskExchange, "topic"); err != nil {
		c.log.Error("Failed to declare exchange", "error", err)
		return err
	}
	if err := c.client.DeclareQueue(taskQueue); err != nil {
		c.log.Error("Failed to declare queue", "error", err)
		return err
	}
	if err := c.client.BindQueue(taskQueue, taskRoutingKey, taskExchange); err != nil {
		c.log.Error("Failed to bind queue", "error", err)
		return err
	}

	messages, err := c.client.Consume(taskQueue, consumerTag)
	if err != nil {
		c.log.Error("Failed to start consuming", "error", err)
		return err
	}

	for msg := range messages {
		var event TaskEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			c.log.Error("Failed to unmarshal task event", "error", err)
			msg.Nack(false, false) // Don't requeue invalid messages
			continue
		}

		ctx := context.Background()
		if err := c.handle(ctx, &event); err != nil {
			c.log.Error("Failed to process task event", "error", err, "type", event.Type, "task_id", event.TaskID)
			msg.Nack(false, true) // Requeue for retry
			continue
		}

		msg.Ack(false)
		c.log.Debug("Task event processed", "type", event.Type, "task_id", event.TaskID)
	}

	return nil
}

func (c *TaskEventConsumer) handle(ctx context.Context, event *TaskEvent) error {
	taskID, err := primitive.ObjectIDFromHex(event.TaskID)
	if err != nil {
		// Unparseable IDs can never succeed; drop rather than requeue.
		c.log.Warn("Task event with invalid task id", "task_id", event.TaskID)
		return nil
	}

	switch event.Type {
	case "task.created", "task.updated":
		task, err := c.tasks.FindByID(ctx, taskID, event.UserID)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				// Deleted between publish and consume; cancel whatever remains.
				return c.planner.CancelForTask(ctx, taskID, event.UserID)
			}
			return err
		}
		return c.planner.Reschedule(ctx, task)

	case "task.deleted":
		return c.planner.CancelForTask(ctx, taskID, event.UserID)

	default:
		c.log.Warn("Unknown task event type", "type", event.Type)
		return nil
	}
}
