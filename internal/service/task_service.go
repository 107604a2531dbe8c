package service

import (
	"context"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TaskStore is the task repository surface the collaborator writes through
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	FindByID(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error)
	DeleteMany(ctx context.Context, ids []primitive.ObjectID, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*domain.Task, int64, error)
}

// ReminderPlanner is the planner surface driven by task lifecycle events
type ReminderPlanner interface {
	PlanTaskStart(ctx context.Context, task *domain.Task) error
	PlanTaskDue(ctx context.Context, task *domain.Task) error
	Reschedule(ctx context.Context, task *domain.Task) error
	CancelForTask(ctx context.Context, taskID primitive.ObjectID, userID string) error
}

// TaskService is the task collaborator: every task write flows through it so
// reminder planning stays in step with task state. Planner failures are
// logged, never surfaced; a task write must not fail because reminder rows
// could not be written.
type TaskService struct {
	tasks   TaskStore
	planner ReminderPlanner
	log     *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(tasks TaskStore, planner ReminderPlanner, log *logger.Logger) *TaskService {
	return &TaskService{
		tasks:   tasks,
		planner: planner,
		log:     log,
	}
}

// CreateTask persists a task and plans its reminders
func (s *TaskService) CreateTask(ctx context.Context, task *domain.Task) error {
	if task.UserID == "" {
		return errors.NewValidationError("user_id is required", nil)
	}
	if task.Title == "" {
		return errors.NewValidationError("title is required", nil)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return errors.NewInternalError("failed to create task", err)
	}

	if err := s.planner.PlanTaskStart(ctx, task); err != nil {
		s.log.Error("Failed to plan start reminders", "error", err, "task_id", task.ID.Hex())
	}
	if err := s.planner.PlanTaskDue(ctx, task); err != nil {
		s.log.Error("Failed to plan due reminder", "error", err, "task_id", task.ID.Hex())
	}
	return nil
}

// GetTask returns one task scoped to its owner
func (s *TaskService) GetTask(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error) {
	task, err := s.tasks.FindByID(ctx, id, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NewNotFoundError("task not found", err)
		}
		return nil, errors.NewInternalError("failed to load task", err)
	}
	return task, nil
}

// ListTasks lists a user's tasks with pagination
func (s *TaskService) ListTasks(ctx context.Context, userID string, page, pageSize int) ([]*domain.Task, int64, error) {
	tasks, total, err := s.tasks.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to list tasks", err)
	}
	return tasks, total, nil
}

// UpdateTask persists a task edit and keeps reminders consistent with it.
// Time field changes reschedule pending reminders; completing the task
// cancels them.
func (s *TaskService) UpdateTask(ctx context.Context, task *domain.Task) error {
	before, err := s.tasks.FindByID(ctx, task.ID, task.UserID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return errors.NewNotFoundError("task not found", err)
		}
		return errors.NewInternalError("failed to load task", err)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		if err == mongo.ErrNoDocuments {
			return errors.NewNotFoundError("task not found", err)
		}
		return errors.NewInternalError("failed to update task", err)
	}

	switch {
	case task.Status == domain.TaskStatusDone && before.Status != domain.TaskStatusDone:
		if err := s.planner.CancelForTask(ctx, task.ID, task.UserID); err != nil {
			s.log.Error("Failed to cancel reminders for completed task", "error", err, "task_id", task.ID.Hex())
		}
	case timeFieldsChanged(before, task):
		if err := s.planner.Reschedule(ctx, task); err != nil {
			s.log.Error("Failed to reschedule reminders", "error", err, "task_id", task.ID.Hex())
		}
	}
	return nil
}

func timeFieldsChanged(before, after *domain.Task) bool {
	return !before.DueDate.Equal(after.DueDate) ||
		before.StartTime != after.StartTime ||
		before.EndTime != after.EndTime
}

// DeleteTask removes a task and its pending reminders
func (s *TaskService) DeleteTask(ctx context.Context, id primitive.ObjectID, userID string) error {
	_, err := s.tasks.Delete(ctx, id, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return errors.NewNotFoundError("task not found", err)
		}
		return errors.NewInternalError("failed to delete task", err)
	}

	if err := s.planner.CancelForTask(ctx, id, userID); err != nil {
		s.log.Error("Failed to cancel reminders for deleted task", "error", err, "task_id", id.Hex())
	}
	return nil
}

// DeleteTasks removes a set of tasks and their pending reminders. Used by
// the generation engine for rollback and generation deletion.
func (s *TaskService) DeleteTasks(ctx context.Context, ids []primitive.ObjectID, userID string) (int64, error) {
	for _, id := range ids {
		if err := s.planner.CancelForTask(ctx, id, userID); err != nil {
			s.log.Error("Failed to cancel reminders for deleted task", "error", err, "task_id", id.Hex())
		}
	}

	deleted, err := s.tasks.DeleteMany(ctx, ids, userID)
	if err != nil {
		return 0, errors.NewInternalError("failed to delete tasks", err)
	}
	return deleted, nil
}
