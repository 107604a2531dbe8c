package service

import (
	"context"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/metrics"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsStore reads per-user reminder preferences
type SettingsStore interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.ReminderSettings, error)
}

// BindingStore resolves per-user delivery destinations
type BindingStore interface {
	FindByUser(ctx context.Context, userID string) (*domain.ChatBinding, error)
}

// ReminderWriter persists and discards scheduled reminders
type ReminderWriter interface {
	Create(ctx context.Context, reminder *domain.ScheduledReminder) error
	DeletePendingByTask(ctx context.Context, taskID primitive.ObjectID, userID string) (int64, error)
}

// dueWarningLead is how far ahead of the due date the single due reminder fires
const dueWarningLead = 24 * time.Hour

// PlannerService computes and persists future reminder times for tasks.
// It is invoked reactively by the task collaborator, never polled.
type PlannerService struct {
	settings  SettingsStore
	bindings  BindingStore
	reminders ReminderWriter
	loc       *time.Location
	log       *logger.Logger
	now       func() time.Time
}

// NewPlannerService creates a new reminder planner
func NewPlannerService(settings SettingsStore, bindings BindingStore, reminders ReminderWriter, loc *time.Location, log *logger.Logger) *PlannerService {
	return &PlannerService{
		settings:  settings,
		bindings:  bindings,
		reminders: reminders,
		loc:       loc,
		log:       log,
		now:       time.Now,
	}
}

// deliverable reports whether the user can receive reminders at all
func (s *PlannerService) deliverable(ctx context.Context, userID string) (bool, error) {
	binding, err := s.bindings.FindByUser(ctx, userID)
	if err != nil {
		return false, errors.NewInternalError("failed to resolve delivery channel", err)
	}
	return binding.Deliverable(), nil
}

// PlanTaskStart schedules one reminder per configured minute offset whose
// fire time is still in the future. Offsets are independent rows; a 60 and
// a 15 minute reminder for the same task coexist.
func (s *PlannerService) PlanTaskStart(ctx context.Context, task *domain.Task) error {
	if task.StartTime == "" {
		return nil
	}

	settings, err := s.settings.GetOrCreate(ctx, task.UserID)
	if err != nil {
		return errors.NewInternalError("failed to load reminder settings", err)
	}
	if !settings.TaskStartEnabled {
		return nil
	}

	ok, err := s.deliverable(ctx, task.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	startAt, err := domain.CombineDateAndClock(task.DueDate, task.StartTime, s.loc)
	if err != nil {
		s.log.Warn("Task has malformed start time, skipping reminders", "task_id", task.ID.Hex(), "start_time", task.StartTime)
		return nil
	}

	now := s.now()
	planned := 0
	for _, offset := range settings.StartOffsetsMinutes {
		if offset < 0 {
			continue
		}
		fireAt := startAt.Add(-time.Duration(offset) * time.Minute)
		if !fireAt.After(now) {
			continue
		}

		reminder := &domain.ScheduledReminder{
			UserID:        task.UserID,
			TaskID:        task.ID,
			Type:          domain.ReminderTypeTaskStart,
			FireAt:        fireAt,
			MinutesBefore: offset,
		}
		if err := s.reminders.Create(ctx, reminder); err != nil {
			return errors.NewInternalError("failed to schedule start reminder", err)
		}
		planned++
	}

	if planned > 0 {
		metrics.RemindersPlanned.WithLabelValues(string(domain.ReminderTypeTaskStart)).Add(float64(planned))
		s.log.Debug("Planned start reminders", "task_id", task.ID.Hex(), "count", planned)
	}
	return nil
}

// PlanTaskDue schedules exactly one reminder 24 hours ahead of the due date,
// subject to the same disabled, unbound, and already-past checks.
func (s *PlannerService) PlanTaskDue(ctx context.Context, task *domain.Task) error {
	settings, err := s.settings.GetOrCreate(ctx, task.UserID)
	if err != nil {
		return errors.NewInternalError("failed to load reminder settings", err)
	}
	if !settings.TaskDueEnabled {
		return nil
	}

	ok, err := s.deliverable(ctx, task.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	dayStart := time.Date(task.DueDate.Year(), task.DueDate.Month(), task.DueDate.Day(), 0, 0, 0, 0, s.loc)
	fireAt := dayStart.Add(-dueWarningLead)
	if !fireAt.After(s.now()) {
		return nil
	}

	reminder := &domain.ScheduledReminder{
		UserID:        task.UserID,
		TaskID:        task.ID,
		Type:          domain.ReminderTypeTaskDue,
		FireAt:        fireAt,
		MinutesBefore: int(dueWarningLead / time.Minute),
	}
	if err := s.reminders.Create(ctx, reminder); err != nil {
		return errors.NewInternalError("failed to schedule due reminder", err)
	}

	metrics.RemindersPlanned.WithLabelValues(string(domain.ReminderTypeTaskDue)).Inc()
	return nil
}

// Reschedule discards a task's pending reminders and re-plans from its
// current time fields. Reminders already marked sent are immutable history
// and stay untouched.
func (s *PlannerService) Reschedule(ctx context.Context, task *domain.Task) error {
	if _, err := s.reminders.DeletePendingByTask(ctx, task.ID, task.UserID); err != nil {
		return errors.NewInternalError("failed to discard pending reminders", err)
	}
	if err := s.PlanTaskStart(ctx, task); err != nil {
		return err
	}
	return s.PlanTaskDue(ctx, task)
}

// CancelForTask discards a task's pending reminders, e.g. when the task is
// deleted or completed
func (s *PlannerService) CancelForTask(ctx context.Context, taskID primitive.ObjectID, userID string) error {
	if _, err := s.reminders.DeletePendingByTask(ctx, taskID, userID); err != nil {
		return errors.NewInternalError("failed to discard pending reminders", err)
	}
	return nil
}
