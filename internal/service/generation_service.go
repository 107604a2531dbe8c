package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/metrics"
	"github.com/vhvplatform/go-routine-service/internal/repository"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TemplateStore is the template repository surface the engine reads
type TemplateStore interface {
	FindWithTasks(ctx context.Context, id primitive.ObjectID, userID string) (*repository.TemplateBundle, error)
	ListActive(ctx context.Context, userID string) ([]*domain.RoutineTemplate, error)
}

// GenerationStore persists generation rows and generated task links
type GenerationStore interface {
	Create(ctx context.Context, generation *domain.DailyRoutineGeneration) error
	FindCompleted(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (*domain.DailyRoutineGeneration, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	CreateRecord(ctx context.Context, record *domain.GeneratedTaskRecord) error
	ListRecords(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) ([]*domain.GeneratedTaskRecord, error)
	DeleteRecords(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (int64, error)
	DeleteRecordsByGeneration(ctx context.Context, generationID primitive.ObjectID) (int64, error)
}

// TaskWriter is the task collaborator surface the engine writes through.
// Its implementation owns the reminder planning trigger on create/delete.
type TaskWriter interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	DeleteTasks(ctx context.Context, ids []primitive.ObjectID, userID string) (int64, error)
}

// GenerationNotifier delivers the optional routine-generated notice
type GenerationNotifier interface {
	NotifyGenerated(ctx context.Context, userID, templateName string, taskCount int, targetDate time.Time)
}

// GenerationService materializes routine templates into dated task instances
type GenerationService struct {
	templates   TemplateStore
	generations GenerationStore
	tasks       TaskWriter
	notifier    GenerationNotifier
	log         *logger.Logger
}

// NewGenerationService creates a new generation service
func NewGenerationService(templates TemplateStore, generations GenerationStore, tasks TaskWriter, notifier GenerationNotifier, log *logger.Logger) *GenerationService {
	return &GenerationService{
		templates:   templates,
		generations: generations,
		tasks:       tasks,
		notifier:    notifier,
		log:         log,
	}
}

// loadBundle fetches the template with its active tasks and validates it
func (s *GenerationService) loadBundle(ctx context.Context, userID string, templateID primitive.ObjectID) (*repository.TemplateBundle, error) {
	bundle, err := s.templates.FindWithTasks(ctx, templateID, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NewTemplateNotFoundError("routine template not found", err)
		}
		return nil, errors.NewInternalError("failed to load template", err)
	}
	if !bundle.Template.IsActive {
		return nil, errors.NewTemplateInactiveError("routine template is disabled")
	}
	if len(bundle.Tasks) == 0 {
		return nil, errors.NewTemplateEmptyError("routine template has no active tasks")
	}
	return bundle, nil
}

// Generate materializes one template for one calendar day. At most one
// completed generation can exist per (user, template, date): the check here
// is read-then-decide, and the partial unique index on the generation key
// closes the race between two overlapping ticks.
func (s *GenerationService) Generate(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (*domain.GenerateResult, error) {
	targetDate = domain.DateOnly(targetDate)

	// The idempotency check comes first: a completed generation answers
	// AlreadyGenerated even if the template was disabled or emptied since.
	existing, err := s.generations.FindCompleted(ctx, userID, templateID, targetDate)
	if err != nil {
		return nil, errors.NewInternalError("failed to check generation history", err)
	}
	if existing != nil {
		metrics.GenerationsTotal.WithLabelValues("already_generated").Inc()
		return &domain.GenerateResult{
			Success:    false,
			Message:    "routine already generated for this date",
			Generation: existing,
		}, errors.NewAlreadyGeneratedError("routine already generated for this date")
	}

	bundle, err := s.loadBundle(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}

	generationID := primitive.NewObjectID()
	createdIDs := make([]primitive.ObjectID, 0, len(bundle.Tasks))

	for _, tmplTask := range bundle.Tasks {
		task := &domain.Task{
			UserID:           userID,
			Title:            tmplTask.Title,
			Description:      tmplTask.Description,
			Category:         tmplTask.Category,
			Priority:         tmplTask.Priority,
			Status:           domain.TaskStatusPending,
			DueDate:          targetDate,
			StartTime:        tmplTask.StartTime,
			EndTime:          tmplTask.EndTime,
			EstimatedMinutes: tmplTask.EstimatedMinutes,
		}

		if err := s.tasks.CreateTask(ctx, task); err != nil {
			return nil, s.recordFailure(ctx, userID, templateID, targetDate, len(createdIDs), fmt.Errorf("create task %q: %w", tmplTask.Title, err))
		}
		createdIDs = append(createdIDs, task.ID)

		record := &domain.GeneratedTaskRecord{
			UserID:         userID,
			GenerationID:   generationID,
			TemplateID:     templateID,
			TemplateTaskID: tmplTask.ID,
			TaskID:         task.ID,
			TargetDate:     targetDate,
		}
		if err := s.generations.CreateRecord(ctx, record); err != nil {
			return nil, s.recordFailure(ctx, userID, templateID, targetDate, len(createdIDs), fmt.Errorf("link task %q: %w", tmplTask.Title, err))
		}
	}

	generation := &domain.DailyRoutineGeneration{
		ID:         generationID,
		UserID:     userID,
		TemplateID: templateID,
		TargetDate: targetDate,
		TaskCount:  len(createdIDs),
		Status:     domain.GenerationStatusCompleted,
	}
	if err := s.generations.Create(ctx, generation); err != nil {
		if repository.IsDuplicateKey(err) {
			// A concurrent run won the unique index; undo this run's output
			// so the winner's tasks are the only ones left.
			s.rollback(ctx, userID, generationID, createdIDs)
			metrics.GenerationsTotal.WithLabelValues("already_generated").Inc()
			return &domain.GenerateResult{
				Success: false,
				Message: "routine already generated for this date",
			}, errors.NewAlreadyGeneratedError("routine generated concurrently")
		}
		return nil, s.recordFailure(ctx, userID, templateID, targetDate, len(createdIDs), fmt.Errorf("write generation row: %w", err))
	}

	metrics.GenerationsTotal.WithLabelValues("completed").Inc()
	metrics.TasksMaterialized.Add(float64(len(createdIDs)))
	s.log.Info("Routine generated",
		"user_id", userID,
		"template_id", templateID.Hex(),
		"target_date", targetDate.Format("2006-01-02"),
		"tasks", len(createdIDs))

	if s.notifier != nil {
		s.notifier.NotifyGenerated(ctx, userID, bundle.Template.Name, len(createdIDs), targetDate)
	}

	return &domain.GenerateResult{
		Success:        true,
		TasksGenerated: len(createdIDs),
		Generation:     generation,
	}, nil
}

// recordFailure writes a failed generation row with the partial count.
// Already-created tasks stay in place; the failed row does not block a
// retry, which keeps partial success visible instead of silently hidden.
func (s *GenerationService) recordFailure(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time, partialCount int, cause error) error {
	failed := &domain.DailyRoutineGeneration{
		UserID:     userID,
		TemplateID: templateID,
		TargetDate: targetDate,
		TaskCount:  partialCount,
		Status:     domain.GenerationStatusFailed,
		Error:      cause.Error(),
	}
	if err := s.generations.Create(ctx, failed); err != nil {
		s.log.Error("Failed to record failed generation", "error", err, "user_id", userID, "template_id", templateID.Hex())
	}

	metrics.GenerationsTotal.WithLabelValues("failed").Inc()
	s.log.Error("Routine generation failed",
		"error", cause,
		"user_id", userID,
		"template_id", templateID.Hex(),
		"partial_tasks", partialCount)

	return errors.NewInternalError("routine generation failed", cause)
}

// rollback removes the tasks and links created by a run that lost the
// completed-row race
func (s *GenerationService) rollback(ctx context.Context, userID string, generationID primitive.ObjectID, taskIDs []primitive.ObjectID) {
	if _, err := s.tasks.DeleteTasks(ctx, taskIDs, userID); err != nil {
		s.log.Error("Failed to roll back duplicate generation tasks", "error", err, "user_id", userID)
	}
	if _, err := s.generations.DeleteRecordsByGeneration(ctx, generationID); err != nil {
		s.log.Error("Failed to roll back duplicate generation records", "error", err, "user_id", userID)
	}
}

// GenerateAll fans Generate out over every active template for the user.
// A single template's failure never aborts the batch; the result carries a
// per-template breakdown.
func (s *GenerationService) GenerateAll(ctx context.Context, userID string, targetDate time.Time) (*domain.GenerateAllResult, error) {
	targetDate = domain.DateOnly(targetDate)

	templates, err := s.templates.ListActive(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list active templates", err)
	}

	result := &domain.GenerateAllResult{Outcomes: make([]domain.TemplateOutcome, 0, len(templates))}
	for _, template := range templates {
		outcome := domain.TemplateOutcome{
			TemplateID:   template.ID.Hex(),
			TemplateName: template.Name,
		}

		generated, err := s.Generate(ctx, userID, template.ID, targetDate)
		switch {
		case err == nil:
			outcome.Status = domain.TemplateOutcomeGenerated
			outcome.TasksGenerated = generated.TasksGenerated
			result.Generated++
			result.TotalTasksGenerated += generated.TasksGenerated
		case errors.HasCode(err, errors.CodeAlreadyGenerated):
			outcome.Status = domain.TemplateOutcomeSkipped
			result.Skipped++
		default:
			outcome.Status = domain.TemplateOutcomeFailed
			outcome.Error = err.Error()
			result.Failed++
			s.log.Error("Template generation failed in batch", "error", err, "user_id", userID, "template_id", template.ID.Hex())
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

// Preview returns the tasks a generation would create, without persisting
func (s *GenerationService) Preview(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) ([]domain.TaskPreview, error) {
	bundle, err := s.loadBundle(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}

	previews := make([]domain.TaskPreview, 0, len(bundle.Tasks))
	for _, tmplTask := range bundle.Tasks {
		previews = append(previews, domain.TaskPreview{
			Title:            tmplTask.Title,
			Description:      tmplTask.Description,
			Category:         tmplTask.Category,
			Priority:         tmplTask.Priority,
			StartTime:        tmplTask.StartTime,
			EndTime:          tmplTask.EndTime,
			EstimatedMinutes: tmplTask.EstimatedMinutes,
			OrderIndex:       tmplTask.OrderIndex,
		})
	}
	return previews, nil
}

// DeleteGeneration rolls back a completed generation: it removes exactly the
// tasks linked through the generated task records, replaces the completed
// row with a deleted-status row, and thereby allows re-generation for the
// same date.
func (s *GenerationService) DeleteGeneration(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (int, error) {
	targetDate = domain.DateOnly(targetDate)

	generation, err := s.generations.FindCompleted(ctx, userID, templateID, targetDate)
	if err != nil {
		return 0, errors.NewInternalError("failed to check generation history", err)
	}
	if generation == nil {
		return 0, errors.NewNotFoundError("no completed generation for this date", nil)
	}

	records, err := s.generations.ListRecords(ctx, userID, templateID, targetDate)
	if err != nil {
		return 0, errors.NewInternalError("failed to load generated task records", err)
	}

	taskIDs := make([]primitive.ObjectID, 0, len(records))
	for _, record := range records {
		taskIDs = append(taskIDs, record.TaskID)
	}

	deleted, err := s.tasks.DeleteTasks(ctx, taskIDs, userID)
	if err != nil {
		return 0, errors.NewInternalError("failed to delete generated tasks", err)
	}

	if _, err := s.generations.DeleteRecords(ctx, userID, templateID, targetDate); err != nil {
		return 0, errors.NewInternalError("failed to delete generated task records", err)
	}
	if err := s.generations.DeleteByID(ctx, generation.ID); err != nil {
		return 0, errors.NewInternalError("failed to delete generation row", err)
	}

	marker := &domain.DailyRoutineGeneration{
		UserID:     userID,
		TemplateID: templateID,
		TargetDate: targetDate,
		TaskCount:  int(deleted),
		Status:     domain.GenerationStatusDeleted,
	}
	if err := s.generations.Create(ctx, marker); err != nil {
		return 0, errors.NewInternalError("failed to record generation deletion", err)
	}

	s.log.Info("Generation deleted",
		"user_id", userID,
		"template_id", templateID.Hex(),
		"target_date", targetDate.Format("2006-01-02"),
		"tasks_deleted", deleted)

	return int(deleted), nil
}
