package service

import (
	"context"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/delivery"
	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/metrics"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ReminderStore is the scheduled reminder surface the dispatcher consumes
type ReminderStore interface {
	FindDue(ctx context.Context, now time.Time) ([]*domain.ScheduledReminder, error)
	MarkSent(ctx context.Context, id primitive.ObjectID) error
	IncrementAttempts(ctx context.Context, id primitive.ObjectID) error
}

// TaskReader is the task surface the dispatcher reads
type TaskReader interface {
	FindByID(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error)
	ListDueOn(ctx context.Context, userID string, date time.Time) ([]*domain.Task, error)
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]*domain.Task, error)
}

// NotificationLogStore appends delivery outcomes and serves dedup scans
type NotificationLogStore interface {
	Append(ctx context.Context, entry *domain.NotificationLog) error
	CountRecentByTask(ctx context.Context, taskID primitive.ObjectID, notificationType domain.NotificationType, since time.Time) (int64, error)
}

// SummarySettingsStore lists users with the daily summary enabled
type SummarySettingsStore interface {
	SettingsStore
	ListSummaryEnabled(ctx context.Context) ([]*domain.ReminderSettings, error)
}

// DispatchSummary reports one ProcessPending tick
type DispatchSummary struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// DispatcherConfig holds dispatcher tuning knobs
type DispatcherConfig struct {
	// SendTimeout bounds each channel call so one slow send cannot stall
	// the whole tick.
	SendTimeout time.Duration
	// DispatchInterval is the tick period, used as the match window for
	// daily summary times.
	DispatchInterval time.Duration
	// OverdueBatchLimit caps alerts sent per overdue sweep.
	OverdueBatchLimit int
	// OverdueDedupWindow is the look-back period suppressing repeat
	// overdue alerts for the same task.
	OverdueDedupWindow time.Duration
	// MaxAttempts caps delivery retries per reminder. Zero retries
	// indefinitely at tick granularity.
	MaxAttempts int
}

// DispatcherService scans due reminders and delivers notifications through
// the chat channel, recording every outcome in the append-only log.
type DispatcherService struct {
	reminders ReminderStore
	tasks     TaskReader
	settings  SummarySettingsStore
	bindings  BindingStore
	nlog      NotificationLogStore
	channel   delivery.Channel
	cfg       DispatcherConfig
	loc       *time.Location
	log       *logger.Logger
}

// NewDispatcherService creates a new reminder dispatcher
func NewDispatcherService(reminders ReminderStore, tasks TaskReader, settings SummarySettingsStore, bindings BindingStore, nlog NotificationLogStore, channel delivery.Channel, cfg DispatcherConfig, loc *time.Location, log *logger.Logger) *DispatcherService {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = time.Minute
	}
	if cfg.OverdueBatchLimit <= 0 {
		cfg.OverdueBatchLimit = 50
	}
	if cfg.OverdueDedupWindow <= 0 {
		cfg.OverdueDedupWindow = 24 * time.Hour
	}
	return &DispatcherService{
		reminders: reminders,
		tasks:     tasks,
		settings:  settings,
		bindings:  bindings,
		nlog:      nlog,
		channel:   channel,
		cfg:       cfg,
		loc:       loc,
		log:       log,
	}
}

// send performs one bounded channel call
func (s *DispatcherService) send(ctx context.Context, userID, chatID string, msg delivery.RenderedMessage) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return s.channel.Send(sendCtx, delivery.Destination{UserID: userID, ChatID: chatID}, msg)
}

// consumeSkipped marks a reminder consumed and logs a skipped outcome
func (s *DispatcherService) consumeSkipped(ctx context.Context, reminder *domain.ScheduledReminder, msg delivery.RenderedMessage, reason string) {
	if err := s.reminders.MarkSent(ctx, reminder.ID); err != nil {
		s.log.Error("Failed to consume reminder", "error", err, "reminder_id", reminder.ID.Hex())
		return
	}
	s.appendLog(ctx, &domain.NotificationLog{
		UserID:       reminder.UserID,
		TaskID:       reminder.TaskID,
		Type:         domain.NotificationType(reminder.Type),
		Title:        msg.Title,
		Body:         msg.Body,
		ScheduledFor: reminder.FireAt,
		Status:       domain.DeliveryStatusSkipped,
		Reason:       reason,
	})
	metrics.RemindersDispatched.WithLabelValues(string(reminder.Type), "skipped").Inc()
}

func (s *DispatcherService) appendLog(ctx context.Context, entry *domain.NotificationLog) {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}
	if err := s.nlog.Append(ctx, entry); err != nil {
		s.log.Error("Failed to append notification log", "error", err, "user_id", entry.UserID, "type", entry.Type)
	}
}

// ProcessPending delivers every pending reminder whose fire time has passed.
// Per-reminder failures are logged and retried on the next tick; they never
// abort the rest of the batch.
func (s *DispatcherService) ProcessPending(ctx context.Context, now time.Time) (*DispatchSummary, error) {
	due, err := s.reminders.FindDue(ctx, now)
	if err != nil {
		return nil, errors.NewInternalError("failed to scan due reminders", err)
	}

	summary := &DispatchSummary{Due: len(due)}
	localNow := now.In(s.loc)

	for _, reminder := range due {
		task, err := s.tasks.FindByID(ctx, reminder.TaskID, reminder.UserID)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				// The owning task is gone; consume the orphan.
				s.consumeSkipped(ctx, reminder, delivery.RenderedMessage{Type: domain.NotificationType(reminder.Type)}, "task deleted")
				summary.Skipped++
				continue
			}
			s.log.Error("Failed to load task for reminder", "error", err, "reminder_id", reminder.ID.Hex())
			summary.Failed++
			continue
		}

		msg := s.render(reminder, task)

		if task.Status == domain.TaskStatusDone {
			s.consumeSkipped(ctx, reminder, msg, "task completed")
			summary.Skipped++
			continue
		}

		settings, err := s.settings.GetOrCreate(ctx, reminder.UserID)
		if err != nil {
			s.log.Error("Failed to load settings for reminder", "error", err, "user_id", reminder.UserID)
			summary.Failed++
			continue
		}
		if settings.InQuietHours(localNow) {
			s.consumeSkipped(ctx, reminder, msg, "quiet hours")
			summary.Skipped++
			continue
		}

		binding, err := s.bindings.FindByUser(ctx, reminder.UserID)
		if err != nil {
			s.log.Error("Failed to resolve delivery channel", "error", err, "user_id", reminder.UserID)
			summary.Failed++
			continue
		}
		if !binding.Deliverable() {
			s.consumeSkipped(ctx, reminder, msg, "no delivery channel")
			summary.Skipped++
			continue
		}

		ref, err := s.send(ctx, reminder.UserID, binding.ChatID, msg)
		if err != nil {
			summary.Failed++
			metrics.RemindersDispatched.WithLabelValues(string(reminder.Type), "failed").Inc()
			s.log.Warn("Reminder delivery failed", "error", err, "reminder_id", reminder.ID.Hex(), "attempts", reminder.Attempts+1)

			if err := s.reminders.IncrementAttempts(ctx, reminder.ID); err != nil {
				s.log.Error("Failed to count delivery attempt", "error", err, "reminder_id", reminder.ID.Hex())
			}

			if s.cfg.MaxAttempts > 0 && reminder.Attempts+1 >= s.cfg.MaxAttempts {
				// Retry budget exhausted; consume with a terminal failure entry.
				if err := s.reminders.MarkSent(ctx, reminder.ID); err != nil {
					s.log.Error("Failed to consume exhausted reminder", "error", err, "reminder_id", reminder.ID.Hex())
				}
				s.appendLog(ctx, &domain.NotificationLog{
					UserID:       reminder.UserID,
					TaskID:       reminder.TaskID,
					Type:         domain.NotificationType(reminder.Type),
					Title:        msg.Title,
					Body:         msg.Body,
					ScheduledFor: reminder.FireAt,
					Status:       domain.DeliveryStatusFailed,
					Reason:       "max attempts exceeded",
				})
				continue
			}

			// Left pending; the next tick retries it.
			s.appendLog(ctx, &domain.NotificationLog{
				UserID:       reminder.UserID,
				TaskID:       reminder.TaskID,
				Type:         domain.NotificationType(reminder.Type),
				Title:        msg.Title,
				Body:         msg.Body,
				ScheduledFor: reminder.FireAt,
				Status:       domain.DeliveryStatusFailed,
				Reason:       err.Error(),
			})
			continue
		}

		if err := s.reminders.MarkSent(ctx, reminder.ID); err != nil {
			s.log.Error("Failed to consume delivered reminder", "error", err, "reminder_id", reminder.ID.Hex())
			summary.Failed++
			continue
		}
		s.appendLog(ctx, &domain.NotificationLog{
			UserID:       reminder.UserID,
			TaskID:       reminder.TaskID,
			Type:         domain.NotificationType(reminder.Type),
			Title:        msg.Title,
			Body:         msg.Body,
			ScheduledFor: reminder.FireAt,
			Status:       domain.DeliveryStatusSent,
			MessageRef:   ref,
		})
		metrics.RemindersDispatched.WithLabelValues(string(reminder.Type), "sent").Inc()
		summary.Sent++
	}

	return summary, nil
}

func (s *DispatcherService) render(reminder *domain.ScheduledReminder, task *domain.Task) delivery.RenderedMessage {
	switch reminder.Type {
	case domain.ReminderTypeTaskDue:
		return delivery.RenderTaskDue(task)
	default:
		return delivery.RenderTaskStart(task, reminder.MinutesBefore)
	}
}

// CheckOverdue alerts on unfinished tasks past their due date, at most once
// per task per dedup window and at most OverdueBatchLimit alerts per sweep.
// The cap counts alerts actually sent, not candidates scanned: suppressed
// tasks must not starve newer qualifying ones out of the batch.
func (s *DispatcherService) CheckOverdue(ctx context.Context, now time.Time) (int, error) {
	localNow := now.In(s.loc)
	candidates, err := s.tasks.ListOverdue(ctx, localNow, 0)
	if err != nil {
		return 0, errors.NewInternalError("failed to scan overdue tasks", err)
	}

	alerted := 0
	for _, task := range candidates {
		if alerted >= s.cfg.OverdueBatchLimit {
			break
		}
		settings, err := s.settings.GetOrCreate(ctx, task.UserID)
		if err != nil {
			s.log.Error("Failed to load settings for overdue sweep", "error", err, "user_id", task.UserID)
			continue
		}
		if !settings.OverdueEnabled {
			continue
		}
		// During quiet hours the task is left alone entirely; a later
		// sweep outside the window alerts without burning the dedup entry.
		if settings.InQuietHours(localNow) {
			continue
		}

		recent, err := s.nlog.CountRecentByTask(ctx, task.ID, domain.NotificationOverdue, now.Add(-s.cfg.OverdueDedupWindow))
		if err != nil {
			s.log.Error("Failed dedup scan for overdue task", "error", err, "task_id", task.ID.Hex())
			continue
		}
		if recent > 0 {
			continue
		}

		binding, err := s.bindings.FindByUser(ctx, task.UserID)
		if err != nil || !binding.Deliverable() {
			continue
		}

		msg := delivery.RenderOverdue(task, localNow)
		ref, err := s.send(ctx, task.UserID, binding.ChatID, msg)
		if err != nil {
			s.log.Warn("Overdue alert delivery failed", "error", err, "task_id", task.ID.Hex())
			s.appendLog(ctx, &domain.NotificationLog{
				UserID: task.UserID,
				TaskID: task.ID,
				Type:   domain.NotificationOverdue,
				Title:  msg.Title,
				Body:   msg.Body,
				SentAt: now,
				Status: domain.DeliveryStatusFailed,
				Reason: err.Error(),
			})
			continue
		}

		// The dedup scan keys off SentAt, so stamp the sweep time.
		s.appendLog(ctx, &domain.NotificationLog{
			UserID:     task.UserID,
			TaskID:     task.ID,
			Type:       domain.NotificationOverdue,
			Title:      msg.Title,
			Body:       msg.Body,
			SentAt:     now,
			Status:     domain.DeliveryStatusSent,
			MessageRef: ref,
		})
		metrics.OverdueAlerts.Inc()
		alerted++
	}

	return alerted, nil
}

// SendDailySummaries sends one aggregate message to every user whose
// configured summary time falls inside the current tick window.
func (s *DispatcherService) SendDailySummaries(ctx context.Context, now time.Time) (int, error) {
	enabled, err := s.settings.ListSummaryEnabled(ctx)
	if err != nil {
		return 0, errors.NewInternalError("failed to list summary users", err)
	}

	localNow := now.In(s.loc)
	sent := 0
	for _, settings := range enabled {
		if !s.matchesSummaryWindow(settings.DailySummaryTime, localNow) {
			continue
		}

		tasks, err := s.tasks.ListDueOn(ctx, settings.UserID, localNow)
		if err != nil {
			s.log.Error("Failed to load today's tasks for summary", "error", err, "user_id", settings.UserID)
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		binding, err := s.bindings.FindByUser(ctx, settings.UserID)
		if err != nil || !binding.Deliverable() {
			continue
		}

		msg := delivery.RenderDailySummary(tasks, localNow)
		ref, err := s.send(ctx, settings.UserID, binding.ChatID, msg)
		if err != nil {
			s.log.Warn("Daily summary delivery failed", "error", err, "user_id", settings.UserID)
			s.appendLog(ctx, &domain.NotificationLog{
				UserID: settings.UserID,
				Type:   domain.NotificationDailySummary,
				Title:  msg.Title,
				Body:   msg.Body,
				Status: domain.DeliveryStatusFailed,
				Reason: err.Error(),
			})
			continue
		}

		s.appendLog(ctx, &domain.NotificationLog{
			UserID:     settings.UserID,
			Type:       domain.NotificationDailySummary,
			Title:      msg.Title,
			Body:       msg.Body,
			Status:     domain.DeliveryStatusSent,
			MessageRef: ref,
		})
		metrics.DailySummariesSent.Inc()
		sent++
	}

	return sent, nil
}

// matchesSummaryWindow reports whether the configured "HH:MM" falls inside
// [tick start, tick start + interval). The match is interval-resolution,
// not exact-second.
func (s *DispatcherService) matchesSummaryWindow(clock string, localNow time.Time) bool {
	target, err := domain.ParseClock(clock)
	if err != nil {
		return false
	}

	window := int(s.cfg.DispatchInterval / time.Minute)
	if window < 1 {
		window = 1
	}

	// Modular distance, so a window straddling midnight still matches.
	const minutesPerDay = 24 * 60
	nowMin := localNow.Hour()*60 + localNow.Minute()
	delta := (nowMin - target + minutesPerDay) % minutesPerDay
	return delta < window
}

// NotifyGenerated sends the optional routine-generated notice. Failures are
// logged and never propagate into the generation result.
func (s *DispatcherService) NotifyGenerated(ctx context.Context, userID, templateName string, taskCount int, targetDate time.Time) {
	settings, err := s.settings.GetOrCreate(ctx, userID)
	if err != nil || !settings.GenerationNoticeEnabled {
		return
	}

	binding, err := s.bindings.FindByUser(ctx, userID)
	if err != nil || !binding.Deliverable() {
		return
	}

	msg := delivery.RenderGenerationNotice(templateName, taskCount, targetDate)
	ref, err := s.send(ctx, userID, binding.ChatID, msg)
	if err != nil {
		s.log.Warn("Generation notice delivery failed", "error", err, "user_id", userID)
		return
	}

	s.appendLog(ctx, &domain.NotificationLog{
		UserID:     userID,
		Type:       domain.NotificationRoutineGenerated,
		Title:      msg.Title,
		Body:       msg.Body,
		Status:     domain.DeliveryStatusSent,
		MessageRef: ref,
	})
}
