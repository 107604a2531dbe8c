package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/service"
	"github.com/vhvplatform/go-routine-service/internal/shared/config"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
)

// Generator runs batch generation for one user
type Generator interface {
	GenerateAll(ctx context.Context, userID string, targetDate time.Time) (*domain.GenerateAllResult, error)
}

// OwnerLister enumerates users owning at least one active template
type OwnerLister interface {
	DistinctActiveOwners(ctx context.Context) ([]string, error)
}

// Dispatcher runs one reminder tick
type Dispatcher interface {
	ProcessPending(ctx context.Context, now time.Time) (*service.DispatchSummary, error)
	CheckOverdue(ctx context.Context, now time.Time) (int, error)
	SendDailySummaries(ctx context.Context, now time.Time) (int, error)
}

// RetentionStore prunes old generation history
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Orchestrator owns the recurring triggers: the two generation passes, the
// reminder dispatch tick, and retention cleanup. All cron expressions are
// evaluated in the configured engine timezone.
type Orchestrator struct {
	cron         *cron.Cron
	generator    Generator
	templates    OwnerLister
	dispatcher   Dispatcher
	retention    RetentionStore
	cfg          config.SchedulerConfig
	retentionAge time.Duration
	loc          *time.Location
	log          *logger.Logger

	mu       sync.Mutex
	running  bool
	triggers []domain.TriggerInfo
}

// NewOrchestrator creates a new trigger orchestrator
func NewOrchestrator(generator Generator, templates OwnerLister, dispatcher Dispatcher, retention RetentionStore, cfg config.SchedulerConfig, retentionDays int, loc *time.Location, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cron:         cron.New(cron.WithLocation(loc)),
		generator:    generator,
		templates:    templates,
		dispatcher:   dispatcher,
		retention:    retention,
		cfg:          cfg,
		retentionAge: time.Duration(retentionDays) * 24 * time.Hour,
		loc:          loc,
		log:          log,
	}
}

// Start registers the triggers and starts the cron loop. Calling Start on a
// running orchestrator is a no-op.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil
	}

	triggers := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"daily_generation", o.cfg.DailyGeneration, o.runGeneration},
		{"midnight_generation", o.cfg.MidnightGeneration, o.runGeneration},
		{"reminder_dispatch", o.cfg.ReminderDispatch, o.runDispatch},
		{"retention_cleanup", o.cfg.RetentionCleanup, o.runRetention},
	}

	o.triggers = o.triggers[:0]
	for _, trigger := range triggers {
		if _, err := o.cron.AddFunc(trigger.schedule, trigger.run); err != nil {
			return err
		}
		o.triggers = append(o.triggers, domain.TriggerInfo{Name: trigger.name, Schedule: trigger.schedule})
		o.log.Info("Registered trigger", "name", trigger.name, "schedule", trigger.schedule)
	}

	o.cron.Start()
	o.running = true
	o.log.Info("Orchestrator started", "timezone", o.loc.String(), "triggers", len(o.triggers))
	return nil
}

// Stop halts trigger firing. In-flight runs finish; Stop never interrupts
// them. Stopping a stopped orchestrator is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.cron.Stop()
	o.running = false
	o.log.Info("Orchestrator stopped")
}

// Status reports the orchestrator state for the admin surface
func (o *Orchestrator) Status() *domain.SchedulerStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	triggers := make([]domain.TriggerInfo, len(o.triggers))
	copy(triggers, o.triggers)
	return &domain.SchedulerStatus{
		Running:  o.running,
		Timezone: o.loc.String(),
		Triggers: triggers,
	}
}

// runGeneration fans GenerateAll out over every user with active templates.
// Generation is idempotent, so the 06:00 and 00:05 passes overlapping is
// harmless; the later one skips what the earlier one completed.
func (o *Orchestrator) runGeneration() {
	ctx := context.Background()
	today := time.Now().In(o.loc)

	owners, err := o.templates.DistinctActiveOwners(ctx)
	if err != nil {
		o.log.Error("Failed to list template owners", "error", err)
		return
	}

	var generated, skipped, failed int
	for _, userID := range owners {
		result, err := o.generator.GenerateAll(ctx, userID, today)
		if err != nil {
			o.log.Error("Batch generation failed for user", "error", err, "user_id", userID)
			failed++
			continue
		}
		generated += result.Generated
		skipped += result.Skipped
		failed += result.Failed
	}

	o.log.Info("Generation pass finished",
		"users", len(owners),
		"generated", generated,
		"skipped", skipped,
		"failed", failed)
}

// runDispatch runs one reminder tick: due reminders, then the overdue sweep,
// then daily summaries.
func (o *Orchestrator) runDispatch() {
	ctx := context.Background()
	now := time.Now()

	summary, err := o.dispatcher.ProcessPending(ctx, now)
	if err != nil {
		o.log.Error("Reminder dispatch failed", "error", err)
	} else if summary.Due > 0 {
		o.log.Info("Reminder tick finished", "due", summary.Due, "sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed)
	}

	if alerted, err := o.dispatcher.CheckOverdue(ctx, now); err != nil {
		o.log.Error("Overdue sweep failed", "error", err)
	} else if alerted > 0 {
		o.log.Info("Overdue sweep finished", "alerted", alerted)
	}

	if sent, err := o.dispatcher.SendDailySummaries(ctx, now); err != nil {
		o.log.Error("Daily summaries failed", "error", err)
	} else if sent > 0 {
		o.log.Info("Daily summaries sent", "count", sent)
	}
}

// runRetention prunes generation history older than the retention window
func (o *Orchestrator) runRetention() {
	ctx := context.Background()
	cutoff := time.Now().Add(-o.retentionAge)

	deleted, err := o.retention.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		o.log.Error("Retention cleanup failed", "error", err)
		return
	}
	o.log.Info("Retention cleanup finished", "deleted", deleted, "cutoff", cutoff.Format("2006-01-02"))
}
