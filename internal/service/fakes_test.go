package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/delivery"
	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/repository"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func testLogger() *logger.Logger {
	return logger.NewLogger()
}

// duplicateKeyErr mimics the driver's unique index violation
func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

func generationKey(userID string, templateID primitive.ObjectID, targetDate time.Time) string {
	return fmt.Sprintf("%s:%s:%s", userID, templateID.Hex(), domain.DateOnly(targetDate).Format("2006-01-02"))
}

type fakeTemplateStore struct {
	bundles map[string]*repository.TemplateBundle // by template ID hex
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{bundles: make(map[string]*repository.TemplateBundle)}
}

func (f *fakeTemplateStore) add(bundle *repository.TemplateBundle) {
	f.bundles[bundle.Template.ID.Hex()] = bundle
}

func (f *fakeTemplateStore) FindWithTasks(ctx context.Context, id primitive.ObjectID, userID string) (*repository.TemplateBundle, error) {
	bundle, ok := f.bundles[id.Hex()]
	if !ok || bundle.Template.UserID != userID {
		return nil, mongo.ErrNoDocuments
	}
	return bundle, nil
}

func (f *fakeTemplateStore) ListActive(ctx context.Context, userID string) ([]*domain.RoutineTemplate, error) {
	var templates []*domain.RoutineTemplate
	for _, bundle := range f.bundles {
		if bundle.Template.UserID == userID && bundle.Template.IsActive {
			templates = append(templates, bundle.Template)
		}
	}
	return templates, nil
}

type fakeGenerationStore struct {
	generations []*domain.DailyRoutineGeneration
	records     []*domain.GeneratedTaskRecord
	failCreate  bool // force the next completed-row insert to lose the race
}

func newFakeGenerationStore() *fakeGenerationStore {
	return &fakeGenerationStore{}
}

func (f *fakeGenerationStore) Create(ctx context.Context, generation *domain.DailyRoutineGeneration) error {
	if generation.Status == domain.GenerationStatusCompleted {
		if f.failCreate {
			f.failCreate = false
			return duplicateKeyErr()
		}
		key := generationKey(generation.UserID, generation.TemplateID, generation.TargetDate)
		for _, existing := range f.generations {
			if existing.Status == domain.GenerationStatusCompleted &&
				generationKey(existing.UserID, existing.TemplateID, existing.TargetDate) == key {
				return duplicateKeyErr()
			}
		}
	}
	if generation.ID.IsZero() {
		generation.ID = primitive.NewObjectID()
	}
	generation.CreatedAt = time.Now()
	generation.TargetDate = domain.DateOnly(generation.TargetDate)
	f.generations = append(f.generations, generation)
	return nil
}

func (f *fakeGenerationStore) FindCompleted(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (*domain.DailyRoutineGeneration, error) {
	key := generationKey(userID, templateID, targetDate)
	for _, generation := range f.generations {
		if generation.Status == domain.GenerationStatusCompleted &&
			generationKey(generation.UserID, generation.TemplateID, generation.TargetDate) == key {
			return generation, nil
		}
	}
	return nil, nil
}

func (f *fakeGenerationStore) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	kept := f.generations[:0]
	for _, generation := range f.generations {
		if generation.ID != id {
			kept = append(kept, generation)
		}
	}
	f.generations = kept
	return nil
}

func (f *fakeGenerationStore) CreateRecord(ctx context.Context, record *domain.GeneratedTaskRecord) error {
	record.ID = primitive.NewObjectID()
	record.TargetDate = domain.DateOnly(record.TargetDate)
	f.records = append(f.records, record)
	return nil
}

func (f *fakeGenerationStore) ListRecords(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) ([]*domain.GeneratedTaskRecord, error) {
	key := generationKey(userID, templateID, targetDate)
	var out []*domain.GeneratedTaskRecord
	for _, record := range f.records {
		if generationKey(record.UserID, record.TemplateID, record.TargetDate) == key {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeGenerationStore) DeleteRecords(ctx context.Context, userID string, templateID primitive.ObjectID, targetDate time.Time) (int64, error) {
	key := generationKey(userID, templateID, targetDate)
	var deleted int64
	kept := f.records[:0]
	for _, record := range f.records {
		if generationKey(record.UserID, record.TemplateID, record.TargetDate) == key {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeGenerationStore) DeleteRecordsByGeneration(ctx context.Context, generationID primitive.ObjectID) (int64, error) {
	var deleted int64
	kept := f.records[:0]
	for _, record := range f.records {
		if record.GenerationID == generationID {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeGenerationStore) statusCount(status domain.GenerationStatus) int {
	count := 0
	for _, generation := range f.generations {
		if generation.Status == status {
			count++
		}
	}
	return count
}

type fakeTaskStore struct {
	tasks      map[string]*domain.Task // by task ID hex
	createErrs int                     // fail the next N creates
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*domain.Task)}
}

func (f *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if f.createErrs > 0 {
		f.createErrs--
		return fmt.Errorf("insert failed")
	}
	task.ID = primitive.NewObjectID()
	task.DueDate = domain.DateOnly(task.DueDate)
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	f.tasks[task.ID.Hex()] = task
	return nil
}

func (f *fakeTaskStore) FindByID(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error) {
	task, ok := f.tasks[id.Hex()]
	if !ok || task.UserID != userID {
		return nil, mongo.ErrNoDocuments
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) Update(ctx context.Context, task *domain.Task) error {
	existing, ok := f.tasks[task.ID.Hex()]
	if !ok || existing.UserID != task.UserID {
		return mongo.ErrNoDocuments
	}
	task.DueDate = domain.DateOnly(task.DueDate)
	f.tasks[task.ID.Hex()] = task
	return nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, id primitive.ObjectID, userID string) (*domain.Task, error) {
	task, ok := f.tasks[id.Hex()]
	if !ok || task.UserID != userID {
		return nil, mongo.ErrNoDocuments
	}
	delete(f.tasks, id.Hex())
	return task, nil
}

func (f *fakeTaskStore) DeleteMany(ctx context.Context, ids []primitive.ObjectID, userID string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if task, ok := f.tasks[id.Hex()]; ok && task.UserID == userID {
			delete(f.tasks, id.Hex())
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTaskStore) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*domain.Task, int64, error) {
	var out []*domain.Task
	for _, task := range f.tasks {
		if task.UserID == userID {
			out = append(out, task)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTaskStore) ListDueOn(ctx context.Context, userID string, date time.Time) ([]*domain.Task, error) {
	day := domain.DateOnly(date)
	var out []*domain.Task
	for _, task := range f.tasks {
		if task.UserID == userID && task.DueDate.Equal(day) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*domain.Task, error) {
	cutoff := domain.DateOnly(before)
	var out []*domain.Task
	for _, task := range f.tasks {
		if task.Status != domain.TaskStatusDone && task.DueDate.Before(cutoff) {
			out = append(out, task)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// noopPlanner satisfies ReminderPlanner without side effects
type noopPlanner struct{}

func (noopPlanner) PlanTaskStart(ctx context.Context, task *domain.Task) error { return nil }
func (noopPlanner) PlanTaskDue(ctx context.Context, task *domain.Task) error   { return nil }
func (noopPlanner) Reschedule(ctx context.Context, task *domain.Task) error    { return nil }
func (noopPlanner) CancelForTask(ctx context.Context, taskID primitive.ObjectID, userID string) error {
	return nil
}

// recordingPlanner counts planner invocations per task
type recordingPlanner struct {
	planStart  int
	planDue    int
	reschedule int
	cancelled  []primitive.ObjectID
}

func (p *recordingPlanner) PlanTaskStart(ctx context.Context, task *domain.Task) error {
	p.planStart++
	return nil
}

func (p *recordingPlanner) PlanTaskDue(ctx context.Context, task *domain.Task) error {
	p.planDue++
	return nil
}

func (p *recordingPlanner) Reschedule(ctx context.Context, task *domain.Task) error {
	p.reschedule++
	return nil
}

func (p *recordingPlanner) CancelForTask(ctx context.Context, taskID primitive.ObjectID, userID string) error {
	p.cancelled = append(p.cancelled, taskID)
	return nil
}

type fakeSettingsStore struct {
	settings map[string]*domain.ReminderSettings
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{settings: make(map[string]*domain.ReminderSettings)}
}

func (f *fakeSettingsStore) GetOrCreate(ctx context.Context, userID string) (*domain.ReminderSettings, error) {
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	s := domain.DefaultReminderSettings(userID)
	f.settings[userID] = s
	return s, nil
}

func (f *fakeSettingsStore) ListSummaryEnabled(ctx context.Context) ([]*domain.ReminderSettings, error) {
	var out []*domain.ReminderSettings
	for _, s := range f.settings {
		if s.DailySummaryEnabled {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeBindingStore struct {
	bindings map[string]*domain.ChatBinding
}

func newFakeBindingStore() *fakeBindingStore {
	return &fakeBindingStore{bindings: make(map[string]*domain.ChatBinding)}
}

func (f *fakeBindingStore) bind(userID, chatID string) {
	f.bindings[userID] = &domain.ChatBinding{
		UserID:   userID,
		ChatID:   chatID,
		Verified: true,
		IsActive: true,
	}
}

func (f *fakeBindingStore) FindByUser(ctx context.Context, userID string) (*domain.ChatBinding, error) {
	return f.bindings[userID], nil
}

type fakeReminderStore struct {
	reminders []*domain.ScheduledReminder
}

func newFakeReminderStore() *fakeReminderStore {
	return &fakeReminderStore{}
}

func (f *fakeReminderStore) Create(ctx context.Context, reminder *domain.ScheduledReminder) error {
	reminder.ID = primitive.NewObjectID()
	reminder.Status = domain.ReminderStatusPending
	f.reminders = append(f.reminders, reminder)
	return nil
}

func (f *fakeReminderStore) DeletePendingByTask(ctx context.Context, taskID primitive.ObjectID, userID string) (int64, error) {
	var deleted int64
	kept := f.reminders[:0]
	for _, reminder := range f.reminders {
		if reminder.TaskID == taskID && reminder.UserID == userID && reminder.Status == domain.ReminderStatusPending {
			deleted++
			continue
		}
		kept = append(kept, reminder)
	}
	f.reminders = kept
	return deleted, nil
}

func (f *fakeReminderStore) FindDue(ctx context.Context, now time.Time) ([]*domain.ScheduledReminder, error) {
	var due []*domain.ScheduledReminder
	for _, reminder := range f.reminders {
		if reminder.Status == domain.ReminderStatusPending && !reminder.FireAt.After(now) {
			due = append(due, reminder)
		}
	}
	return due, nil
}

func (f *fakeReminderStore) MarkSent(ctx context.Context, id primitive.ObjectID) error {
	for _, reminder := range f.reminders {
		if reminder.ID == id && reminder.Status == domain.ReminderStatusPending {
			reminder.Status = domain.ReminderStatusSent
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeReminderStore) IncrementAttempts(ctx context.Context, id primitive.ObjectID) error {
	for _, reminder := range f.reminders {
		if reminder.ID == id {
			reminder.Attempts++
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeReminderStore) pending() []*domain.ScheduledReminder {
	var out []*domain.ScheduledReminder
	for _, reminder := range f.reminders {
		if reminder.Status == domain.ReminderStatusPending {
			out = append(out, reminder)
		}
	}
	return out
}

type fakeLogStore struct {
	entries []*domain.NotificationLog
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{}
}

func (f *fakeLogStore) Append(ctx context.Context, entry *domain.NotificationLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogStore) CountRecentByTask(ctx context.Context, taskID primitive.ObjectID, notificationType domain.NotificationType, since time.Time) (int64, error) {
	var count int64
	for _, entry := range f.entries {
		if entry.TaskID == taskID && entry.Type == notificationType &&
			entry.Status == domain.DeliveryStatusSent && !entry.SentAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeLogStore) byStatus(status domain.DeliveryStatus) []*domain.NotificationLog {
	var out []*domain.NotificationLog
	for _, entry := range f.entries {
		if entry.Status == status {
			out = append(out, entry)
		}
	}
	return out
}

type sentMessage struct {
	dest delivery.Destination
	msg  delivery.RenderedMessage
}

type fakeChannel struct {
	sent     []sentMessage
	failNext int // fail the next N sends
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{}
}

func (f *fakeChannel) Send(ctx context.Context, dest delivery.Destination, msg delivery.RenderedMessage) (string, error) {
	if f.failNext > 0 {
		f.failNext--
		return "", fmt.Errorf("gateway unavailable")
	}
	f.sent = append(f.sent, sentMessage{dest: dest, msg: msg})
	return fmt.Sprintf("ref-%d", len(f.sent)), nil
}
