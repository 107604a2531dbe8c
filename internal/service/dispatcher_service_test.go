package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type dispatcherHarness struct {
	svc       *DispatcherService
	reminders *fakeReminderStore
	tasks     *fakeTaskStore
	settings  *fakeSettingsStore
	bindings  *fakeBindingStore
	nlog      *fakeLogStore
	channel   *fakeChannel
}

func newDispatcherHarness(t *testing.T, cfg DispatcherConfig) *dispatcherHarness {
	t.Helper()
	h := &dispatcherHarness{
		reminders: newFakeReminderStore(),
		tasks:     newFakeTaskStore(),
		settings:  newFakeSettingsStore(),
		bindings:  newFakeBindingStore(),
		nlog:      newFakeLogStore(),
		channel:   newFakeChannel(),
	}
	h.svc = NewDispatcherService(h.reminders, h.tasks, h.settings, h.bindings, h.nlog, h.channel, cfg, time.UTC, testLogger())
	return h
}

func (h *dispatcherHarness) addTask(t *testing.T, userID string, due time.Time, startTime string) *domain.Task {
	t.Helper()
	task := &domain.Task{
		UserID:    userID,
		Title:     "Morning run",
		Status:    domain.TaskStatusPending,
		DueDate:   due,
		StartTime: startTime,
	}
	if err := h.tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return task
}

func (h *dispatcherHarness) addReminder(taskID primitive.ObjectID, userID string, fireAt time.Time) *domain.ScheduledReminder {
	reminder := &domain.ScheduledReminder{
		UserID:        userID,
		TaskID:        taskID,
		Type:          domain.ReminderTypeTaskStart,
		FireAt:        fireAt,
		MinutesBefore: 15,
	}
	_ = h.reminders.Create(context.Background(), reminder)
	return reminder
}

func TestProcessPendingDelivers(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 15, 0, 0, time.UTC)
	h := newDispatcherHarness(t, DispatcherConfig{})
	h.bindings.bind("user-1", "chat-9")

	task := h.addTask(t, "user-1", now, "06:30")
	h.addReminder(task.ID, "user-1", now.Add(-time.Minute))

	summary, err := h.svc.ProcessPending(context.Background(), now)
	if err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if summary.Sent != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("summary = %+v, want 1 sent", summary)
	}
	if len(h.channel.sent) != 1 {
		t.Fatalf("channel sends = %d, want 1", len(h.channel.sent))
	}
	if h.channel.sent[0].dest.ChatID != "chat-9" {
		t.Errorf("dest = %+v, want chat-9", h.channel.sent[0].dest)
	}

	// Reminder consumed, outcome logged with the message reference.
	if got := len(h.reminders.pending()); got != 0 {
		t.Errorf("pending after dispatch = %d, want 0", got)
	}
	sent := h.nlog.byStatus(domain.DeliveryStatusSent)
	if len(sent) != 1 || sent[0].MessageRef == "" {
		t.Errorf("sent log entries = %+v, want 1 with a message ref", sent)
	}

	// A second tick finds nothing.
	again, err := h.svc.ProcessPending(context.Background(), now)
	if err != nil {
		t.Fatalf("second ProcessPending() error = %v", err)
	}
	if again.Due != 0 {
		t.Errorf("second tick due = %d, want 0", again.Due)
	}
}

func TestProcessPendingQuietHours(t *testing.T) {
	now := time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC)
	h := newDispatcherHarness(t, DispatcherConfig{})
	h.bindings.bind("user-1", "chat-9")

	user, _ := h.settings.GetOrCreate(context.Background(), "user-1")
	user.QuietHoursEnabled = true
	user.QuietHoursStart = "22:00"
	user.QuietHoursEnd = "08:00"

	task := h.addTask(t, "user-1", now, "23:30")
	h.addReminder(task.ID, "user-1", now.Add(-time.Minute))

	summary, err := h.svc.ProcessPending(context.Background(), now)
	if err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if summary.Skipped != 1 || summary.Sent != 0 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}
	if len(h.channel.sent) != 0 {
		t.Error("message sent during quiet hours")
	}

	// Suppressed permanently: consumed with a skipped entry, never retried.
	if got := len(h.reminders.pending()); got != 0 {
		t.Errorf("pending after quiet-hours skip = %d, want 0", got)
	}
	skipped := h.nlog.byStatus(domain.DeliveryStatusSkipped)
	if len(skipped) != 1 || skipped[0].Reason != "quiet hours" {
		t.Errorf("skipped entries = %+v, want one with reason quiet hours", skipped)
	}
}

func TestProcessPendingSkips(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("task deleted", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{})
		h.bindings.bind("user-1", "chat-9")
		h.addReminder(primitive.NewObjectID(), "user-1", now.Add(-time.Minute))

		summary, err := h.svc.ProcessPending(context.Background(), now)
		if err != nil {
			t.Fatalf("ProcessPending() error = %v", err)
		}
		if summary.Skipped != 1 || len(h.channel.sent) != 0 {
			t.Errorf("summary = %+v with %d sends, want 1 skipped and 0 sends", summary, len(h.channel.sent))
		}
	})

	t.Run("task completed", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{})
		h.bindings.bind("user-1", "chat-9")
		task := h.addTask(t, "user-1", now, "13:00")
		task.Status = domain.TaskStatusDone
		h.tasks.tasks[task.ID.Hex()] = task
		h.addReminder(task.ID, "user-1", now.Add(-time.Minute))

		summary, err := h.svc.ProcessPending(context.Background(), now)
		if err != nil {
			t.Fatalf("ProcessPending() error = %v", err)
		}
		if summary.Skipped != 1 || len(h.channel.sent) != 0 {
			t.Errorf("summary = %+v, want completed task skipped", summary)
		}
	})

	t.Run("no delivery channel", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{})
		task := h.addTask(t, "user-1", now, "13:00")
		h.addReminder(task.ID, "user-1", now.Add(-time.Minute))

		summary, err := h.svc.ProcessPending(context.Background(), now)
		if err != nil {
			t.Fatalf("ProcessPending() error = %v", err)
		}
		if summary.Skipped != 1 {
			t.Errorf("summary = %+v, want unbound user skipped", summary)
		}
		skipped := h.nlog.byStatus(domain.DeliveryStatusSkipped)
		if len(skipped) != 1 || skipped[0].Reason != "no delivery channel" {
			t.Errorf("skipped entries = %+v", skipped)
		}
	})
}

func TestProcessPendingRetriesOnFailure(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	h := newDispatcherHarness(t, DispatcherConfig{})
	h.bindings.bind("user-1", "chat-9")

	task := h.addTask(t, "user-1", now, "13:00")
	h.addReminder(task.ID, "user-1", now.Add(-time.Minute))
	h.channel.failNext = 1

	summary, err := h.svc.ProcessPending(context.Background(), now)
	if err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}

	// Still pending with a counted attempt; the failure is on record.
	pending := h.reminders.pending()
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("pending = %+v, want one reminder with 1 attempt", pending)
	}
	if got := len(h.nlog.byStatus(domain.DeliveryStatusFailed)); got != 1 {
		t.Errorf("failed log entries = %d, want 1", got)
	}

	// Next tick succeeds.
	again, err := h.svc.ProcessPending(context.Background(), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("retry ProcessPending() error = %v", err)
	}
	if again.Sent != 1 {
		t.Errorf("retry summary = %+v, want 1 sent", again)
	}
}

func TestProcessPendingMaxAttempts(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	h := newDispatcherHarness(t, DispatcherConfig{MaxAttempts: 2})
	h.bindings.bind("user-1", "chat-9")

	task := h.addTask(t, "user-1", now, "13:00")
	reminder := h.addReminder(task.ID, "user-1", now.Add(-time.Minute))
	reminder.Attempts = 1
	h.channel.failNext = 1

	summary, err := h.svc.ProcessPending(context.Background(), now)
	if err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}

	// Budget exhausted: consumed with a terminal entry.
	if got := len(h.reminders.pending()); got != 0 {
		t.Errorf("pending = %d, want 0 after exhausting attempts", got)
	}
	failed := h.nlog.byStatus(domain.DeliveryStatusFailed)
	terminal := false
	for _, entry := range failed {
		if entry.Reason == "max attempts exceeded" {
			terminal = true
		}
	}
	if !terminal {
		t.Errorf("failed entries = %+v, want a max attempts entry", failed)
	}
}

func TestCheckOverdueDedup(t *testing.T) {
	now := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)
	h := newDispatcherHarness(t, DispatcherConfig{})
	h.bindings.bind("user-1", "chat-9")

	h.addTask(t, "user-1", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "")

	alerted, err := h.svc.CheckOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("CheckOverdue() error = %v", err)
	}
	if alerted != 1 || len(h.channel.sent) != 1 {
		t.Fatalf("alerted = %d with %d sends, want 1", alerted, len(h.channel.sent))
	}
	if !strings.Contains(h.channel.sent[0].msg.Title, "Overdue") {
		t.Errorf("title = %q, want an overdue alert", h.channel.sent[0].msg.Title)
	}

	// Inside the dedup window nothing repeats.
	alerted, err = h.svc.CheckOverdue(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second CheckOverdue() error = %v", err)
	}
	if alerted != 0 || len(h.channel.sent) != 1 {
		t.Errorf("second sweep alerted = %d, want 0", alerted)
	}

	// Past the window the alert repeats.
	alerted, err = h.svc.CheckOverdue(context.Background(), now.Add(25*time.Hour))
	if err != nil {
		t.Fatalf("third CheckOverdue() error = %v", err)
	}
	if alerted != 1 || len(h.channel.sent) != 2 {
		t.Errorf("third sweep alerted = %d with %d sends, want a repeat", alerted, len(h.channel.sent))
	}
}

func TestCheckOverdueBatchLimit(t *testing.T) {
	now := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)
	h := newDispatcherHarness(t, DispatcherConfig{OverdueBatchLimit: 1})
	h.bindings.bind("user-1", "chat-9")

	older := h.addTask(t, "user-1", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "")
	newer := h.addTask(t, "user-1", time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), "")

	alerted, err := h.svc.CheckOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("CheckOverdue() error = %v", err)
	}
	if alerted != 1 {
		t.Fatalf("first sweep alerted = %d, want the cap of 1", alerted)
	}

	// An hour later the alerted task is dedup-suppressed. It must not keep
	// occupying the batch slot: the sweep moves past it and alerts the other.
	alerted, err = h.svc.CheckOverdue(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second CheckOverdue() error = %v", err)
	}
	if alerted != 1 {
		t.Fatalf("second sweep alerted = %d, want 1", alerted)
	}

	counts := make(map[primitive.ObjectID]int)
	for _, entry := range h.nlog.byStatus(domain.DeliveryStatusSent) {
		counts[entry.TaskID]++
	}
	if counts[older.ID] != 1 || counts[newer.ID] != 1 {
		t.Errorf("alerts per task = %v, want exactly one each", counts)
	}
}

func TestCheckOverdueRespectsSettings(t *testing.T) {
	now := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)

	t.Run("alerts disabled", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{})
		h.bindings.bind("user-1", "chat-9")
		user, _ := h.settings.GetOrCreate(context.Background(), "user-1")
		user.OverdueEnabled = false
		h.addTask(t, "user-1", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "")

		alerted, err := h.svc.CheckOverdue(context.Background(), now)
		if err != nil {
			t.Fatalf("CheckOverdue() error = %v", err)
		}
		if alerted != 0 {
			t.Errorf("alerted = %d, want 0", alerted)
		}
	})

	t.Run("quiet hours defer without consuming dedup", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{})
		h.bindings.bind("user-1", "chat-9")
		user, _ := h.settings.GetOrCreate(context.Background(), "user-1")
		user.QuietHoursEnabled = true
		user.QuietHoursStart = "22:00"
		user.QuietHoursEnd = "08:00"
		h.addTask(t, "user-1", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "")

		night := time.Date(2026, 9, 3, 23, 0, 0, 0, time.UTC)
		alerted, err := h.svc.CheckOverdue(context.Background(), night)
		if err != nil {
			t.Fatalf("CheckOverdue() error = %v", err)
		}
		if alerted != 0 || len(h.nlog.entries) != 0 {
			t.Errorf("quiet-hours sweep alerted = %d with %d log entries, want none", alerted, len(h.nlog.entries))
		}

		// The next sweep outside the window still alerts.
		alerted, err = h.svc.CheckOverdue(context.Background(), time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("daytime CheckOverdue() error = %v", err)
		}
		if alerted != 1 {
			t.Errorf("daytime sweep alerted = %d, want 1", alerted)
		}
	})
}

func TestSendDailySummaries(t *testing.T) {
	// Dispatch interval of one minute; summary time 08:00.
	cfg := DispatcherConfig{DispatchInterval: time.Minute}
	now := time.Date(2026, 9, 1, 8, 0, 30, 0, time.UTC)

	t.Run("sends inside the window", func(t *testing.T) {
		h := newDispatcherHarness(t, cfg)
		h.bindings.bind("user-1", "chat-9")
		if _, err := h.settings.GetOrCreate(context.Background(), "user-1"); err != nil {
			t.Fatal(err)
		}
		h.addTask(t, "user-1", now, "06:30")
		h.addTask(t, "user-1", now, "")

		sent, err := h.svc.SendDailySummaries(context.Background(), now)
		if err != nil {
			t.Fatalf("SendDailySummaries() error = %v", err)
		}
		if sent != 1 || len(h.channel.sent) != 1 {
			t.Fatalf("sent = %d, want 1 summary", sent)
		}
		if !strings.Contains(h.channel.sent[0].msg.Body, "2 task(s)") {
			t.Errorf("body = %q, want a 2 task summary", h.channel.sent[0].msg.Body)
		}
	})

	t.Run("outside the window", func(t *testing.T) {
		h := newDispatcherHarness(t, cfg)
		h.bindings.bind("user-1", "chat-9")
		if _, err := h.settings.GetOrCreate(context.Background(), "user-1"); err != nil {
			t.Fatal(err)
		}
		h.addTask(t, "user-1", now, "06:30")

		sent, err := h.svc.SendDailySummaries(context.Background(), now.Add(30*time.Minute))
		if err != nil {
			t.Fatalf("SendDailySummaries() error = %v", err)
		}
		if sent != 0 {
			t.Errorf("sent = %d, want 0 outside the window", sent)
		}
	})

	t.Run("window wrapping midnight", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{DispatchInterval: 2 * time.Minute})
		h.bindings.bind("user-1", "chat-9")
		user, _ := h.settings.GetOrCreate(context.Background(), "user-1")
		user.DailySummaryTime = "23:59"

		// The tick before the summary time must not fire early.
		before := time.Date(2026, 9, 1, 23, 58, 0, 0, time.UTC)
		h.addTask(t, "user-1", before, "06:30")
		sent, err := h.svc.SendDailySummaries(context.Background(), before)
		if err != nil {
			t.Fatalf("SendDailySummaries() error = %v", err)
		}
		if sent != 0 {
			t.Errorf("sent = %d before the summary time, want 0", sent)
		}

		// The next tick lands past midnight; 23:59 still falls in its window.
		tick := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
		h.addTask(t, "user-1", tick, "06:30")
		sent, err = h.svc.SendDailySummaries(context.Background(), tick)
		if err != nil {
			t.Fatalf("SendDailySummaries() error = %v", err)
		}
		if sent != 1 {
			t.Errorf("sent = %d across midnight, want 1", sent)
		}
	})

	t.Run("empty day sends nothing", func(t *testing.T) {
		h := newDispatcherHarness(t, cfg)
		h.bindings.bind("user-1", "chat-9")
		if _, err := h.settings.GetOrCreate(context.Background(), "user-1"); err != nil {
			t.Fatal(err)
		}

		sent, err := h.svc.SendDailySummaries(context.Background(), now)
		if err != nil {
			t.Fatalf("SendDailySummaries() error = %v", err)
		}
		if sent != 0 || len(h.channel.sent) != 0 {
			t.Errorf("sent = %d, want nothing for an empty day", sent)
		}
	})
}

func TestNotifyGenerated(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)

	t.Run("enabled", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{})
		h.bindings.bind("user-1", "chat-9")

		h.svc.NotifyGenerated(context.Background(), "user-1", "Morning Routine", 5, now)
		if len(h.channel.sent) != 1 {
			t.Fatalf("sends = %d, want 1", len(h.channel.sent))
		}
		if !strings.Contains(h.channel.sent[0].msg.Body, "5 task(s)") {
			t.Errorf("body = %q", h.channel.sent[0].msg.Body)
		}
		if got := len(h.nlog.byStatus(domain.DeliveryStatusSent)); got != 1 {
			t.Errorf("sent log entries = %d, want 1", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		h := newDispatcherHarness(t, DispatcherConfig{})
		h.bindings.bind("user-1", "chat-9")
		user, _ := h.settings.GetOrCreate(context.Background(), "user-1")
		user.GenerationNoticeEnabled = false

		h.svc.NotifyGenerated(context.Background(), "user-1", "Morning Routine", 5, now)
		if len(h.channel.sent) != 0 {
			t.Error("notice sent despite being disabled")
		}
	})
}
