package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReminderType represents the kind of scheduled reminder
type ReminderType string

const (
	ReminderTypeTaskStart ReminderType = "task_start"
	ReminderTypeTaskDue   ReminderType = "task_due"
)

// ReminderStatus represents the lifecycle of a scheduled reminder
type ReminderStatus string

const (
	ReminderStatusPending ReminderStatus = "pending"
	ReminderStatusSent    ReminderStatus = "sent"
)

// NotificationType labels entries in the notification log
type NotificationType string

const (
	NotificationTaskStart        NotificationType = "task_start"
	NotificationTaskDue          NotificationType = "task_due"
	NotificationOverdue          NotificationType = "overdue"
	NotificationDailySummary     NotificationType = "daily_summary"
	NotificationRoutineGenerated NotificationType = "routine_generated"
)

// DeliveryStatus records the outcome of one delivery attempt
type DeliveryStatus string

const (
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusSkipped DeliveryStatus = "skipped"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// ReminderSettings holds per-user reminder preferences. At most one
// document exists per user; it is created lazily with defaults.
type ReminderSettings struct {
	ID                      primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID                  string             `json:"user_id" bson:"user_id"`
	TaskStartEnabled        bool               `json:"task_start_enabled" bson:"task_start_enabled"`
	TaskDueEnabled          bool               `json:"task_due_enabled" bson:"task_due_enabled"`
	DailySummaryEnabled     bool               `json:"daily_summary_enabled" bson:"daily_summary_enabled"`
	GenerationNoticeEnabled bool               `json:"generation_notice_enabled" bson:"generation_notice_enabled"`
	OverdueEnabled          bool               `json:"overdue_enabled" bson:"overdue_enabled"`
	StartOffsetsMinutes     []int              `json:"start_offsets_minutes" bson:"start_offsets_minutes"`
	DailySummaryTime        string             `json:"daily_summary_time" bson:"daily_summary_time"` // "08:00"
	QuietHoursEnabled       bool               `json:"quiet_hours_enabled" bson:"quiet_hours_enabled"`
	QuietHoursStart         string             `json:"quiet_hours_start" bson:"quiet_hours_start"` // "22:00"
	QuietHoursEnd           string             `json:"quiet_hours_end" bson:"quiet_hours_end"`     // "08:00"
	CreatedAt               time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at" bson:"updated_at"`
}

// DefaultReminderSettings returns the settings applied on first access
func DefaultReminderSettings(userID string) *ReminderSettings {
	return &ReminderSettings{
		UserID:                  userID,
		TaskStartEnabled:        true,
		TaskDueEnabled:          true,
		DailySummaryEnabled:     true,
		GenerationNoticeEnabled: true,
		OverdueEnabled:          true,
		StartOffsetsMinutes:     []int{15},
		DailySummaryTime:        "08:00",
		QuietHoursEnabled:       false,
		QuietHoursStart:         "22:00",
		QuietHoursEnd:           "08:00",
	}
}

// InQuietHours reports whether t falls inside the user's quiet-hours
// window. The window may wrap past midnight ("22:00" to "08:00").
// A disabled or malformed window never suppresses.
func (s *ReminderSettings) InQuietHours(t time.Time) bool {
	if s == nil || !s.QuietHoursEnabled {
		return false
	}

	start, err := ParseClock(s.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := ParseClock(s.QuietHoursEnd)
	if err != nil {
		return false
	}
	if start == end {
		return false
	}

	minute := t.Hour()*60 + t.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// ParseClock parses a "HH:MM" time-of-day into minutes since midnight
func ParseClock(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", clock, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", clock)
	}
	return h*60 + m, nil
}

// CombineDateAndClock resolves a calendar day plus a "HH:MM" time-of-day
// into a wall-clock instant in the given location.
func CombineDateAndClock(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}

// DateOnly truncates an instant to its calendar day, stored at midnight UTC
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ScheduledReminder is a persisted intent to deliver one notification,
// consumed exactly once by the dispatcher.
type ScheduledReminder struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        string             `json:"user_id" bson:"user_id"`
	TaskID        primitive.ObjectID `json:"task_id,omitempty" bson:"task_id,omitempty"`
	Type          ReminderType       `json:"type" bson:"type"`
	FireAt        time.Time          `json:"fire_at" bson:"fire_at"`
	MinutesBefore int                `json:"minutes_before" bson:"minutes_before"`
	Status        ReminderStatus     `json:"status" bson:"status"`
	Attempts      int                `json:"attempts" bson:"attempts"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// NotificationLog is an append-only audit entry for one delivery outcome.
// Entries are never updated after insert; the dispatcher also reads them
// to implement dedup windows.
type NotificationLog struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID       string             `json:"user_id" bson:"user_id"`
	TaskID       primitive.ObjectID `json:"task_id,omitempty" bson:"task_id,omitempty"`
	Type         NotificationType   `json:"type" bson:"type"`
	Title        string             `json:"title" bson:"title"`
	Body         string             `json:"body,omitempty" bson:"body,omitempty"`
	ScheduledFor time.Time          `json:"scheduled_for,omitempty" bson:"scheduled_for,omitempty"`
	SentAt       time.Time          `json:"sent_at" bson:"sent_at"`
	Status       DeliveryStatus     `json:"status" bson:"status"`
	Reason       string             `json:"reason,omitempty" bson:"reason,omitempty"`
	MessageRef   string             `json:"message_ref,omitempty" bson:"message_ref,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}
