package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vhvplatform/go-routine-service/internal/domain"
)

// Destination is the opaque per-user handle messages are delivered to
type Destination struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

// RenderedMessage is a notification ready for the chat channel
type RenderedMessage struct {
	Type  domain.NotificationType `json:"type"`
	Title string                  `json:"title"`
	Body  string                  `json:"body"`
}

// Channel sends rendered messages to a destination. Implementations return
// an opaque message reference on success and a DELIVERY_ERROR on failure.
type Channel interface {
	Send(ctx context.Context, dest Destination, msg RenderedMessage) (string, error)
}

// RenderTaskStart renders a pre-start reminder
func RenderTaskStart(task *domain.Task, minutesBefore int) RenderedMessage {
	return RenderedMessage{
		Type:  domain.NotificationTaskStart,
		Title: fmt.Sprintf("Starting soon: %s", task.Title),
		Body:  fmt.Sprintf("%q starts at %s, in %d minutes.", task.Title, task.StartTime, minutesBefore),
	}
}

// RenderTaskDue renders a due-date warning
func RenderTaskDue(task *domain.Task) RenderedMessage {
	return RenderedMessage{
		Type:  domain.NotificationTaskDue,
		Title: fmt.Sprintf("Due tomorrow: %s", task.Title),
		Body:  fmt.Sprintf("%q is due on %s.", task.Title, task.DueDate.Format("2006-01-02")),
	}
}

// RenderOverdue renders an overdue alert
func RenderOverdue(task *domain.Task, now time.Time) RenderedMessage {
	days := int(now.Sub(task.DueDate).Hours() / 24)
	body := fmt.Sprintf("%q was due on %s.", task.Title, task.DueDate.Format("2006-01-02"))
	if days > 0 {
		body = fmt.Sprintf("%q is %d day(s) overdue (due %s).", task.Title, days, task.DueDate.Format("2006-01-02"))
	}
	return RenderedMessage{
		Type:  domain.NotificationOverdue,
		Title: fmt.Sprintf("Overdue: %s", task.Title),
		Body:  body,
	}
}

// RenderDailySummary renders the aggregate message for one user's day
func RenderDailySummary(tasks []*domain.Task, date time.Time) RenderedMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d task(s) today:\n", len(tasks))
	for _, task := range tasks {
		if task.StartTime != "" {
			fmt.Fprintf(&b, "- %s %s\n", task.StartTime, task.Title)
		} else {
			fmt.Fprintf(&b, "- %s\n", task.Title)
		}
	}
	return RenderedMessage{
		Type:  domain.NotificationDailySummary,
		Title: fmt.Sprintf("Your plan for %s", date.Format("Monday, Jan 2")),
		Body:  b.String(),
	}
}

// RenderGenerationNotice renders the notice sent after a routine generated
func RenderGenerationNotice(templateName string, taskCount int, date time.Time) RenderedMessage {
	return RenderedMessage{
		Type:  domain.NotificationRoutineGenerated,
		Title: fmt.Sprintf("Routine generated: %s", templateName),
		Body:  fmt.Sprintf("Created %d task(s) from %q for %s.", taskCount, templateName, date.Format("2006-01-02")),
	}
}
