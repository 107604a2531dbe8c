package domain

// TemplateOutcomeStatus classifies one template's result inside GenerateAll
type TemplateOutcomeStatus string

const (
	TemplateOutcomeGenerated TemplateOutcomeStatus = "generated"
	TemplateOutcomeSkipped   TemplateOutcomeStatus = "skipped"
	TemplateOutcomeFailed    TemplateOutcomeStatus = "failed"
)

// GenerateResult is the outcome of one template generation
type GenerateResult struct {
	Success        bool                    `json:"success"`
	Message        string                  `json:"message,omitempty"`
	TasksGenerated int                     `json:"tasks_generated"`
	Generation     *DailyRoutineGeneration `json:"generation,omitempty"`
}

// TemplateOutcome is the per-template breakdown entry of GenerateAll
type TemplateOutcome struct {
	TemplateID     string                `json:"template_id"`
	TemplateName   string                `json:"template_name"`
	Status         TemplateOutcomeStatus `json:"status"`
	TasksGenerated int                   `json:"tasks_generated"`
	Error          string                `json:"error,omitempty"`
}

// GenerateAllResult aggregates GenerateAll over every active template.
// A single template's failure never aborts the batch; the breakdown lets
// the caller see exactly which routines generated and which did not.
type GenerateAllResult struct {
	TotalTasksGenerated int               `json:"total_tasks_generated"`
	Generated           int               `json:"generated"`
	Skipped             int               `json:"skipped"`
	Failed              int               `json:"failed"`
	Outcomes            []TemplateOutcome `json:"outcomes"`
}

// TaskPreview is one task a generation would create, without persistence
type TaskPreview struct {
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Category         string       `json:"category,omitempty"`
	Priority         TaskPriority `json:"priority"`
	StartTime        string       `json:"start_time,omitempty"`
	EndTime          string       `json:"end_time,omitempty"`
	EstimatedMinutes int          `json:"estimated_minutes,omitempty"`
	OrderIndex       int          `json:"order_index"`
}

// TriggerInfo describes one registered orchestrator trigger
type TriggerInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

// SchedulerStatus reports the orchestrator lifecycle state
type SchedulerStatus struct {
	Running  bool          `json:"running"`
	Timezone string        `json:"timezone"`
	Triggers []TriggerInfo `json:"triggers"`
}

// NotificationStats aggregates notification log entries by outcome
type NotificationStats struct {
	Sent    int64 `json:"sent"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
}
