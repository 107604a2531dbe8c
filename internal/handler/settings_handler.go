package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/repository"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
)

// SettingsHandler handles HTTP requests for reminder settings and the
// chat binding
type SettingsHandler struct {
	settings *repository.SettingsRepository
	bindings *repository.BindingRepository
	log      *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *repository.SettingsRepository, bindings *repository.BindingRepository, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		bindings: bindings,
		log:      log,
	}
}

// Get handles GET /settings, creating defaults on first access
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	settings, err := h.settings.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to load settings", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to load settings", err))
		return
	}

	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	TaskStartEnabled        *bool  `json:"task_start_enabled"`
	TaskDueEnabled          *bool  `json:"task_due_enabled"`
	DailySummaryEnabled     *bool  `json:"daily_summary_enabled"`
	GenerationNoticeEnabled *bool  `json:"generation_notice_enabled"`
	OverdueEnabled          *bool  `json:"overdue_enabled"`
	StartOffsetsMinutes     *[]int `json:"start_offsets_minutes"`
	DailySummaryTime        string `json:"daily_summary_time"`
	QuietHoursEnabled       *bool  `json:"quiet_hours_enabled"`
	QuietHoursStart         string `json:"quiet_hours_start"`
	QuietHoursEnd           string `json:"quiet_hours_end"`
}

func (r *updateSettingsRequest) validate() error {
	for _, clock := range []string{r.DailySummaryTime, r.QuietHoursStart, r.QuietHoursEnd} {
		if clock == "" {
			continue
		}
		if _, err := domain.ParseClock(clock); err != nil {
			return err
		}
	}
	if r.StartOffsetsMinutes != nil {
		for _, offset := range *r.StartOffsetsMinutes {
			if offset < 0 {
				return errors.NewValidationError("start offsets must be non-negative", nil)
			}
		}
	}
	return nil
}

// Update handles PUT /settings. Absent fields keep their current values.
func (h *SettingsHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid settings", err))
		return
	}

	settings, err := h.settings.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, errors.NewInternalError("failed to load settings", err))
		return
	}

	if req.TaskStartEnabled != nil {
		settings.TaskStartEnabled = *req.TaskStartEnabled
	}
	if req.TaskDueEnabled != nil {
		settings.TaskDueEnabled = *req.TaskDueEnabled
	}
	if req.DailySummaryEnabled != nil {
		settings.DailySummaryEnabled = *req.DailySummaryEnabled
	}
	if req.GenerationNoticeEnabled != nil {
		settings.GenerationNoticeEnabled = *req.GenerationNoticeEnabled
	}
	if req.OverdueEnabled != nil {
		settings.OverdueEnabled = *req.OverdueEnabled
	}
	if req.StartOffsetsMinutes != nil {
		settings.StartOffsetsMinutes = *req.StartOffsetsMinutes
	}
	if req.DailySummaryTime != "" {
		settings.DailySummaryTime = req.DailySummaryTime
	}
	if req.QuietHoursEnabled != nil {
		settings.QuietHoursEnabled = *req.QuietHoursEnabled
	}
	if req.QuietHoursStart != "" {
		settings.QuietHoursStart = req.QuietHoursStart
	}
	if req.QuietHoursEnd != "" {
		settings.QuietHoursEnd = req.QuietHoursEnd
	}

	if err := h.settings.Update(c.Request.Context(), settings); err != nil {
		h.log.Error("Failed to update settings", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to update settings", err))
		return
	}

	c.JSON(http.StatusOK, settings)
}

type bindChatRequest struct {
	ChatID   string `json:"chat_id" binding:"required"`
	Verified bool   `json:"verified"`
	IsActive bool   `json:"is_active"`
}

// BindChat handles PUT /settings/chat-binding
func (h *SettingsHandler) BindChat(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req bindChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	binding := &domain.ChatBinding{
		UserID:   userID,
		ChatID:   req.ChatID,
		Verified: req.Verified,
		IsActive: req.IsActive,
	}
	if err := h.bindings.Upsert(c.Request.Context(), binding); err != nil {
		h.log.Error("Failed to upsert chat binding", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to save chat binding", err))
		return
	}

	c.JSON(http.StatusOK, binding)
}

// GetChatBinding handles GET /settings/chat-binding
func (h *SettingsHandler) GetChatBinding(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	binding, err := h.bindings.FindByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, errors.NewInternalError("failed to load chat binding", err))
		return
	}
	if binding == nil {
		c.JSON(http.StatusNotFound, errors.NewNotFoundError("No chat binding", nil))
		return
	}

	c.JSON(http.StatusOK, binding)
}
