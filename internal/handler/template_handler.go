package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/repository"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
	"go.mongodb.org/mongo-driver/mongo"
)

// TemplateHandler handles HTTP requests for routine templates
type TemplateHandler struct {
	repo *repository.TemplateRepository
	log  *logger.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(repo *repository.TemplateRepository, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		repo: repo,
		log:  log,
	}
}

type createTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create handles POST /templates
func (h *TemplateHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	template := &domain.RoutineTemplate{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := h.repo.Create(c.Request.Context(), template); err != nil {
		h.log.Error("Failed to create template", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to create template", err))
		return
	}

	c.JSON(http.StatusCreated, template)
}

// List handles GET /templates
func (h *TemplateHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	templates, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to list templates", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to list templates", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": templates})
}

// Get handles GET /templates/:id, returning the template with its tasks
func (h *TemplateHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	bundle, err := h.repo.FindWithTasks(c.Request.Context(), id, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, errors.NewNotFoundError("Template not found", err))
			return
		}
		h.log.Error("Failed to get template", "error", err, "id", id.Hex())
		respondError(c, errors.NewInternalError("failed to get template", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"template": bundle.Template,
		"tasks":    bundle.Tasks,
	})
}

type updateTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Update handles PUT /templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	existing, err := h.repo.FindByID(c.Request.Context(), id, userID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, errors.NewNotFoundError("Template not found", err))
			return
		}
		respondError(c, errors.NewInternalError("failed to load template", err))
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	if err := h.repo.Update(c.Request.Context(), existing); err != nil {
		h.log.Error("Failed to update template", "error", err, "id", id.Hex())
		respondError(c, errors.NewInternalError("failed to update template", err))
		return
	}

	c.JSON(http.StatusOK, existing)
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive handles PATCH /templates/:id/active
func (h *TemplateHandler) SetActive(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("is_active is required", err))
		return
	}

	if err := h.repo.SetActive(c.Request.Context(), id, userID, *req.IsActive); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, errors.NewNotFoundError("Template not found", err))
			return
		}
		h.log.Error("Failed to toggle template", "error", err, "id", id.Hex())
		respondError(c, errors.NewInternalError("failed to toggle template", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template updated"})
}

type templateTaskRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Priority         string `json:"priority"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	OrderIndex       int    `json:"order_index"`
}

func (r *templateTaskRequest) validateClocks() error {
	for _, clock := range []string{r.StartTime, r.EndTime} {
		if clock == "" {
			continue
		}
		if _, err := domain.ParseClock(clock); err != nil {
			return err
		}
	}
	return nil
}

// AddTask handles POST /templates/:id/tasks
func (h *TemplateHandler) AddTask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req templateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	if err := req.validateClocks(); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid time of day", err))
		return
	}

	task := &domain.TemplateTask{
		TemplateID:       templateID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Priority:         domain.TaskPriority(req.Priority),
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		EstimatedMinutes: req.EstimatedMinutes,
		OrderIndex:       req.OrderIndex,
		IsActive:         true,
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}

	if err := h.repo.AddTask(c.Request.Context(), userID, task); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, errors.NewNotFoundError("Template not found", err))
			return
		}
		h.log.Error("Failed to add template task", "error", err, "template_id", templateID.Hex())
		respondError(c, errors.NewInternalError("failed to add template task", err))
		return
	}

	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PUT /templates/:id/tasks/:taskId
func (h *TemplateHandler) UpdateTask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return
	}

	var req templateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	if err := req.validateClocks(); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid time of day", err))
		return
	}

	task := &domain.TemplateTask{
		ID:               taskID,
		TemplateID:       templateID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Priority:         domain.TaskPriority(req.Priority),
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		EstimatedMinutes: req.EstimatedMinutes,
		OrderIndex:       req.OrderIndex,
		IsActive:         true,
	}

	if err := h.repo.UpdateTask(c.Request.Context(), userID, task); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, errors.NewNotFoundError("Template task not found", err))
			return
		}
		h.log.Error("Failed to update template task", "error", err, "task_id", taskID.Hex())
		respondError(c, errors.NewInternalError("failed to update template task", err))
		return
	}

	c.JSON(http.StatusOK, task)
}

// RemoveTask handles DELETE /templates/:id/tasks/:taskId
func (h *TemplateHandler) RemoveTask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return
	}

	if err := h.repo.RemoveTask(c.Request.Context(), userID, templateID, taskID); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, errors.NewNotFoundError("Template task not found", err))
			return
		}
		h.log.Error("Failed to remove template task", "error", err, "task_id", taskID.Hex())
		respondError(c, errors.NewInternalError("failed to remove template task", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template task removed"})
}
