package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-routine-service/internal/domain"
	"github.com/vhvplatform/go-routine-service/internal/service"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
)

// TaskHandler handles HTTP requests for task instances
type TaskHandler struct {
	service *service.TaskService
	loc     *time.Location
	log     *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(service *service.TaskService, loc *time.Location, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		loc:     loc,
		log:     log,
	}
}

type taskRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Priority         string `json:"priority"`
	Status           string `json:"status"`
	DueDate          string `json:"due_date" binding:"required"` // YYYY-MM-DD
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

func (r *taskRequest) toTask(userID string, loc *time.Location) (*domain.Task, error) {
	dueDate, err := time.ParseInLocation("2006-01-02", r.DueDate, loc)
	if err != nil {
		return nil, errors.NewValidationError("invalid due_date, expected YYYY-MM-DD", err)
	}
	for _, clock := range []string{r.StartTime, r.EndTime} {
		if clock == "" {
			continue
		}
		if _, err := domain.ParseClock(clock); err != nil {
			return nil, errors.NewValidationError("invalid time of day", err)
		}
	}

	task := &domain.Task{
		UserID:           userID,
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		Priority:         domain.TaskPriority(r.Priority),
		Status:           domain.TaskStatus(r.Status),
		DueDate:          dueDate,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		EstimatedMinutes: r.EstimatedMinutes,
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}
	return task, nil
}

// Create handles POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	task, err := req.toTask(userID, h.loc)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.service.CreateTask(c.Request.Context(), task); err != nil {
		h.log.Error("Failed to create task", "error", err, "user_id", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// List handles GET /tasks
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)

	tasks, total, err := h.service.ListTasks(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.log.Error("Failed to list tasks", "error", err, "user_id", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      tasks,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get handles GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	task, err := h.service.GetTask(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Update handles PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	task, err := req.toTask(userID, h.loc)
	if err != nil {
		respondError(c, err)
		return
	}
	task.ID = id

	if err := h.service.UpdateTask(c.Request.Context(), task); err != nil {
		h.log.Error("Failed to update task", "error", err, "task_id", id.Hex())
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Delete handles DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTask(c.Request.Context(), id, userID); err != nil {
		h.log.Error("Failed to delete task", "error", err, "task_id", id.Hex())
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}
