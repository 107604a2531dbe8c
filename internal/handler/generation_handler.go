package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-routine-service/internal/repository"
	"github.com/vhvplatform/go-routine-service/internal/service"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
)

// GenerationHandler handles HTTP requests for routine generation
type GenerationHandler struct {
	service *service.GenerationService
	history *repository.GenerationRepository
	loc     *time.Location
	log     *logger.Logger
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(service *service.GenerationService, history *repository.GenerationRepository, loc *time.Location, log *logger.Logger) *GenerationHandler {
	return &GenerationHandler{
		service: service,
		history: history,
		loc:     loc,
		log:     log,
	}
}

// Generate handles POST /templates/:id/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetDate, ok := parseDateQuery(c, h.loc)
	if !ok {
		return
	}

	result, err := h.service.Generate(c.Request.Context(), userID, templateID, targetDate)
	if err != nil {
		if errors.HasCode(err, errors.CodeAlreadyGenerated) {
			// Idempotent repeat is a benign outcome, not a failure.
			c.JSON(http.StatusOK, result)
			return
		}
		h.log.Error("Failed to generate routine", "error", err, "user_id", userID, "template_id", templateID.Hex())
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GenerateAll handles POST /generate-all
func (h *GenerationHandler) GenerateAll(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	targetDate, ok := parseDateQuery(c, h.loc)
	if !ok {
		return
	}

	result, err := h.service.GenerateAll(c.Request.Context(), userID, targetDate)
	if err != nil {
		h.log.Error("Failed to generate all routines", "error", err, "user_id", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Preview handles GET /templates/:id/preview
func (h *GenerationHandler) Preview(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetDate, ok := parseDateQuery(c, h.loc)
	if !ok {
		return
	}

	previews, err := h.service.Preview(c.Request.Context(), userID, templateID, targetDate)
	if err != nil {
		h.log.Error("Failed to preview routine", "error", err, "user_id", userID, "template_id", templateID.Hex())
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"target_date": targetDate.Format("2006-01-02"),
		"tasks":       previews,
	})
}

// DeleteGeneration handles DELETE /templates/:id/generation
func (h *GenerationHandler) DeleteGeneration(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	targetDate, ok := parseDateQuery(c, h.loc)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteGeneration(c.Request.Context(), userID, templateID, targetDate)
	if err != nil {
		h.log.Error("Failed to delete generation", "error", err, "user_id", userID, "template_id", templateID.Hex())
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Generation deleted",
		"tasks_deleted": deleted,
	})
}

// History handles GET /generations
func (h *GenerationHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)

	generations, total, err := h.history.ListByUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.log.Error("Failed to list generation history", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to list generation history", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      generations,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
