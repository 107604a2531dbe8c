package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-routine-service/internal/repository"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
)

// NotificationHandler serves the notification history and stats
type NotificationHandler struct {
	nlog *repository.NotificationLogRepository
	log  *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(nlog *repository.NotificationLogRepository, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		nlog: nlog,
		log:  log,
	}
}

// History handles GET /notifications
func (h *NotificationHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)

	entries, total, err := h.nlog.ListByUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.log.Error("Failed to list notifications", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to list notifications", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Stats handles GET /notifications/stats
func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.nlog.Stats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to aggregate notification stats", "error", err, "user_id", userID)
		respondError(c, errors.NewInternalError("failed to aggregate stats", err))
		return
	}

	c.JSON(http.StatusOK, stats)
}
