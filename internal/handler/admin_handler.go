package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-routine-service/internal/scheduler"
	"github.com/vhvplatform/go-routine-service/internal/service"
	"github.com/vhvplatform/go-routine-service/internal/shared/logger"
)

// AdminHandler exposes manual triggers and orchestrator status for
// operators. These run the same code paths as the cron triggers.
type AdminHandler struct {
	dispatcher   *service.DispatcherService
	orchestrator *scheduler.Orchestrator
	log          *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(dispatcher *service.DispatcherService, orchestrator *scheduler.Orchestrator, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		dispatcher:   dispatcher,
		orchestrator: orchestrator,
		log:          log,
	}
}

// ProcessPending handles POST /admin/reminders/process
func (h *AdminHandler) ProcessPending(c *gin.Context) {
	summary, err := h.dispatcher.ProcessPending(c.Request.Context(), time.Now())
	if err != nil {
		h.log.Error("Manual reminder tick failed", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CheckOverdue handles POST /admin/reminders/check-overdue
func (h *AdminHandler) CheckOverdue(c *gin.Context) {
	alerted, err := h.dispatcher.CheckOverdue(c.Request.Context(), time.Now())
	if err != nil {
		h.log.Error("Manual overdue sweep failed", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerted": alerted})
}

// SendSummaries handles POST /admin/reminders/send-summaries
func (h *AdminHandler) SendSummaries(c *gin.Context) {
	sent, err := h.dispatcher.SendDailySummaries(c.Request.Context(), time.Now())
	if err != nil {
		h.log.Error("Manual daily summaries failed", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

// SchedulerStatus handles GET /admin/scheduler/status
func (h *AdminHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.Status())
}
