package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-routine-service/internal/shared/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// requireUserID extracts the user_id query parameter, rejecting the request
// when absent
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("user_id is required", nil))
		return "", false
	}
	return userID, true
}

// parseIDParam parses an ObjectID path parameter
func parseIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("invalid "+name, err))
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseDateQuery parses the optional date query parameter (YYYY-MM-DD),
// defaulting to today in the engine timezone
func parseDateQuery(c *gin.Context, loc *time.Location) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().In(loc), true
	}
	date, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("invalid date, expected YYYY-MM-DD", err))
		return time.Time{}, false
	}
	return date, true
}

// parsePagination reads page and page_size query parameters with defaults
func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// statusFor maps application error codes to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.HasCode(err, errors.CodeValidation):
		return http.StatusBadRequest
	case errors.HasCode(err, errors.CodeNotFound), errors.HasCode(err, errors.CodeTemplateNotFound):
		return http.StatusNotFound
	case errors.HasCode(err, errors.CodeAlreadyGenerated):
		return http.StatusConflict
	case errors.HasCode(err, errors.CodeTemplateInactive), errors.HasCode(err, errors.CodeTemplateEmpty):
		return http.StatusUnprocessableEntity
	case errors.HasCode(err, errors.CodeDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes an application error with its mapped status
func respondError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.NewInternalError("internal error", err)
	}
	c.JSON(statusFor(err), appErr)
}
