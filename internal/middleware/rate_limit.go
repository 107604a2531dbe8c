package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/vhvplatform/go-routine-service/internal/metrics"
	"golang.org/x/time/rate"
)

// UserRateLimiter manages rate limiters per user
type UserRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewUserRateLimiter creates a new per-user rate limiter
func NewUserRateLimiter(rps float64, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for a specific user
func (rl *UserRateLimiter) GetLimiter(userID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[userID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[userID]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[userID] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// RateLimitMiddleware creates a rate limiting middleware keyed on user_id
func RateLimitMiddleware(rl *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Query parameter first; it doesn't consume the body.
		userID := c.Query("user_id")

		if userID == "" {
			userID = c.PostForm("user_id")
		}

		if userID == "" {
			var req struct {
				UserID string `json:"user_id"`
			}
			// ShouldBindBodyWith allows binding without consuming the body
			if err := c.ShouldBindBodyWith(&req, binding.JSON); err == nil {
				userID = req.UserID
			}
		}

		// No user yet; let the handler's validation reject it.
		if userID == "" {
			c.Next()
			return
		}

		limiter := rl.GetLimiter(userID)

		if !limiter.Allow() {
			metrics.RateLimitExceeded.WithLabelValues(userID).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
