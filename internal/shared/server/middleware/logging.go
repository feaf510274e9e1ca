package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"seo-analysis-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request. Handlers enrich the line by
// setting analysisId, analysisType, taskId and statusTransition on the context.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		userID, _ := c.Get(userIDKey)
		isGuest, _ := c.Get("isGuest")

		telemetry.Info("request.complete", map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            c.Writer.Status(),
			"status_transition": c.GetString("statusTransition"),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           userID,
			"analysis_id":       c.GetString("analysisId"),
			"analysis_type":     c.GetString("analysisType"),
			"task_id":           c.GetString("taskId"),
			"is_guest":          isGuest,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
