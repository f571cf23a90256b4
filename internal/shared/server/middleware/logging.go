package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		documentID := c.GetString("documentId")
		if documentID == "" {
			documentID = firstParam(c, "id", "documentId")
		}
		signerID := c.GetString("signerId")
		if signerID == "" {
			signerID = c.Param("signerId")
		}
		statusTransition := c.GetString("statusTransition")

		telemetry.Info("request.complete", map[string]any{
			"request_id":        reqID,
			"method":            c.Request.Method,
			"path":              c.FullPath(),
			"status":            status,
			"status_transition": statusTransition,
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"document_id":       documentID,
			"signer_id":         signerID,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}

func firstParam(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.Param(name); v != "" {
			return v
		}
	}
	return ""
}
