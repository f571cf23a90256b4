package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error body and one http.panic log line.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
			}
			if userID := UserIDFromContext(c); userID != "" {
				fields["user_id"] = userID
			}
			if docID := firstParam(c, "id", "documentId"); docID != "" {
				fields["document_id"] = docID
			}
			telemetry.Error("http.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}()
		c.Next()
	}
}
