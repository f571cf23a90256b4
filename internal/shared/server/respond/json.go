package respond

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// NoContent writes an empty 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// PDF sends data as a downloadable PDF attachment.
func PDF(c *gin.Context, fileName string, data []byte) {
	name := strings.NewReplacer("\r", "", "\n", "", `"`, "'").Replace(strings.TrimSpace(fileName))
	if name == "" {
		name = "document.pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, "application/pdf", data)
}
