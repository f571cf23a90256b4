package uploads

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/shared/util"
	"esign-backend/internal/signing"
)

const (
	maxUploadBytes = 25 << 20
	presignExpires = 15 * time.Minute
	pdfContentType = "application/pdf"
)

// Presigner issues direct-upload URLs for object keys.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
}

type Handler struct {
	Presigner Presigner
	MaxBytes  int64
	Expires   time.Duration
}

// NewHandler returns a presign handler. A nil presigner disables the route with 503.
func NewHandler(p Presigner) *Handler {
	return &Handler{Presigner: p, MaxBytes: maxUploadBytes, Expires: presignExpires}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	Key              string `json:"key"`
	ContentType      string `json:"contentType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	if h.Presigner == nil {
		respond.Error(c, http.StatusServiceUnavailable, "uploads_unavailable", "direct uploads are not configured", nil)
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))
	if req.ContentType == "" {
		req.ContentType = pdfContentType
	}

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if req.ContentType != pdfContentType || !strings.EqualFold(path.Ext(req.FileName), ".pdf") {
		respond.Error(c, http.StatusBadRequest, "validation_error", "only PDF files are accepted", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > h.maxBytes() {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "unauthorized", nil)
		return
	}
	sanitized, err := util.SanitizeFileName(req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}
	key := signing.OwnerUploadPrefix(userID) + uuid.NewString() + "_" + sanitized

	expires := h.Expires
	if expires <= 0 {
		expires = presignExpires
	}
	url, err := h.Presigner.PresignPut(c.Request.Context(), key, req.ContentType, expires)
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":        err.Error(),
			"key":        key,
			"sizeBytes":  req.SizeBytes,
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	telemetry.Info("uploads.presigned", map[string]any{
		"user_id":   userID,
		"key":       key,
		"sizeBytes": req.SizeBytes,
	})
	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        url,
		Key:              key,
		ContentType:      req.ContentType,
		ExpiresInSeconds: int64(expires.Seconds()),
	})
}

func (h *Handler) maxBytes() int64 {
	if h.MaxBytes > 0 {
		return h.MaxBytes
	}
	return maxUploadBytes
}
