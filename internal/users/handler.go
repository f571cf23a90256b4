package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

// me returns the stored profile, falling back to token claims for owners
// that have not been persisted yet (dev header sessions).
func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	if h.Svc != nil {
		user, err := h.Svc.GetByID(c.Request.Context(), userID)
		switch {
		case err == nil:
			respond.JSON(c, http.StatusOK, gin.H{
				"id":         user.ID,
				"email":      user.Email,
				"fullName":   user.DisplayName(),
				"pictureUrl": user.PictureURL,
			})
			return
		case !errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
			return
		}
	}

	response := gin.H{"id": userID}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		response["fullName"] = name
	}
	if picture := middleware.UserPictureFromContext(c); picture != "" {
		response["pictureUrl"] = picture
	}
	respond.JSON(c, http.StatusOK, response)
}
