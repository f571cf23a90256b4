package signing

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/audit"
	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
)

const maxUploadSize = 25 << 20 // 25MB

// Handler wires owner HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches owner routes to the authenticated router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.POST("/documents/from-upload", h.createFromUpload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.detail)
	rg.DELETE("/documents/:id", h.delete)
	rg.PUT("/documents/:id/fields", h.addFields)
	rg.POST("/documents/:id/signers", h.addSigners)
	rg.DELETE("/documents/:id/signers/:signerId", h.removeSigner)
	rg.POST("/documents/:id/signers/:signerId/resend", h.resend)
	rg.POST("/documents/:id/invitations", h.sendInvitations)
	rg.POST("/documents/:id/finalize", h.finalize)
	rg.GET("/documents/:id/audit", h.audit)
	rg.GET("/documents/:id/download", h.download)
}

func owner(c *gin.Context) Owner {
	return Owner{
		ID:    middleware.UserIDFromContext(c),
		Email: middleware.UserEmailFromContext(c),
		Name:  middleware.UserNameFromContext(c),
	}
}

func originFrom(c *gin.Context) audit.Origin {
	return audit.Origin{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// writeError maps the signing error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrAuthorization):
		respond.Error(c, http.StatusForbidden, "forbidden", "not allowed to access this document", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resource not found", nil)
	case errors.Is(err, ErrInvalidState):
		respond.Error(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	in := NewDocument{
		Title:       strings.TrimSpace(c.PostForm("title")),
		Description: strings.TrimSpace(c.PostForm("description")),
		FileName:    fileHeader.Filename,
	}
	doc, err := h.Svc.CreateDocument(c.Request.Context(), owner(c), in, data)
	if err != nil {
		writeError(c, err, "failed to upload document")
		return
	}
	respond.JSON(c, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) createFromUpload(c *gin.Context) {
	var req createFromUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "key is required", nil)
		return
	}

	in := NewDocument{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		FileName:    strings.TrimSpace(req.FileName),
	}
	doc, err := h.Svc.CreateFromUpload(c.Request.Context(), owner(c), in, strings.TrimSpace(req.Key))
	if err != nil {
		writeError(c, err, "failed to create document")
		return
	}
	respond.JSON(c, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.ListDocuments(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err, "failed to list documents")
		return
	}
	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toDocumentResponse(doc))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) detail(c *gin.Context) {
	detail, err := h.Svc.DocumentDetail(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch document")
		return
	}
	respond.JSON(c, http.StatusOK, DetailResponse{
		Document: toDocumentResponse(detail.Document),
		Fields:   toFieldResponses(detail.Fields),
		Signers:  toSignerResponses(detail.Signers),
	})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.DeleteDocument(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		writeError(c, err, "failed to delete document")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) addFields(c *gin.Context) {
	var req addFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	inputs := make([]FieldInput, 0, len(req.Fields))
	for _, f := range req.Fields {
		inputs = append(inputs, FieldInput{
			ID:       f.ID,
			Type:     f.Type,
			Page:     f.Page,
			X:        f.X,
			Y:        f.Y,
			Width:    f.Width,
			Height:   f.Height,
			SignerID: f.SignerID,
			Required: f.Required,
		})
	}
	fields, err := h.Svc.AddFields(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), inputs)
	if err != nil {
		writeError(c, err, "failed to save fields")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"fields": toFieldResponses(fields)})
}

func (h *Handler) addSigners(c *gin.Context) {
	var req addSignersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	inputs := make([]SignerInput, 0, len(req.Signers))
	for _, s := range req.Signers {
		inputs = append(inputs, SignerInput{Name: s.Name, Email: s.Email, OrderIndex: s.OrderIndex})
	}
	signers, err := h.Svc.AddSigners(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), inputs, req.ReplaceExisting)
	if err != nil {
		writeError(c, err, "failed to save signers")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"signers": toSignerResponses(signers)})
}

func (h *Handler) removeSigner(c *gin.Context) {
	doc, err := h.Svc.RemoveSigner(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), c.Param("signerId"))
	if err != nil {
		writeError(c, err, "failed to remove signer")
		return
	}
	respond.JSON(c, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) sendInvitations(c *gin.Context) {
	results, err := h.Svc.SendInvitations(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), originFrom(c))
	if err != nil {
		writeError(c, err, "failed to send invitations")
		return
	}
	resp := make([]InvitationResponse, 0, len(results))
	sent := 0
	for _, r := range results {
		if r.Success {
			sent++
		}
		resp = append(resp, InvitationResponse(r))
	}
	respond.JSON(c, http.StatusOK, gin.H{"sent": sent, "results": resp})
}

func (h *Handler) resend(c *gin.Context) {
	result, err := h.Svc.ResendInvitation(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), c.Param("signerId"), originFrom(c))
	if err != nil {
		writeError(c, err, "failed to resend invitation")
		return
	}
	respond.JSON(c, http.StatusOK, InvitationResponse(result))
}

func (h *Handler) finalize(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if _, err := h.Svc.GetDocument(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err, "failed to fetch document")
		return
	}
	result, err := h.Svc.FinalizeCompletion(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to finalize document")
		return
	}
	resp := FinalizeResponse{SignedPath: result.SignedPath, AuditPath: result.AuditPath}
	if result.Notification != nil {
		n := toNotificationResponse(*result.Notification)
		resp.Notification = &n
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) audit(c *gin.Context) {
	entries, err := h.Svc.ListAudit(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch audit log")
		return
	}
	respond.JSON(c, http.StatusOK, toAuditResponses(entries))
}

func (h *Handler) download(c *gin.Context) {
	kind := DownloadKind(strings.ToLower(strings.TrimSpace(c.DefaultQuery("kind", string(DownloadOriginal)))))
	file, err := h.Svc.Download(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), kind)
	if err != nil {
		writeError(c, err, "failed to download document")
		return
	}
	respond.PDF(c, file.Name, file.Data)
}
