package signing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/respond"
)

// SignerHandler serves the credential-authenticated signing page routes.
type SignerHandler struct {
	Svc *Service
}

// NewSignerHandler constructs a SignerHandler.
func NewSignerHandler(svc *Service) *SignerHandler {
	return &SignerHandler{Svc: svc}
}

// RegisterRoutes attaches signer routes. They carry no session; the token
// query parameter is the only credential.
func (h *SignerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sign/:documentId/:signerId", h.view)
	rg.POST("/sign/:documentId/:signerId/submit", h.submit)
	rg.POST("/sign/:documentId/:signerId/decline", h.decline)
}

func credential(c *gin.Context) (string, bool) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		respond.Error(c, http.StatusForbidden, "forbidden", "signing token is required", nil)
		return "", false
	}
	return token, true
}

func (h *SignerHandler) view(c *gin.Context) {
	token, ok := credential(c)
	if !ok {
		return
	}
	view, err := h.Svc.RecordView(c.Request.Context(), c.Param("documentId"), c.Param("signerId"), token, originFrom(c))
	if err != nil {
		writeError(c, err, "failed to load signing page")
		return
	}

	var resp SigningViewResponse
	resp.Document.ID = view.Document.ID
	resp.Document.Title = view.Document.Title
	resp.Document.PageCount = view.Document.PageCount
	resp.Document.Status = string(view.Document.Status)
	resp.Signer = toSignerResponse(view.Signer)
	resp.Fields = toFieldResponses(view.Fields)
	resp.Values = view.Values
	if resp.Values == nil {
		resp.Values = map[string]string{}
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *SignerHandler) submit(c *gin.Context) {
	token, ok := credential(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	inputs := make([]SignatureInput, 0, len(req.Signatures))
	for _, s := range req.Signatures {
		inputs = append(inputs, SignatureInput{FieldID: s.FieldID, Value: s.Value, FieldType: s.FieldType})
	}
	result, err := h.Svc.SubmitSignatures(c.Request.Context(), c.Param("documentId"), c.Param("signerId"), token, inputs, originFrom(c))
	if err != nil {
		writeError(c, err, "failed to submit signatures")
		return
	}
	respond.JSON(c, http.StatusOK, toSubmitResponse(result))
}

func (h *SignerHandler) decline(c *gin.Context) {
	token, ok := credential(c)
	if !ok {
		return
	}
	var req declineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	result, err := h.Svc.DeclineSignature(c.Request.Context(), c.Param("documentId"), c.Param("signerId"), token, req.Reason, originFrom(c))
	if err != nil {
		writeError(c, err, "failed to decline")
		return
	}
	respond.JSON(c, http.StatusOK, toSubmitResponse(result))
}
