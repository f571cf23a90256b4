package signing

import (
	"time"

	"esign-backend/internal/audit"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID  string     `json:"documentId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	FileName    string     `json:"fileName"`
	SizeBytes   int64      `json:"sizeBytes"`
	PageCount   int        `json:"pageCount"`
	Status      string     `json:"status"`
	HasSigned   bool       `json:"hasSignedPdf"`
	HasAudit    bool       `json:"hasAuditTrail"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// FieldResponse is a placed field.
type FieldResponse struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Page     int     `json:"page"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	SignerID string  `json:"signerId,omitempty"`
	Required bool    `json:"required"`
}

// SignerResponse omits the access credential.
type SignerResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	OrderIndex     int        `json:"orderIndex"`
	Status         string     `json:"status"`
	InvitedAt      *time.Time `json:"invitedAt,omitempty"`
	LastRemindedAt *time.Time `json:"lastRemindedAt,omitempty"`
	ViewedAt       *time.Time `json:"viewedAt,omitempty"`
	SignedAt       *time.Time `json:"signedAt,omitempty"`
	DeclinedAt     *time.Time `json:"declinedAt,omitempty"`
	DeclineReason  string     `json:"declineReason,omitempty"`
}

// DetailResponse is a document with its layout and signers.
type DetailResponse struct {
	Document DocumentResponse `json:"document"`
	Fields   []FieldResponse  `json:"fields"`
	Signers  []SignerResponse `json:"signers"`
}

// AuditEntryResponse is one audit log row.
type AuditEntryResponse struct {
	ID          string         `json:"id"`
	SubjectType string         `json:"subjectType"`
	SubjectID   string         `json:"subjectId"`
	Action      string         `json:"action"`
	OccurredAt  time.Time      `json:"occurredAt"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InvitationResponse is the per-signer invitation outcome.
type InvitationResponse struct {
	SignerID string `json:"signerId"`
	Email    string `json:"email"`
	Success  bool   `json:"success"`
	Skipped  bool   `json:"skipped,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NotificationResponse reports a best-effort notice.
type NotificationResponse struct {
	Kind    string   `json:"kind"`
	To      []string `json:"to"`
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
}

// SubmitResponse is returned after submit and decline.
type SubmitResponse struct {
	Completed          bool                   `json:"completed"`
	SignaturesCaptured int                    `json:"signaturesCaptured"`
	Notifications      []NotificationResponse `json:"notifications"`
}

// SigningViewResponse is what the signer page renders.
type SigningViewResponse struct {
	Document struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		PageCount int    `json:"pageCount"`
		Status    string `json:"status"`
	} `json:"document"`
	Signer SignerResponse    `json:"signer"`
	Fields []FieldResponse   `json:"fields"`
	Values map[string]string `json:"values"`
}

// FinalizeResponse reports a finalization run.
type FinalizeResponse struct {
	SignedPath   string                `json:"signedPath"`
	AuditPath    string                `json:"auditPath"`
	Notification *NotificationResponse `json:"notification,omitempty"`
}

type fieldRequest struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Page     int     `json:"page"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	SignerID string  `json:"signerId"`
	Required *bool   `json:"required"`
}

type addFieldsRequest struct {
	Fields []fieldRequest `json:"fields"`
}

type signerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	OrderIndex int    `json:"orderIndex"`
}

type addSignersRequest struct {
	Signers         []signerRequest `json:"signers"`
	ReplaceExisting bool            `json:"replaceExisting"`
}

type signatureRequest struct {
	FieldID   string `json:"fieldId"`
	Value     string `json:"value"`
	FieldType string `json:"fieldType"`
}

type submitRequest struct {
	Signatures []signatureRequest `json:"signatures"`
}

type declineRequest struct {
	Reason string `json:"reason"`
}

type createFromUploadRequest struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FileName    string `json:"fileName"`
}

func toDocumentResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		FileName:    doc.FileName,
		SizeBytes:   doc.SizeBytes,
		PageCount:   doc.PageCount,
		Status:      string(doc.Status),
		HasSigned:   doc.SignedPath != "",
		HasAudit:    doc.AuditPath != "",
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		CompletedAt: doc.CompletedAt,
	}
}

func toFieldResponses(fields []Field) []FieldResponse {
	out := make([]FieldResponse, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldResponse{
			ID:       f.Key,
			Type:     string(f.Kind),
			Page:     f.Page,
			X:        f.X,
			Y:        f.Y,
			Width:    f.Width,
			Height:   f.Height,
			SignerID: f.SignerID,
			Required: f.Required,
		})
	}
	return out
}

func toSignerResponse(s Signer) SignerResponse {
	return SignerResponse{
		ID:             s.ID,
		Name:           s.Name,
		Email:          s.Email,
		OrderIndex:     s.OrderIndex,
		Status:         string(s.Status),
		InvitedAt:      s.InvitedAt,
		LastRemindedAt: s.LastRemindedAt,
		ViewedAt:       s.ViewedAt,
		SignedAt:       s.SignedAt,
		DeclinedAt:     s.DeclinedAt,
		DeclineReason:  s.DeclineReason,
	}
}

func toSignerResponses(signers []Signer) []SignerResponse {
	out := make([]SignerResponse, 0, len(signers))
	for _, s := range signers {
		out = append(out, toSignerResponse(s))
	}
	return out
}

func toAuditResponses(entries []audit.Entry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:          e.ID,
			SubjectType: string(e.Subject.Kind),
			SubjectID:   e.Subject.ID,
			Action:      string(e.Action),
			OccurredAt:  e.OccurredAt,
			IPAddress:   e.Origin.IPAddress,
			UserAgent:   e.Origin.UserAgent,
			Metadata:    e.Metadata,
		})
	}
	return out
}

func toNotificationResponse(n NotificationOutcome) NotificationResponse {
	return NotificationResponse{
		Kind:    string(n.Kind),
		To:      n.To,
		Success: n.Success,
		Message: n.Message,
	}
}

func toSubmitResponse(r SubmitResult) SubmitResponse {
	out := SubmitResponse{
		Completed:          r.Completed,
		SignaturesCaptured: r.SignaturesCaptured,
		Notifications:      make([]NotificationResponse, 0, len(r.Notifications)),
	}
	for _, n := range r.Notifications {
		out.Notifications = append(out.Notifications, toNotificationResponse(n))
	}
	return out
}
