package signing

import "time"

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusPending   DocumentStatus = "pending"
	StatusCompleted DocumentStatus = "completed"
	StatusDeclined  DocumentStatus = "declined"
	// StatusExpired and StatusCancelled are set only by retention tooling.
	StatusExpired   DocumentStatus = "expired"
	StatusCancelled DocumentStatus = "cancelled"
)

// Editable reports whether fields and signers may still change.
func (s DocumentStatus) Editable() bool {
	return s == StatusDraft || s == StatusPending
}

// SignerStatus is the per-signer state.
type SignerStatus string

const (
	SignerPending  SignerStatus = "pending"
	SignerInvited  SignerStatus = "invited"
	SignerViewed   SignerStatus = "viewed"
	SignerSigned   SignerStatus = "signed"
	SignerDeclined SignerStatus = "declined"
)

// Finished reports whether the signer can no longer act.
func (s SignerStatus) Finished() bool {
	return s == SignerSigned || s == SignerDeclined
}

// FieldKind is the kind of mark a field collects.
type FieldKind string

const (
	FieldSignature FieldKind = "signature"
	FieldInitial   FieldKind = "initial"
	FieldDate      FieldKind = "date"
	FieldCheckbox  FieldKind = "checkbox"
	FieldText      FieldKind = "text"
)

func (k FieldKind) valid() bool {
	switch k {
	case FieldSignature, FieldInitial, FieldDate, FieldCheckbox, FieldText:
		return true
	}
	return false
}

// Document is an uploaded PDF moving through the signing workflow.
type Document struct {
	ID           string
	OwnerID      string
	OwnerEmail   string
	OwnerName    string
	Title        string
	Description  string
	OriginalPath string
	FileName     string
	SizeBytes    int64
	PageCount    int
	Status       DocumentStatus
	SignedPath   string
	AuditPath    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	ExpiresAt    *time.Time
}

// Field is a placed area on a page where a mark is captured.
// Coordinates are PDF points from the top-left corner of the page.
type Field struct {
	ID         string
	DocumentID string
	Key        string
	SignerID   string
	Kind       FieldKind
	Page       int
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Required   bool
	CreatedAt  time.Time
}

// Signer is a party invited to sign, authenticated by AccessToken only.
type Signer struct {
	ID             string
	DocumentID     string
	Name           string
	Email          string
	AccessToken    string
	OrderIndex     int
	Status         SignerStatus
	InvitedAt      *time.Time
	LastRemindedAt *time.Time
	ViewedAt       *time.Time
	SignedAt       *time.Time
	DeclinedAt     *time.Time
	DeclineReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Signature is the captured value for one (signer, field) pair.
type Signature struct {
	ID         string
	SignerID   string
	FieldID    string
	Value      string
	CapturedAt time.Time
	IPAddress  string
	UserAgent  string
}

// Mark joins a captured signature with the field it belongs to.
type Mark struct {
	FieldID    string
	FieldKey   string
	Kind       FieldKind
	Page       int
	X          float64
	Y          float64
	Width      float64
	Height     float64
	SignerID   string
	SignerName string
	Value      string
	CapturedAt time.Time
}

// ReminderCandidate is a signer due for a reminder together with its document.
type ReminderCandidate struct {
	Document Document
	Signer   Signer
}

func timePtr(t time.Time) *time.Time {
	return &t
}
