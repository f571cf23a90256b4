package audit

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// SubjectKind tags what an entry is attached to.
type SubjectKind string

const (
	SubjectDocument SubjectKind = "document"
	SubjectSigner   SubjectKind = "signer"
)

// Valid reports whether k is a known subject kind.
func (k SubjectKind) Valid() bool {
	return k == SubjectDocument || k == SubjectSigner
}

// Subject identifies the record an entry belongs to.
type Subject struct {
	Kind SubjectKind
	ID   string
}

// Action is the event recorded by an entry.
type Action string

const (
	ActionInvited          Action = "invited"
	ActionViewed           Action = "viewed"
	ActionSigned           Action = "signed"
	ActionDeclined         Action = "declined"
	ActionReminderSent     Action = "reminder_sent"
	ActionNotificationSent Action = "notification_sent"
)

// Origin carries the client address and user agent of the caller.
type Origin struct {
	IPAddress string
	UserAgent string
}

// SystemOrigin marks entries written by scheduled jobs.
var SystemOrigin = Origin{IPAddress: "127.0.0.1", UserAgent: "esign-scheduler"}

// Entry is one append-only audit record.
type Entry struct {
	ID         string
	DocumentID string
	Subject    Subject
	Action     Action
	OccurredAt time.Time
	Origin     Origin
	Metadata   map[string]any
}

// ForDocument builds an entry attached to the document itself.
func ForDocument(documentID string, action Action, origin Origin, at time.Time, metadata map[string]any) Entry {
	return newEntry(documentID, Subject{Kind: SubjectDocument, ID: documentID}, action, origin, at, metadata)
}

// ForSigner builds an entry attached to one signer of the document.
func ForSigner(documentID, signerID string, action Action, origin Origin, at time.Time, metadata map[string]any) Entry {
	return newEntry(documentID, Subject{Kind: SubjectSigner, ID: signerID}, action, origin, at, metadata)
}

func newEntry(documentID string, subject Subject, action Action, origin Origin, at time.Time, metadata map[string]any) Entry {
	at = at.UTC()
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Entry{
		ID:         ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		DocumentID: documentID,
		Subject:    subject,
		Action:     action,
		OccurredAt: at,
		Origin:     origin,
		Metadata:   metadata,
	}
}
