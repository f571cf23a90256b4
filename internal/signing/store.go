package signing

import (
	"context"
	"time"

	"esign-backend/internal/audit"
)

// Store is the persistence boundary of the signing workflow.
// Reads run outside a transaction; every state change goes through WithTx.
type Store interface {
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]Document, error)
	ListFields(ctx context.Context, documentID string) ([]Field, error)
	ListSigners(ctx context.Context, documentID string) ([]Signer, error)
	ListSignatures(ctx context.Context, documentID string) ([]Signature, error)
	ListMarks(ctx context.Context, documentID string) ([]Mark, error)
	ListAudit(ctx context.Context, documentID string) ([]audit.Entry, error)

	// DueReminders returns unfinished signers of pending documents invited and
	// last reminded at or before cutoff.
	DueReminders(ctx context.Context, cutoff time.Time) ([]ReminderCandidate, error)
	// PurgeCandidates returns documents in one of statuses created at or before cutoff.
	PurgeCandidates(ctx context.Context, statuses []DocumentStatus, cutoff time.Time) ([]Document, error)

	// SetSignedPath and SetAuditPath record composition output. Both are idempotent.
	SetSignedPath(ctx context.Context, documentID, path string) error
	SetAuditPath(ctx context.Context, documentID, path string) error

	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of Store, scoped to one transaction.
type Tx interface {
	audit.Appender

	// LockDocument loads a document and holds it until the transaction ends.
	LockDocument(ctx context.Context, id string) (Document, error)
	CreateDocument(ctx context.Context, doc Document) error
	UpdateDocument(ctx context.Context, doc Document) error
	DeleteDocument(ctx context.Context, id string) error

	ListFields(ctx context.Context, documentID string) ([]Field, error)
	ReplaceFields(ctx context.Context, documentID string, fields []Field) error

	ListSigners(ctx context.Context, documentID string) ([]Signer, error)
	InsertSigner(ctx context.Context, signer Signer) error
	UpdateSigner(ctx context.Context, signer Signer) error
	DeleteSigner(ctx context.Context, documentID, signerID string) error
	DeleteSigners(ctx context.Context, documentID string) error

	CountSignatures(ctx context.Context, documentID string) (int, error)
	UpsertSignature(ctx context.Context, sig Signature) error
}
