package audit

import "context"

// Appender persists entries. Implementations write inside the caller's transaction.
type Appender interface {
	AppendAudit(ctx context.Context, entry Entry) error
}

// Lister returns every entry recorded for a document, document and signer subjects alike.
type Lister interface {
	ListAudit(ctx context.Context, documentID string) ([]Entry, error)
}
