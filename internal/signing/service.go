package signing

import (
	"context"
	"strings"
	"time"

	"esign-backend/internal/notify"
	"esign-backend/internal/queue"
	"esign-backend/internal/shared/storage/object"
)

// Composer renders the signed and audit PDFs of a completed document.
type Composer interface {
	FlattenSignatures(ctx context.Context, documentID string) (string, error)
	GenerateAuditTrailPdf(ctx context.Context, documentID string) (string, error)
}

// Service runs the signing workflow.
type Service struct {
	Store    Store
	Blobs    object.Store
	Notifier notify.Notifier
	Composer Composer
	// Jobs, when set, receives finalize_document messages instead of finalizing inline.
	Jobs           queue.Client
	SigningBaseURL string
	Now            func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ownedDocument loads a document and checks the caller owns it.
func (s *Service) ownedDocument(ctx context.Context, ownerID, documentID string) (Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Document{}, ErrAuthorization
	}
	doc, err := s.Store.GetDocument(ctx, documentID)
	if err != nil {
		return Document{}, persistence(err)
	}
	if doc.OwnerID != ownerID {
		return Document{}, ErrAuthorization
	}
	return doc, nil
}

func (s *Service) lockOwned(ctx context.Context, tx Tx, ownerID, documentID string) (Document, error) {
	doc, err := tx.LockDocument(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.OwnerID != ownerID {
		return Document{}, ErrAuthorization
	}
	return doc, nil
}

// authenticateSigner resolves a signer by id and checks its credential.
func authenticateSigner(signers []Signer, signerID, credential string) (Signer, int, error) {
	for i, sg := range signers {
		if sg.ID == signerID {
			if !credentialMatches(sg, credential) {
				return Signer{}, -1, ErrAuthorization
			}
			return sg, i, nil
		}
	}
	return Signer{}, -1, ErrNotFound
}

func (s *Service) signingLink(doc Document, signer Signer) string {
	return notify.SigningLink(s.SigningBaseURL, doc.ID, signer.ID, signer.AccessToken)
}
