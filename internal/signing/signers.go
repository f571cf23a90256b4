package signing

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"esign-backend/internal/shared/telemetry"
)

// SignerInput is one signer to attach to a document.
type SignerInput struct {
	Name       string
	Email      string
	OrderIndex int
}

// AddSigners attaches signers and moves the document to pending.
// With replaceExisting the current signers and their signatures are removed first.
func (s *Service) AddSigners(ctx context.Context, ownerID, documentID string, inputs []SignerInput, replaceExisting bool) ([]Signer, error) {
	if len(inputs) == 0 {
		return nil, validationf("at least one signer is required")
	}
	normalized, err := normalizeSigners(inputs)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	var created []Signer
	err = s.Store.WithTx(ctx, func(tx Tx) error {
		doc, err := s.lockOwned(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		if !doc.Status.Editable() {
			return invalidStatef("signers cannot change while document is %s", doc.Status)
		}

		if replaceExisting {
			if err := tx.DeleteSigners(ctx, documentID); err != nil {
				return err
			}
		} else {
			existing, err := tx.ListSigners(ctx, documentID)
			if err != nil {
				return err
			}
			used := make(map[int]bool, len(existing))
			for _, sg := range existing {
				used[sg.OrderIndex] = true
			}
			for _, in := range normalized {
				if used[in.OrderIndex] {
					return validationf("order index %d already used on this document", in.OrderIndex)
				}
			}
		}

		now := s.now()
		created = make([]Signer, 0, len(normalized))
		for _, in := range normalized {
			token, err := NewAccessToken()
			if err != nil {
				return err
			}
			signer := Signer{
				ID:          uuid.NewString(),
				DocumentID:  documentID,
				Name:        in.Name,
				Email:       in.Email,
				AccessToken: token,
				OrderIndex:  in.OrderIndex,
				Status:      SignerPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.InsertSigner(ctx, signer); err != nil {
				return err
			}
			created = append(created, signer)
		}

		doc.Status = StatusPending
		doc.UpdatedAt = now
		return tx.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return nil, persistence(err)
	}

	telemetry.Info("signing.signers_added", map[string]any{
		"document_id":  documentID,
		"signer_count": len(created),
		"replaced":     replaceExisting,
	})
	return created, nil
}

// RemoveSigner deletes one signer. A document left without signers returns to draft;
// one whose remaining signers have all signed completes.
func (s *Service) RemoveSigner(ctx context.Context, ownerID, documentID, signerID string) (Document, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return Document{}, err
	}

	var result Document
	completed := false
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		doc, err := s.lockOwned(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		if !doc.Status.Editable() {
			return invalidStatef("signers cannot change while document is %s", doc.Status)
		}
		if err := tx.DeleteSigner(ctx, documentID, signerID); err != nil {
			return err
		}
		remaining, err := tx.ListSigners(ctx, documentID)
		if err != nil {
			return err
		}

		now := s.now()
		switch {
		case len(remaining) == 0:
			doc.Status = StatusDraft
		case isComplete(remaining):
			markCompleted(&doc, now)
			completed = true
		}
		doc.UpdatedAt = now
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return Document{}, persistence(err)
	}

	telemetry.Info("signing.signer_removed", map[string]any{
		"document_id": documentID,
		"signer_id":   signerID,
		"status":      string(result.Status),
	})
	if completed {
		s.afterCompletion(ctx, documentID, "")
	}
	return result, nil
}

// ListSigners returns the document's signers in signing order.
func (s *Service) ListSigners(ctx context.Context, ownerID, documentID string) ([]Signer, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	signers, err := s.Store.ListSigners(ctx, documentID)
	return signers, persistence(err)
}

func normalizeSigners(inputs []SignerInput) ([]SignerInput, error) {
	out := make([]SignerInput, 0, len(inputs))
	seenOrder := make(map[int]bool, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, validationf("signer %d: name is required", i+1)
		}
		addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
		if err != nil {
			return nil, validationf("signer %d: invalid email %q", i+1, in.Email)
		}
		if in.OrderIndex < 1 {
			return nil, validationf("signer %d: order index must be >= 1", i+1)
		}
		if seenOrder[in.OrderIndex] {
			return nil, validationf("signer %d: duplicate order index %d", i+1, in.OrderIndex)
		}
		seenOrder[in.OrderIndex] = true
		out = append(out, SignerInput{Name: name, Email: addr.Address, OrderIndex: in.OrderIndex})
	}
	return out, nil
}
