package signing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"esign-backend/internal/shared/telemetry"
)

// FieldInput is one placed field as sent by the placement tool.
type FieldInput struct {
	ID       string
	Type     string
	Page     int
	X        float64
	Y        float64
	Width    float64
	Height   float64
	SignerID string
	Required *bool
}

// AddFields replaces the document's field set.
func (s *Service) AddFields(ctx context.Context, ownerID, documentID string, inputs []FieldInput) ([]Field, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	var out []Field
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		doc, err := s.lockOwned(ctx, tx, ownerID, documentID)
		if err != nil {
			return err
		}
		if !doc.Status.Editable() {
			return invalidStatef("fields cannot change while document is %s", doc.Status)
		}
		count, err := tx.CountSignatures(ctx, documentID)
		if err != nil {
			return err
		}
		if count > 0 {
			return invalidStatef("fields already carry %d captured signatures", count)
		}

		signers, err := tx.ListSigners(ctx, documentID)
		if err != nil {
			return err
		}
		fields, err := buildFields(doc, signers, inputs, s.now())
		if err != nil {
			return err
		}
		if err := tx.ReplaceFields(ctx, documentID, fields); err != nil {
			return err
		}

		if len(fields) > 0 && doc.Status == StatusDraft {
			doc.Status = StatusPending
			doc.UpdatedAt = s.now()
			if err := tx.UpdateDocument(ctx, doc); err != nil {
				return err
			}
		}
		out = fields
		return nil
	})
	if err != nil {
		return nil, persistence(err)
	}

	telemetry.Info("signing.fields_replaced", map[string]any{
		"document_id": documentID,
		"field_count": len(out),
	})
	return out, nil
}

// ListFields returns the document's fields for its owner.
func (s *Service) ListFields(ctx context.Context, ownerID, documentID string) ([]Field, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	fields, err := s.Store.ListFields(ctx, documentID)
	return fields, persistence(err)
}

func buildFields(doc Document, signers []Signer, inputs []FieldInput, now time.Time) ([]Field, error) {
	known := make(map[string]bool, len(signers))
	for _, sg := range signers {
		known[sg.ID] = true
	}

	seen := make(map[string]bool, len(inputs))
	fields := make([]Field, 0, len(inputs))
	for i, in := range inputs {
		key := strings.TrimSpace(in.ID)
		if key == "" {
			return nil, validationf("field %d: id is required", i)
		}
		if seen[key] {
			return nil, validationf("field %q: duplicate id", key)
		}
		seen[key] = true

		kind := FieldKind(strings.ToLower(strings.TrimSpace(in.Type)))
		if !kind.valid() {
			return nil, validationf("field %q: unknown type %q", key, in.Type)
		}
		if in.Page < 1 {
			return nil, validationf("field %q: page must be >= 1", key)
		}
		if doc.PageCount > 0 && in.Page > doc.PageCount {
			return nil, validationf("field %q: page %d beyond document page count %d", key, in.Page, doc.PageCount)
		}
		if !finite(in.X, in.Y, in.Width, in.Height) {
			return nil, validationf("field %q: geometry must be finite", key)
		}
		if in.Width <= 0 || in.Height <= 0 {
			return nil, validationf("field %q: width and height must be positive", key)
		}
		if in.X < 0 || in.Y < 0 {
			return nil, validationf("field %q: position must not be negative", key)
		}
		signerID := strings.TrimSpace(in.SignerID)
		if signerID != "" && !known[signerID] {
			return nil, validationf("field %q: signer %q does not belong to document", key, signerID)
		}
		required := true
		if in.Required != nil {
			required = *in.Required
		}

		fields = append(fields, Field{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Key:        key,
			SignerID:   signerID,
			Kind:       kind,
			Page:       in.Page,
			X:          in.X,
			Y:          in.Y,
			Width:      in.Width,
			Height:     in.Height,
			Required:   required,
			CreatedAt:  now,
		})
	}
	return fields, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
