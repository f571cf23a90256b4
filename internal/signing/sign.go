package signing

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"esign-backend/internal/audit"
	"esign-backend/internal/notify"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
)

// SigningView is what a signer sees when opening the signing link.
type SigningView struct {
	Document Document
	Signer   Signer
	Fields   []Field
	// Values holds this signer's captured values keyed by field key.
	Values map[string]string
}

// SignatureInput is one captured value from the signer page. FieldType is
// optional; when set it must match the kind of the field it targets.
type SignatureInput struct {
	FieldID   string
	Value     string
	FieldType string
}

// NotificationOutcome records a best-effort notice sent after a commit.
type NotificationOutcome struct {
	Kind    notify.Kind
	To      []string
	Success bool
	Message string
}

// SubmitResult is returned once a submission has committed.
type SubmitResult struct {
	Completed          bool
	SignaturesCaptured int
	Notifications      []NotificationOutcome
}

// RecordView authenticates a signer and stamps the first view.
func (s *Service) RecordView(ctx context.Context, documentID, signerID, credential string, origin audit.Origin) (SigningView, error) {
	var view SigningView
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		doc, err := tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		signers, err := tx.ListSigners(ctx, documentID)
		if err != nil {
			return err
		}
		signer, _, err := authenticateSigner(signers, signerID, credential)
		if err != nil {
			return err
		}

		if signer.ViewedAt == nil {
			now := s.now()
			signer.ViewedAt = timePtr(now)
			if !signer.Status.Finished() {
				signer.Status = SignerViewed
			}
			signer.UpdatedAt = now
			if err := tx.UpdateSigner(ctx, signer); err != nil {
				return err
			}
			if err := tx.AppendAudit(ctx, audit.ForSigner(documentID, signerID, audit.ActionViewed, origin, now, nil)); err != nil {
				return err
			}
		}

		fields, err := tx.ListFields(ctx, documentID)
		if err != nil {
			return err
		}
		view = SigningView{Document: doc, Signer: signer, Fields: fieldsFor(fields, signerID)}
		return nil
	})
	if err != nil {
		return SigningView{}, persistence(err)
	}

	sigs, err := s.Store.ListSignatures(ctx, documentID)
	if err != nil {
		return SigningView{}, persistence(err)
	}
	keys := make(map[string]string, len(view.Fields))
	for _, f := range view.Fields {
		keys[f.ID] = f.Key
	}
	view.Values = make(map[string]string)
	for _, sig := range sigs {
		if key, ok := keys[sig.FieldID]; ok && sig.SignerID == signerID {
			view.Values[key] = sig.Value
		}
	}
	return view, nil
}

// SubmitSignatures captures a signer's values, marks the signer signed and
// completes the document when every signer has signed. The writes are one transaction.
func (s *Service) SubmitSignatures(ctx context.Context, documentID, signerID, credential string, inputs []SignatureInput, origin audit.Origin) (SubmitResult, error) {
	var (
		result   SubmitResult
		doc      Document
		signer   Signer
		next     *Signer
		captured int
	)
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		var err error
		doc, err = tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		signers, err := tx.ListSigners(ctx, documentID)
		if err != nil {
			return err
		}
		var pos int
		signer, pos, err = authenticateSigner(signers, signerID, credential)
		if err != nil {
			return err
		}
		if doc.Status != StatusPending {
			return invalidStatef("document is %s", doc.Status)
		}
		if signer.Status.Finished() {
			return invalidStatef("signer already %s", signer.Status)
		}

		fields, err := tx.ListFields(ctx, documentID)
		if err != nil {
			return err
		}
		byKey := make(map[string]Field, len(fields)*2)
		for _, f := range fields {
			byKey[f.Key] = f
			byKey[f.ID] = f
		}

		now := s.now()
		for _, in := range inputs {
			field, ok := byKey[strings.TrimSpace(in.FieldID)]
			if !ok || (field.SignerID != "" && field.SignerID != signerID) {
				telemetry.Warn("signing.submit_field_skipped", map[string]any{
					"document_id": documentID,
					"signer_id":   signerID,
					"field_id":    in.FieldID,
				})
				continue
			}
			if kind := FieldKind(strings.ToLower(strings.TrimSpace(in.FieldType))); kind != "" && kind != field.Kind {
				return validationf("field %s collects a %s, not a %s", field.Key, field.Kind, kind)
			}
			if err := tx.UpsertSignature(ctx, Signature{
				ID:         uuid.NewString(),
				SignerID:   signerID,
				FieldID:    field.ID,
				Value:      in.Value,
				CapturedAt: now,
				IPAddress:  origin.IPAddress,
				UserAgent:  origin.UserAgent,
			}); err != nil {
				return err
			}
			captured++
		}
		if captured == 0 {
			return validationf("no signatures provided")
		}

		signer.Status = SignerSigned
		signer.SignedAt = timePtr(now)
		signer.UpdatedAt = now
		if err := tx.UpdateSigner(ctx, signer); err != nil {
			return err
		}
		signers[pos] = signer
		if err := tx.AppendAudit(ctx, audit.ForSigner(documentID, signerID, audit.ActionSigned, origin, now, map[string]any{
			"signature_count": captured,
		})); err != nil {
			return err
		}

		if isComplete(signers) {
			markCompleted(&doc, now)
			if err := tx.UpdateDocument(ctx, doc); err != nil {
				return err
			}
			result.Completed = true
			return nil
		}
		if pos+1 < len(signers) && signers[pos+1].Status == SignerPending {
			n := signers[pos+1]
			next = &n
		}
		return nil
	})
	if err != nil {
		return SubmitResult{}, persistence(err)
	}

	result.SignaturesCaptured = captured
	metrics.IncSignaturesSubmitted()
	telemetry.Info("signing.submitted", map[string]any{
		"document_id":         documentID,
		"signer_id":           signerID,
		"signatures_captured": captured,
		"completed":           result.Completed,
	})

	if result.Completed {
		result.Notifications = s.afterCompletion(ctx, documentID, "")
		return result, nil
	}

	result.Notifications = append(result.Notifications, s.notifyOwner(ctx, doc, notify.KindSigningCompleted, map[string]any{
		"signer_name":  signer.Name,
		"signer_email": signer.Email,
	}))
	if next != nil {
		inv := s.invite(ctx, doc, *next, notify.KindSignerInvitation, origin)
		result.Notifications = append(result.Notifications, NotificationOutcome{
			Kind:    notify.KindSignerInvitation,
			To:      []string{next.Email},
			Success: inv.Success,
			Message: inv.Message,
		})
	}
	return result, nil
}

// DeclineSignature records a refusal and declines the whole document.
func (s *Service) DeclineSignature(ctx context.Context, documentID, signerID, credential, reason string, origin audit.Origin) (SubmitResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return SubmitResult{}, validationf("a reason is required to decline")
	}

	var doc Document
	var signer Signer
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		var err error
		doc, err = tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		signers, err := tx.ListSigners(ctx, documentID)
		if err != nil {
			return err
		}
		signer, _, err = authenticateSigner(signers, signerID, credential)
		if err != nil {
			return err
		}
		if doc.Status != StatusPending {
			return invalidStatef("document is %s", doc.Status)
		}
		if signer.Status.Finished() {
			return invalidStatef("signer already %s", signer.Status)
		}

		now := s.now()
		signer.Status = SignerDeclined
		signer.DeclinedAt = timePtr(now)
		signer.DeclineReason = reason
		signer.UpdatedAt = now
		if err := tx.UpdateSigner(ctx, signer); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, audit.ForSigner(documentID, signerID, audit.ActionDeclined, origin, now, map[string]any{
			"reason": reason,
		})); err != nil {
			return err
		}
		doc.Status = StatusDeclined
		doc.UpdatedAt = now
		return tx.UpdateDocument(ctx, doc)
	})
	if err != nil {
		return SubmitResult{}, persistence(err)
	}

	metrics.IncDocumentDeclined()
	telemetry.Info("signing.declined", map[string]any{
		"document_id": documentID,
		"signer_id":   signerID,
	})

	outcome := s.notifyOwner(ctx, doc, notify.KindSigningRejected, map[string]any{
		"signer_name":    signer.Name,
		"signer_email":   signer.Email,
		"decline_reason": reason,
	})
	s.auditNotification(ctx, documentID, "signing_rejected", outcome, origin)
	return SubmitResult{Notifications: []NotificationOutcome{outcome}}, nil
}

func (s *Service) notifyOwner(ctx context.Context, doc Document, kind notify.Kind, extra map[string]any) NotificationOutcome {
	outcome := NotificationOutcome{Kind: kind, To: notify.Dedupe(doc.OwnerEmail)}
	if len(outcome.To) == 0 {
		outcome.Message = "owner has no email address"
		return outcome
	}
	msgCtx := map[string]any{
		"document_id":    doc.ID,
		"document_title": doc.Title,
		"owner_name":     doc.OwnerName,
	}
	for k, v := range extra {
		msgCtx[k] = v
	}
	res := s.Notifier.Send(ctx, notify.Message{Kind: kind, To: outcome.To, Context: msgCtx})
	outcome.Success = res.Success
	outcome.Message = res.Message
	if !res.Success {
		telemetry.Warn("signing.owner_notice_failed", map[string]any{
			"document_id": doc.ID,
			"kind":        string(kind),
			"error":       res.Message,
		})
	}
	return outcome
}

// auditNotification appends a document-level notification_sent entry. Failures are logged only.
func (s *Service) auditNotification(ctx context.Context, documentID, notificationType string, outcome NotificationOutcome, origin audit.Origin) {
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		return tx.AppendAudit(ctx, audit.ForDocument(documentID, audit.ActionNotificationSent, origin, s.now(), map[string]any{
			"notification_type": notificationType,
			"recipients":        outcome.To,
			"success":           outcome.Success,
			"message":           outcome.Message,
		}))
	})
	if err != nil {
		telemetry.Error("signing.audit_notification_failed", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
}

func fieldsFor(fields []Field, signerID string) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.SignerID == "" || f.SignerID == signerID {
			out = append(out, f)
		}
	}
	return out
}
