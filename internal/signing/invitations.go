package signing

import (
	"context"

	"esign-backend/internal/audit"
	"esign-backend/internal/notify"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
)

// InvitationResult is the per-signer outcome of an invitation run.
type InvitationResult struct {
	SignerID string
	Email    string
	Success  bool
	Skipped  bool
	Message  string
}

// SendInvitations notifies every unfinished signer in order. One failed send does
// not stop the rest; callers inspect the per-signer results.
func (s *Service) SendInvitations(ctx context.Context, ownerID, documentID string, origin audit.Origin) ([]InvitationResult, error) {
	doc, err := s.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != StatusPending {
		return nil, invalidStatef("invitations require a pending document, got %s", doc.Status)
	}
	fields, err := s.Store.ListFields(ctx, documentID)
	if err != nil {
		return nil, persistence(err)
	}
	if len(fields) == 0 {
		return nil, invalidStatef("document has no fields")
	}
	signers, err := s.Store.ListSigners(ctx, documentID)
	if err != nil {
		return nil, persistence(err)
	}
	if len(signers) == 0 {
		return nil, invalidStatef("document has no signers")
	}

	results := make([]InvitationResult, 0, len(signers))
	for _, signer := range signers {
		if signer.Status.Finished() {
			results = append(results, InvitationResult{
				SignerID: signer.ID,
				Email:    signer.Email,
				Skipped:  true,
				Message:  "signer already " + string(signer.Status),
			})
			continue
		}
		results = append(results, s.invite(ctx, doc, signer, notify.KindSignerInvitation, origin))
	}
	return results, nil
}

// ResendInvitation re-sends the invitation to a single unfinished signer.
func (s *Service) ResendInvitation(ctx context.Context, ownerID, documentID, signerID string, origin audit.Origin) (InvitationResult, error) {
	doc, err := s.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return InvitationResult{}, err
	}
	if doc.Status != StatusPending {
		return InvitationResult{}, invalidStatef("invitations require a pending document, got %s", doc.Status)
	}
	signers, err := s.Store.ListSigners(ctx, documentID)
	if err != nil {
		return InvitationResult{}, persistence(err)
	}
	for _, signer := range signers {
		if signer.ID != signerID {
			continue
		}
		if signer.Status.Finished() {
			return InvitationResult{}, invalidStatef("signer already %s", signer.Status)
		}
		return s.invite(ctx, doc, signer, notify.KindSignerInvitation, origin), nil
	}
	return InvitationResult{}, ErrNotFound
}

// invite sends one invitation or reminder and records it when delivery succeeds.
func (s *Service) invite(ctx context.Context, doc Document, signer Signer, kind notify.Kind, origin audit.Origin) InvitationResult {
	result := InvitationResult{SignerID: signer.ID, Email: signer.Email}

	res := s.Notifier.Send(ctx, notify.Message{
		Kind:    kind,
		To:      []string{signer.Email},
		Context: s.invitationContext(doc, signer, kind == notify.KindSignerReminder),
	})
	if !res.Success {
		result.Message = res.Message
		s.countDelivery(kind, false)
		telemetry.Warn("signing.invite_failed", map[string]any{
			"document_id": doc.ID,
			"signer_id":   signer.ID,
			"kind":        string(kind),
			"error":       res.Message,
		})
		return result
	}

	if err := s.recordDelivery(ctx, doc.ID, signer.ID, kind == notify.KindSignerReminder, origin); err != nil {
		result.Message = "sent but not recorded: " + err.Error()
		s.countDelivery(kind, false)
		telemetry.Error("signing.invite_record_failed", map[string]any{
			"document_id": doc.ID,
			"signer_id":   signer.ID,
			"error":       err.Error(),
		})
		return result
	}

	s.countDelivery(kind, true)
	result.Success = true
	result.Message = res.Message
	return result
}

// recordDelivery stamps the signer after a successful send. A first invitation
// moves pending to invited; every delivery refreshes last_reminded_at.
func (s *Service) recordDelivery(ctx context.Context, documentID, signerID string, reminder bool, origin audit.Origin) error {
	return s.Store.WithTx(ctx, func(tx Tx) error {
		doc, err := tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != StatusPending {
			return invalidStatef("document became %s", doc.Status)
		}
		signers, err := tx.ListSigners(ctx, documentID)
		if err != nil {
			return err
		}
		var signer *Signer
		for i := range signers {
			if signers[i].ID == signerID {
				signer = &signers[i]
				break
			}
		}
		if signer == nil {
			return ErrNotFound
		}
		if signer.Status.Finished() {
			return invalidStatef("signer already %s", signer.Status)
		}

		now := s.now()
		action := audit.ActionReminderSent
		if !reminder {
			action = audit.ActionInvited
			if signer.Status == SignerPending {
				signer.Status = SignerInvited
				signer.InvitedAt = timePtr(now)
			}
		}
		signer.LastRemindedAt = timePtr(now)
		signer.UpdatedAt = now
		if err := tx.UpdateSigner(ctx, *signer); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.ForSigner(documentID, signerID, action, origin, now, map[string]any{
			"email": signer.Email,
		}))
	})
}

func (s *Service) invitationContext(doc Document, signer Signer, reminder bool) map[string]any {
	return map[string]any{
		"document_id":    doc.ID,
		"document_title": doc.Title,
		"owner_name":     doc.OwnerName,
		"owner_email":    doc.OwnerEmail,
		"signer_id":      signer.ID,
		"signer_name":    signer.Name,
		"order_index":    signer.OrderIndex,
		"signing_link":   s.signingLink(doc, signer),
		"is_reminder":    reminder,
	}
}

func (s *Service) countDelivery(kind notify.Kind, ok bool) {
	switch {
	case kind == notify.KindSignerReminder && ok:
		metrics.IncReminderSent()
	case kind == notify.KindSignerReminder:
		metrics.IncReminderFailed()
	case ok:
		metrics.IncInvitationSent()
	default:
		metrics.IncInvitationFailed()
	}
}
