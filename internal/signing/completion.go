package signing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"esign-backend/internal/audit"
	"esign-backend/internal/notify"
	"esign-backend/internal/queue"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/telemetry"
)

const completionNotice = "document_completed"

// FinalizeResult reports the artifacts produced for a completed document.
type FinalizeResult struct {
	SignedPath   string
	AuditPath    string
	Notification *NotificationOutcome
}

// isComplete is true only for a non-empty signer set where everyone signed.
func isComplete(signers []Signer) bool {
	if len(signers) == 0 {
		return false
	}
	for _, sg := range signers {
		if sg.Status != SignerSigned {
			return false
		}
	}
	return true
}

// markCompleted sets the completion fields together so the signed path is present iff completed.
func markCompleted(doc *Document, now time.Time) {
	doc.Status = StatusCompleted
	doc.CompletedAt = timePtr(now)
	doc.SignedPath = SignedPath(doc.ID, doc.OriginalPath)
	doc.UpdatedAt = now
}

// afterCompletion runs or enqueues finalization once the completing transaction committed.
func (s *Service) afterCompletion(ctx context.Context, documentID, requestID string) []NotificationOutcome {
	metrics.IncDocumentCompleted()

	if s.Jobs != nil {
		err := s.Jobs.Send(ctx, queue.Message{
			Kind:       queue.KindFinalizeDocument,
			DocumentID: documentID,
			RequestID:  requestID,
			EnqueuedAt: s.now().Format(time.RFC3339),
			Version:    queue.CurrentVersion,
		})
		if err == nil {
			telemetry.Info("signing.finalize_enqueued", map[string]any{"document_id": documentID})
			return nil
		}
		telemetry.Warn("signing.finalize_enqueue_failed", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}

	res, err := s.FinalizeCompletion(ctx, documentID)
	if err != nil {
		return nil
	}
	if res.Notification == nil {
		return nil
	}
	return []NotificationOutcome{*res.Notification}
}

// FinalizeCompletion flattens the signed PDF, renders the audit trail and sends
// the completion notice. It is safe to retry; a notice already delivered is not resent.
func (s *Service) FinalizeCompletion(ctx context.Context, documentID string) (FinalizeResult, error) {
	doc, err := s.Store.GetDocument(ctx, documentID)
	if err != nil {
		return FinalizeResult{}, persistence(err)
	}
	if doc.Status != StatusCompleted {
		return FinalizeResult{}, invalidStatef("document is %s", doc.Status)
	}
	if s.Composer == nil {
		return FinalizeResult{}, errors.New("pdf composer not configured")
	}

	signedPath, err := s.Composer.FlattenSignatures(ctx, documentID)
	if errors.Is(err, ErrNoMarks) {
		signedPath, err = s.copyUnmarked(ctx, doc)
	}
	if err != nil {
		s.finalizeFailed(documentID, "flatten", err)
		return FinalizeResult{}, fmt.Errorf("flatten signatures: %w", err)
	}
	auditPath, err := s.Composer.GenerateAuditTrailPdf(ctx, documentID)
	if err != nil {
		s.finalizeFailed(documentID, "audit_trail", err)
		return FinalizeResult{SignedPath: signedPath}, fmt.Errorf("generate audit trail: %w", err)
	}
	if err := s.Store.SetAuditPath(ctx, documentID, auditPath); err != nil {
		s.finalizeFailed(documentID, "record_audit_path", err)
		return FinalizeResult{SignedPath: signedPath}, persistence(err)
	}

	result := FinalizeResult{SignedPath: signedPath, AuditPath: auditPath}

	sent, err := s.completionNoticeSent(ctx, documentID)
	if err != nil {
		return result, persistence(err)
	}
	if sent {
		return result, nil
	}

	signers, err := s.Store.ListSigners(ctx, documentID)
	if err != nil {
		return result, persistence(err)
	}
	recipients := []string{doc.OwnerEmail}
	for _, sg := range signers {
		recipients = append(recipients, sg.Email)
	}
	outcome := NotificationOutcome{Kind: notify.KindDocumentCompleted, To: notify.Dedupe(recipients...)}
	res := s.Notifier.Send(ctx, notify.Message{
		Kind: notify.KindDocumentCompleted,
		To:   outcome.To,
		Context: map[string]any{
			"document_id":    doc.ID,
			"document_title": doc.Title,
			"owner_name":     doc.OwnerName,
			"signer_count":   len(signers),
		},
		Attachments: []notify.Attachment{
			s.attachment(doc.Title+" (Signed).pdf", signedPath),
			s.attachment(doc.Title+" (Audit Trail).pdf", auditPath),
		},
	})
	outcome.Success = res.Success
	outcome.Message = res.Message
	if !res.Success {
		telemetry.Warn("signing.completion_notice_failed", map[string]any{
			"document_id": documentID,
			"error":       res.Message,
		})
	}
	s.auditNotification(ctx, documentID, completionNotice, outcome, audit.SystemOrigin)
	result.Notification = &outcome

	telemetry.Info("signing.finalized", map[string]any{
		"document_id": documentID,
		"signed_path": signedPath,
		"audit_path":  auditPath,
	})
	return result, nil
}

// copyUnmarked stores the original as the signed copy when no marks were
// captured, so the audit trail and completion notice can still go out.
func (s *Service) copyUnmarked(ctx context.Context, doc Document) (string, error) {
	if s.Blobs == nil {
		return "", ErrNoMarks
	}
	path := SignedPath(doc.ID, doc.OriginalPath)
	if err := s.Blobs.Copy(ctx, doc.OriginalPath, path); err != nil {
		return "", fmt.Errorf("copy unmarked original: %w", err)
	}
	if err := s.Store.SetSignedPath(ctx, doc.ID, path); err != nil {
		return "", persistence(err)
	}
	telemetry.Warn("signing.finalize_without_marks", map[string]any{
		"document_id": doc.ID,
		"signed_path": path,
	})
	return path, nil
}

func (s *Service) completionNoticeSent(ctx context.Context, documentID string) (bool, error) {
	entries, err := s.Store.ListAudit(ctx, documentID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Action != audit.ActionNotificationSent || e.Subject.Kind != audit.SubjectDocument {
			continue
		}
		if e.Metadata["notification_type"] == completionNotice && e.Metadata["success"] == true {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) attachment(name, path string) notify.Attachment {
	a := notify.Attachment{Name: name, Path: path}
	if s.Blobs != nil {
		a.URL = s.Blobs.PublicURL(path)
	}
	return a
}

func (s *Service) finalizeFailed(documentID, step string, err error) {
	metrics.IncFinalizeFailed()
	telemetry.Error("signing.finalize_failed", map[string]any{
		"document_id": documentID,
		"step":        step,
		"error":       err.Error(),
	})
}
