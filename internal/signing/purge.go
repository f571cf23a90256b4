package signing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/storage/object"
	"esign-backend/internal/shared/telemetry"
)

const DefaultPurgeAfterDays = 7

// PurgeStatuses are the terminal states eligible for retention purge.
var PurgeStatuses = []DocumentStatus{StatusCompleted, StatusDeclined, StatusCancelled}

// PurgeOptions controls a purge run.
type PurgeOptions struct {
	AfterDays int
	DryRun    bool
	Now       time.Time
}

// PurgeReport summarizes a purge run.
type PurgeReport struct {
	Selected    int
	Deleted     int
	Failed      int
	DryRun      bool
	DocumentIDs []string
}

// PurgeExpired deletes terminal documents older than the cutoff together with their blobs.
// A failing document is counted and skipped.
func (s *Service) PurgeExpired(ctx context.Context, opts PurgeOptions) (PurgeReport, error) {
	days := opts.AfterDays
	if days <= 0 {
		days = DefaultPurgeAfterDays
	}
	now := opts.Now
	if now.IsZero() {
		now = s.now()
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	docs, err := s.Store.PurgeCandidates(ctx, PurgeStatuses, cutoff)
	if err != nil {
		return PurgeReport{}, persistence(err)
	}

	report := PurgeReport{Selected: len(docs), DryRun: opts.DryRun, DocumentIDs: make([]string, 0, len(docs))}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if opts.DryRun {
			telemetry.Info("signing.purge_dry_run", map[string]any{
				"document_id": doc.ID,
				"status":      string(doc.Status),
				"created_at":  doc.CreatedAt.Format(time.RFC3339),
			})
			report.DocumentIDs = append(report.DocumentIDs, doc.ID)
			continue
		}
		if err := s.purgeDocument(ctx, doc); err != nil {
			report.Failed++
			metrics.IncPurgeFailed()
			telemetry.Error("signing.purge_failed", map[string]any{
				"document_id": doc.ID,
				"error":       err.Error(),
			})
			continue
		}
		report.Deleted++
		report.DocumentIDs = append(report.DocumentIDs, doc.ID)
		metrics.IncDocumentPurged()
	}

	telemetry.Info("signing.purge_run", map[string]any{
		"cutoff":   cutoff.Format(time.RFC3339),
		"selected": report.Selected,
		"deleted":  report.Deleted,
		"failed":   report.Failed,
		"dry_run":  report.DryRun,
	})
	return report, nil
}

func (s *Service) purgeDocument(ctx context.Context, doc Document) error {
	if err := s.deleteBlobs(ctx, doc); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteDocument(ctx, doc.ID)
	})
}

// deleteBlobs removes the original and any derived PDFs. Missing blobs are ignored.
func (s *Service) deleteBlobs(ctx context.Context, doc Document) error {
	if s.Blobs == nil {
		return nil
	}
	var errs []error
	for _, p := range []string{doc.OriginalPath, doc.SignedPath, doc.AuditPath} {
		if p == "" {
			continue
		}
		if err := s.Blobs.Delete(ctx, p); err != nil && !errors.Is(err, object.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
