package pdfcompose

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"esign-backend/internal/audit"
	"esign-backend/internal/shared/metrics"
	"esign-backend/internal/shared/storage/object"
	"esign-backend/internal/signing"
)

// Source is the read model the engine renders from.
type Source interface {
	GetDocument(ctx context.Context, id string) (signing.Document, error)
	ListMarks(ctx context.Context, documentID string) ([]signing.Mark, error)
	ListSigners(ctx context.Context, documentID string) ([]signing.Signer, error)
	ListAudit(ctx context.Context, documentID string) ([]audit.Entry, error)
}

// Recorder stores the flattened output path on the document record.
type Recorder interface {
	SetSignedPath(ctx context.Context, documentID, path string) error
}

// Engine composes signed and audit PDFs.
type Engine struct {
	Blobs    object.Store
	Source   Source
	Recorder Recorder
}

// New constructs an Engine reading from and recording to store.
func New(blobs object.Store, store signing.Store) *Engine {
	return &Engine{Blobs: blobs, Source: store, Recorder: store}
}

func (e *Engine) completedDocument(ctx context.Context, documentID string) (signing.Document, error) {
	doc, err := e.Source.GetDocument(ctx, documentID)
	if err != nil {
		return signing.Document{}, err
	}
	if doc.Status != signing.StatusCompleted {
		return signing.Document{}, fmt.Errorf("%w: document is %s", signing.ErrInvalidState, doc.Status)
	}
	return doc, nil
}

func (e *Engine) write(ctx context.Context, key string, data []byte) error {
	dir := path.Dir(key)
	if err := e.Blobs.MakeDirectory(ctx, dir); err != nil {
		return fmt.Errorf("prepare %s: %w", dir, err)
	}
	if err := e.Blobs.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func observe(start time.Time) {
	metrics.ObserveComposeDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", signing.ErrNotFound, fmt.Sprintf(format, args...))
}

var errRender = errors.New("pdf render failed")
