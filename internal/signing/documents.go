package signing

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"

	"esign-backend/internal/audit"
	"esign-backend/internal/extract"
	"esign-backend/internal/shared/storage/object"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/shared/util"
)

// Owner identifies the authenticated document owner.
type Owner struct {
	ID    string
	Email string
	Name  string
}

// NewDocument is an upload to register as a draft document.
type NewDocument struct {
	Title       string
	Description string
	FileName    string
}

// DocumentDetail bundles a document with its layout and signers.
type DocumentDetail struct {
	Document Document
	Fields   []Field
	Signers  []Signer
}

// DownloadKind selects which PDF of a document to fetch.
type DownloadKind string

const (
	DownloadOriginal DownloadKind = "original"
	DownloadSigned   DownloadKind = "signed"
	DownloadAudit    DownloadKind = "audit"
)

// File is a downloadable PDF.
type File struct {
	Name string
	Data []byte
}

// CreateDocument stores an uploaded PDF and creates a draft document.
func (s *Service) CreateDocument(ctx context.Context, owner Owner, in NewDocument, data []byte) (Document, error) {
	if strings.TrimSpace(owner.ID) == "" {
		return Document{}, ErrAuthorization
	}
	info, err := inspectUpload(ctx, in, data)
	if err != nil {
		return Document{}, err
	}
	key, err := object.NewOriginalKey(owner.ID, in.FileName)
	if err != nil {
		return Document{}, validationf("%v", err)
	}
	if err := s.Blobs.Put(ctx, key, data); err != nil {
		return Document{}, persistence(err)
	}

	doc, err := s.insertDocument(ctx, owner, in, key, int64(len(data)), info.PageCount)
	if err != nil {
		if delErr := s.Blobs.Delete(ctx, key); delErr != nil {
			telemetry.Warn("signing.upload_cleanup_failed", map[string]any{"key": key, "error": delErr.Error()})
		}
		return Document{}, err
	}
	return doc, nil
}

// CreateFromUpload registers a PDF the owner already uploaded to their originals prefix.
func (s *Service) CreateFromUpload(ctx context.Context, owner Owner, in NewDocument, key string) (Document, error) {
	if strings.TrimSpace(owner.ID) == "" {
		return Document{}, ErrAuthorization
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return Document{}, validationf("%v", err)
	}
	if !strings.HasPrefix(clean, OwnerUploadPrefix(owner.ID)) {
		return Document{}, ErrAuthorization
	}
	data, err := s.Blobs.Get(ctx, clean)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, validationf("uploaded object %s not found", clean)
		}
		return Document{}, persistence(err)
	}
	if strings.TrimSpace(in.FileName) == "" {
		in.FileName = path.Base(clean)
	}
	info, err := inspectUpload(ctx, in, data)
	if err != nil {
		return Document{}, err
	}
	// Each document owns its original, so the staged object moves to a fresh key.
	fresh, err := object.NewOriginalKey(owner.ID, in.FileName)
	if err != nil {
		return Document{}, validationf("%v", err)
	}
	if err := s.Blobs.Put(ctx, fresh, data); err != nil {
		return Document{}, persistence(err)
	}
	doc, err := s.insertDocument(ctx, owner, in, fresh, int64(len(data)), info.PageCount)
	if err != nil {
		if delErr := s.Blobs.Delete(ctx, fresh); delErr != nil {
			telemetry.Warn("signing.upload_cleanup_failed", map[string]any{"key": fresh, "error": delErr.Error()})
		}
		return Document{}, err
	}
	if err := s.Blobs.Delete(ctx, clean); err != nil {
		telemetry.Warn("signing.staged_upload_cleanup_failed", map[string]any{"key": clean, "error": err.Error()})
	}
	return doc, nil
}

// OwnerUploadPrefix is the key prefix an owner may upload originals under.
func OwnerUploadPrefix(ownerID string) string {
	return object.OriginalsPrefix + "/" + util.HashUserKey(ownerID) + "/"
}

func (s *Service) insertDocument(ctx context.Context, owner Owner, in NewDocument, key string, size int64, pages int) (Document, error) {
	now := s.now()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(in.FileName, path.Ext(in.FileName))
	}
	doc := Document{
		ID:           uuid.NewString(),
		OwnerID:      owner.ID,
		OwnerEmail:   strings.TrimSpace(owner.Email),
		OwnerName:    strings.TrimSpace(owner.Name),
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		OriginalPath: key,
		FileName:     in.FileName,
		SizeBytes:    size,
		PageCount:    pages,
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateDocument(ctx, doc)
	})
	if err != nil {
		return Document{}, persistence(err)
	}
	telemetry.Info("signing.document_created", map[string]any{
		"document_id": doc.ID,
		"owner_id":    owner.ID,
		"page_count":  pages,
		"size_bytes":  size,
	})
	return doc, nil
}

func inspectUpload(ctx context.Context, in NewDocument, data []byte) (extract.Info, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return extract.Info{}, validationf("file name is required")
	}
	if len(data) == 0 {
		return extract.Info{}, validationf("file is empty")
	}
	info, err := extract.Inspect(ctx, data)
	if err != nil {
		return extract.Info{}, validationf("file is not a readable PDF")
	}
	return info, nil
}

// GetDocument returns one of the owner's documents.
func (s *Service) GetDocument(ctx context.Context, ownerID, documentID string) (Document, error) {
	return s.ownedDocument(ctx, ownerID, documentID)
}

// ListDocuments returns the owner's documents, newest first.
func (s *Service) ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrAuthorization
	}
	docs, err := s.Store.ListDocuments(ctx, ownerID, limit, offset)
	return docs, persistence(err)
}

// DocumentDetail returns a document with its fields and signers.
func (s *Service) DocumentDetail(ctx context.Context, ownerID, documentID string) (DocumentDetail, error) {
	doc, err := s.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return DocumentDetail{}, err
	}
	fields, err := s.Store.ListFields(ctx, documentID)
	if err != nil {
		return DocumentDetail{}, persistence(err)
	}
	signers, err := s.Store.ListSigners(ctx, documentID)
	if err != nil {
		return DocumentDetail{}, persistence(err)
	}
	return DocumentDetail{Document: doc, Fields: fields, Signers: signers}, nil
}

// ListAudit returns the document's audit entries in chronological order.
func (s *Service) ListAudit(ctx context.Context, ownerID, documentID string) ([]audit.Entry, error) {
	if _, err := s.ownedDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	entries, err := s.Store.ListAudit(ctx, documentID)
	return entries, persistence(err)
}

// Download returns the original, signed or audit PDF of a document.
func (s *Service) Download(ctx context.Context, ownerID, documentID string, kind DownloadKind) (File, error) {
	doc, err := s.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return File{}, err
	}

	var p, name string
	switch kind {
	case DownloadOriginal, "":
		p, name = doc.OriginalPath, doc.FileName
	case DownloadSigned:
		p, name = doc.SignedPath, doc.Title+" (Signed).pdf"
	case DownloadAudit:
		p, name = doc.AuditPath, doc.Title+" (Audit Trail).pdf"
	default:
		return File{}, validationf("unknown download kind %q", kind)
	}
	if p == "" {
		return File{}, ErrNotFound
	}
	data, err := s.Blobs.Get(ctx, p)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return File{}, ErrNotFound
		}
		return File{}, persistence(err)
	}
	return File{Name: name, Data: data}, nil
}

// DeleteDocument removes a document, its blobs and everything attached to it.
func (s *Service) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	if err := s.deleteBlobs(ctx, doc); err != nil {
		telemetry.Warn("signing.delete_blobs_failed", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
	err = s.Store.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteDocument(ctx, documentID)
	})
	return persistence(err)
}
