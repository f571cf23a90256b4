package pdfcompose

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esign-backend/internal/audit"
	"esign-backend/internal/extract"
	"esign-backend/internal/shared/storage/object/local"
	"esign-backend/internal/shared/util"
	"esign-backend/internal/signing"
)

type fakeSource struct {
	doc      signing.Document
	marks    []signing.Mark
	signers  []signing.Signer
	entries  []audit.Entry
	recorded []string
}

func (f *fakeSource) GetDocument(ctx context.Context, id string) (signing.Document, error) {
	if id != f.doc.ID {
		return signing.Document{}, signing.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeSource) ListMarks(ctx context.Context, documentID string) ([]signing.Mark, error) {
	return f.marks, nil
}

func (f *fakeSource) ListSigners(ctx context.Context, documentID string) ([]signing.Signer, error) {
	return f.signers, nil
}

func (f *fakeSource) ListAudit(ctx context.Context, documentID string) ([]audit.Entry, error) {
	return f.entries, nil
}

func (f *fakeSource) SetSignedPath(ctx context.Context, documentID, path string) error {
	f.recorded = append(f.recorded, path)
	return nil
}

func originalPDF(t *testing.T) []byte {
	t.Helper()
	doc := gofpdf.New("P", "pt", "Letter", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.Text(72, 72, "Lease agreement")
	doc.AddPageFormat("L", gofpdf.SizeType{Wd: 612, Ht: 792})
	doc.Text(72, 72, "Signature page")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		img.Set(x, 2, color.RGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func setup(t *testing.T) (*Engine, *fakeSource, *local.Store) {
	t.Helper()
	ctx := context.Background()
	blobs := local.New(t.TempDir(), "")
	require.NoError(t, blobs.Put(ctx, "docs/originals/owner-1/contract.pdf", originalPDF(t)))

	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	completed := created.Add(48 * time.Hour)
	signed := completed.Add(-time.Hour)
	src := &fakeSource{
		doc: signing.Document{
			ID:           "doc-1",
			OwnerID:      "owner-1",
			OwnerName:    "Olive Owner",
			OwnerEmail:   "olive@example.com",
			Title:        "Lease",
			OriginalPath: "docs/originals/owner-1/contract.pdf",
			PageCount:    2,
			Status:       signing.StatusCompleted,
			CreatedAt:    created,
			CompletedAt:  &completed,
		},
		signers: []signing.Signer{
			{ID: "s-1", Name: "John Doe", Email: "john@example.com", Status: signing.SignerSigned, SignedAt: &signed},
		},
	}
	src.marks = []signing.Mark{
		{FieldID: "f-1", FieldKey: "sig", Kind: signing.FieldText, Page: 1, X: 100, Y: 600, Width: 150, Height: 30, SignerID: "s-1", Value: "John Doe"},
		{FieldID: "f-2", FieldKey: "img", Kind: signing.FieldSignature, Page: 2, X: 100, Y: 300, Width: 160, Height: 40, SignerID: "s-1", Value: pngDataURI(t)},
		{FieldID: "f-3", FieldKey: "bad", Kind: signing.FieldSignature, Page: 2, X: 300, Y: 300, Width: 160, Height: 40, SignerID: "s-1", Value: "data:image/png;base64,AAAA"},
		{FieldID: "f-4", FieldKey: "agree", Kind: signing.FieldCheckbox, Page: 1, X: 80, Y: 650, Width: 12, Height: 12, SignerID: "s-1", Value: "true"},
	}
	return &Engine{Blobs: blobs, Source: src, Recorder: src}, src, blobs
}

func TestFlattenSignaturesWritesSignedCopy(t *testing.T) {
	ctx := context.Background()
	engine, src, blobs := setup(t)

	path, err := engine.FlattenSignatures(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "docs/signed/doc-1/contract_signed.pdf", path)
	assert.Equal(t, []string{path}, src.recorded)

	out, err := blobs.Get(ctx, path)
	require.NoError(t, err)
	info, err := extract.Inspect(ctx, out)
	require.NoError(t, err)
	require.Equal(t, 2, info.PageCount)
	assert.False(t, info.Pages[0].Landscape())
	assert.True(t, info.Pages[1].Landscape())

	// Re-running overwrites the same output.
	again, err := engine.FlattenSignatures(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestFlattenSignaturesRequiresMarks(t *testing.T) {
	engine, src, _ := setup(t)
	src.marks = nil

	_, err := engine.FlattenSignatures(context.Background(), "doc-1")
	assert.ErrorIs(t, err, signing.ErrNoMarks)
	assert.ErrorIs(t, err, signing.ErrNotFound)
}

func TestFlattenSignaturesMissingOriginal(t *testing.T) {
	engine, src, _ := setup(t)
	src.doc.OriginalPath = "docs/originals/owner-1/gone.pdf"

	_, err := engine.FlattenSignatures(context.Background(), "doc-1")
	assert.ErrorIs(t, err, signing.ErrNotFound)
}

func TestComposeRequiresCompletedDocument(t *testing.T) {
	engine, src, _ := setup(t)
	src.doc.Status = signing.StatusPending

	_, err := engine.FlattenSignatures(context.Background(), "doc-1")
	assert.ErrorIs(t, err, signing.ErrInvalidState)
	_, err = engine.GenerateAuditTrailPdf(context.Background(), "doc-1")
	assert.ErrorIs(t, err, signing.ErrInvalidState)
}

func TestGenerateAuditTrailPdf(t *testing.T) {
	ctx := context.Background()
	engine, src, blobs := setup(t)
	at := src.doc.CreatedAt.Add(time.Hour)
	src.entries = []audit.Entry{
		audit.ForSigner("doc-1", "s-1", audit.ActionSigned, audit.Origin{
			IPAddress: "203.0.113.9",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
		}, at.Add(time.Minute), nil),
		audit.ForSigner("doc-1", "s-1", audit.ActionInvited, audit.Origin{IPAddress: "198.51.100.1"}, at, nil),
		audit.ForDocument("doc-1", audit.ActionNotificationSent, audit.SystemOrigin, at.Add(2*time.Minute), nil),
	}

	path, err := engine.GenerateAuditTrailPdf(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "docs/audit/doc-1/contract_audit.pdf", path)
	assert.Empty(t, src.recorded)

	out, err := blobs.Get(ctx, path)
	require.NoError(t, err)
	text, err := extract.Text(ctx, out)
	require.NoError(t, err)
	assert.Contains(t, text, "Audit Trail: Lease")
	assert.Contains(t, text, "Olive Owner (olive@example.com)")
	assert.Contains(t, text, "Mozilla/5.0 (Macintosh; Int...")
	assert.Contains(t, text, "Notification sent")
	assert.Less(t, strings.Index(text, "Invited"), strings.Index(text, "Notification sent"))
}

func TestGenerateAuditTrailPdfWithoutEvents(t *testing.T) {
	ctx := context.Background()
	engine, src, blobs := setup(t)
	src.doc.CompletedAt = nil
	src.doc.OwnerName = ""
	src.doc.OwnerEmail = ""

	path, err := engine.GenerateAuditTrailPdf(ctx, "doc-1")
	require.NoError(t, err)
	out, err := blobs.Get(ctx, path)
	require.NoError(t, err)
	text, err := extract.Text(ctx, out)
	require.NoError(t, err)
	assert.Contains(t, text, "No audit events recorded")
	assert.Contains(t, text, "N/A")
}

func TestCreatedByAndFormatting(t *testing.T) {
	assert.Equal(t, "Olive (o@example.com)", createdBy(signing.Document{OwnerName: "Olive", OwnerEmail: "o@example.com"}))
	assert.Equal(t, "o@example.com", createdBy(signing.Document{OwnerEmail: "o@example.com"}))
	assert.Equal(t, "N/A", createdBy(signing.Document{}))

	at := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	assert.Equal(t, "March 5, 2024, 2:07 pm UTC", formatTime(&at, detailTimeLayout))
	assert.Equal(t, "Mar 5, 2024, 2:07 pm UTC", formatTime(&at, rowTimeLayout))
	assert.Equal(t, "N/A", formatTime(nil, rowTimeLayout))
	assert.Equal(t, "Signed", capitalize("signed"))
}

func TestDecodeDataURI(t *testing.T) {
	raw, err := decodeDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))

	_, err = decodeDataURI("data:image/png,hello")
	assert.Error(t, err)
	_, err = decodeDataURI("no-comma")
	assert.Error(t, err)
	assert.Equal(t, "X", checkboxText("on"))
	assert.Equal(t, "", checkboxText("false"))
}

func TestFingerprintsHashStoredFiles(t *testing.T) {
	ctx := context.Background()
	engine, src, blobs := setup(t)

	original, err := blobs.Get(ctx, src.doc.OriginalPath)
	require.NoError(t, err)

	fp := engine.fingerprints(ctx, src.doc)
	assert.Equal(t, util.Fingerprint(original), fp.Original)
	assert.Empty(t, fp.Signed)

	src.doc.SignedPath = "docs/signed/missing_signed.pdf"
	fp = engine.fingerprints(ctx, src.doc)
	assert.Empty(t, fp.Signed)
	assert.Equal(t, "N/A", orNA(fp.Signed))
}
