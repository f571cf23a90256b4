package pdfcompose

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"esign-backend/internal/audit"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/shared/util"
	"esign-backend/internal/signing"
)

const (
	detailTimeLayout = "January 2, 2006, 3:04 pm MST"
	rowTimeLayout    = "Jan 2, 2006, 3:04 pm MST"
	pageMargin       = 40.0
	rowHeight        = 16.0
)

type column struct {
	title string
	width float64
}

var (
	signerColumns = []column{
		{"Name", 150}, {"Email", 170}, {"Status", 80}, {"Signed On", 132},
	}
	eventColumns = []column{
		{"Date & Time", 110}, {"Signer", 100}, {"Action", 90}, {"IP Address", 90}, {"User Agent", 142},
	}
)

// GenerateAuditTrailPdf renders the document's details, signers and audit
// events into a standalone PDF and writes it to the document's audit path.
// It does not mutate the document record.
func (e *Engine) GenerateAuditTrailPdf(ctx context.Context, documentID string) (string, error) {
	start := time.Now()
	defer observe(start)

	doc, err := e.completedDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	signers, err := e.Source.ListSigners(ctx, documentID)
	if err != nil {
		return "", err
	}
	entries, err := e.Source.ListAudit(ctx, documentID)
	if err != nil {
		return "", err
	}

	prints := e.fingerprints(ctx, doc)
	out, err := renderAuditTrail(doc, signers, entries, prints)
	if err != nil {
		return "", err
	}
	path := signing.AuditPath(doc.ID, doc.OriginalPath)
	if err := e.write(ctx, path, out); err != nil {
		return "", err
	}

	telemetry.Info("pdf.audit_trail", map[string]any{
		"document_id": documentID,
		"path":        path,
		"events":      len(entries),
		"signers":     len(signers),
	})
	return path, nil
}

// fileFingerprints holds the SHA-256 of the original and signed PDFs.
type fileFingerprints struct {
	Original string
	Signed   string
}

// fingerprints hashes the stored PDFs. A blob that cannot be read prints as N/A.
func (e *Engine) fingerprints(ctx context.Context, doc signing.Document) fileFingerprints {
	var fp fileFingerprints
	for _, item := range []struct {
		path string
		dst  *string
	}{
		{doc.OriginalPath, &fp.Original},
		{doc.SignedPath, &fp.Signed},
	} {
		if item.path == "" {
			continue
		}
		data, err := e.Blobs.Get(ctx, item.path)
		if err != nil {
			telemetry.Warn("pdf.fingerprint_failed", map[string]any{
				"document_id": doc.ID,
				"path":        item.path,
				"error":       err.Error(),
			})
			continue
		}
		*item.dst = util.Fingerprint(data)
	}
	return fp
}

func renderAuditTrail(doc signing.Document, signers []signing.Signer, entries []audit.Entry, prints fileFingerprints) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 24, tr("Audit Trail: "+doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	section(pdf, "Document Details")
	pdf.SetFont("Helvetica", "", 10)
	details := [][2]string{
		{"Document ID", doc.ID},
		{"Title", doc.Title},
		{"Created By", createdBy(doc)},
		{"Created On", formatTime(&doc.CreatedAt, detailTimeLayout)},
		{"Completed On", formatTime(doc.CompletedAt, detailTimeLayout)},
		{"Original SHA-256", orNA(prints.Original)},
		{"Signed SHA-256", orNA(prints.Signed)},
	}
	for _, d := range details {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(110, rowHeight, d[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, rowHeight, tr(d[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(12)

	section(pdf, "Signers")
	header(pdf, signerColumns)
	pdf.SetFont("Helvetica", "", 9)
	if len(signers) == 0 {
		pdf.CellFormat(tableWidth(signerColumns), rowHeight, "No signers", "1", 1, "C", false, 0, "")
	}
	for _, s := range signers {
		row(pdf, tr, signerColumns, []string{
			s.Name,
			s.Email,
			capitalize(string(s.Status)),
			formatTime(s.SignedAt, rowTimeLayout),
		})
	}
	pdf.Ln(12)

	directory := audit.SignerDirectory{}
	for _, s := range signers {
		directory[s.ID] = s.Name
	}
	section(pdf, "Audit Events")
	header(pdf, eventColumns)
	pdf.SetFont("Helvetica", "", 8)
	trail := audit.BuildTrail(entries, directory)
	if len(trail) == 0 {
		pdf.CellFormat(tableWidth(eventColumns), rowHeight, "No audit events recorded", "1", 1, "C", false, 0, "")
	}
	for _, r := range trail {
		at := r.OccurredAt
		row(pdf, tr, eventColumns, []string{
			formatTime(&at, rowTimeLayout),
			r.Subject,
			r.Action,
			r.IPAddress,
			r.UserAgent,
		})
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", errRender, err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 18, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func header(pdf *gofpdf.Fpdf, cols []column) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	for _, c := range cols {
		pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func row(pdf *gofpdf.Fpdf, tr func(string) string, cols []column, values []string) {
	for i, c := range cols {
		v := "N/A"
		if i < len(values) && strings.TrimSpace(values[i]) != "" {
			v = values[i]
		}
		pdf.CellFormat(c.width, rowHeight, tr(v), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func tableWidth(cols []column) float64 {
	var w float64
	for _, c := range cols {
		w += c.width
	}
	return w
}

func createdBy(doc signing.Document) string {
	name := strings.TrimSpace(doc.OwnerName)
	email := strings.TrimSpace(doc.OwnerEmail)
	switch {
	case name != "" && email != "":
		return name + " (" + email + ")"
	case email != "":
		return email
	case name != "":
		return name
	default:
		return "N/A"
	}
}

func formatTime(t *time.Time, layout string) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(layout)
}

func capitalize(s string) string {
	if s == "" {
		return "N/A"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
