package pdfcompose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"

	"esign-backend/internal/extract"
	"esign-backend/internal/shared/storage/object"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/signing"
)

const (
	markFont     = "Helvetica"
	markFontSize = 12.0
)

// FlattenSignatures overlays every captured mark onto a copy of the original PDF
// and writes it to the document's signed path. Re-running overwrites the output.
func (e *Engine) FlattenSignatures(ctx context.Context, documentID string) (string, error) {
	start := time.Now()
	defer observe(start)

	doc, err := e.completedDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	marks, err := e.Source.ListMarks(ctx, documentID)
	if err != nil {
		return "", err
	}
	if len(marks) == 0 {
		return "", fmt.Errorf("%w: document %s", signing.ErrNoMarks, documentID)
	}

	original, err := e.Blobs.Get(ctx, doc.OriginalPath)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return "", notFound("original %s missing", doc.OriginalPath)
		}
		return "", err
	}
	info, err := extract.Inspect(ctx, original)
	if err != nil {
		return "", fmt.Errorf("inspect original: %w", err)
	}

	out, err := flatten(ctx, documentID, original, info, marks)
	if err != nil {
		return "", err
	}

	path := signing.SignedPath(doc.ID, doc.OriginalPath)
	if err := e.write(ctx, path, out); err != nil {
		return "", err
	}
	if e.Recorder != nil {
		if err := e.Recorder.SetSignedPath(ctx, documentID, path); err != nil {
			return "", fmt.Errorf("record signed path: %w", err)
		}
	}

	telemetry.Info("pdf.flattened", map[string]any{
		"document_id": documentID,
		"path":        path,
		"pages":       info.PageCount,
		"marks":       len(marks),
	})
	return path, nil
}

func flatten(ctx context.Context, documentID string, original []byte, info extract.Info, marks []signing.Mark) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("%w: import pages: %v", errRender, rec)
		}
	}()

	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	byPage := make(map[int][]signing.Mark)
	for _, m := range marks {
		byPage[m.Page] = append(byPage[m.Page], m)
	}

	imp := gofpdi.NewImporter()
	var rs io.ReadSeeker = bytes.NewReader(original)
	for i, box := range info.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageNo := i + 1
		if box.Landscape() {
			pdf.AddPageFormat("L", gofpdf.SizeType{Wd: box.Height, Ht: box.Width})
		} else {
			pdf.AddPageFormat("P", gofpdf.SizeType{Wd: box.Width, Ht: box.Height})
		}
		tpl := imp.ImportPageFromStream(pdf, &rs, pageNo, "/MediaBox")
		imp.UseImportedTemplate(pdf, tpl, 0, 0, box.Width, box.Height)
		if pdf.Err() {
			return nil, fmt.Errorf("%w: page %d: %v", errRender, pageNo, pdf.Error())
		}

		for _, m := range byPage[pageNo] {
			drawMark(pdf, tr, documentID, m)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", errRender, err)
	}
	return buf.Bytes(), nil
}

func drawMark(pdf *gofpdf.Fpdf, tr func(string) string, documentID string, m signing.Mark) {
	value := strings.TrimSpace(m.Value)
	if value == "" {
		return
	}
	if strings.HasPrefix(value, "data:image") {
		if err := drawImage(pdf, m, value); err != nil {
			telemetry.Warn("pdf.mark_skipped", map[string]any{
				"document_id": documentID,
				"field_id":    m.FieldKey,
				"error":       err.Error(),
			})
		}
		return
	}

	text := value
	if m.Kind == signing.FieldCheckbox {
		text = checkboxText(value)
		if text == "" {
			return
		}
	}
	pdf.SetFont(markFont, "", markFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(m.X, m.Y+m.Height/2)
	pdf.CellFormat(m.Width, 0, tr(text), "", 0, "L", false, 0, "")
}

func drawImage(pdf *gofpdf.Fpdf, m signing.Mark, value string) error {
	raw, err := decodeDataURI(value)
	if err != nil {
		return err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	name := "mark-" + m.FieldID + "-" + m.SignerID
	opts := gofpdf.ImageOptions{ImageType: strings.ToUpper(format)}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw))
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("register image: %w", err)
	}
	pdf.ImageOptions(name, m.X, m.Y, m.Width, m.Height, false, opts, 0, "")
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("place image: %w", err)
	}
	return nil
}

func decodeDataURI(value string) ([]byte, error) {
	comma := strings.IndexByte(value, ',')
	if comma < 0 {
		return nil, errors.New("malformed data uri")
	}
	header, payload := value[:comma], value[comma+1:]
	if !strings.Contains(header, ";base64") {
		return nil, errors.New("data uri is not base64")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}

func checkboxText(value string) string {
	switch strings.ToLower(value) {
	case "true", "on", "yes", "1", "checked", "x":
		return "X"
	default:
		return ""
	}
}
