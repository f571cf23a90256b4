package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned for payloads the PDF reader cannot open.
var ErrNotPDF = errors.New("not a readable pdf")

// US Letter in points, used when a page carries no usable MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// PageBox is a page size in PDF points.
type PageBox struct {
	Width  float64
	Height float64
}

// Landscape reports whether the page is wider than tall.
func (b PageBox) Landscape() bool {
	return b.Width > b.Height
}

// Info describes a PDF's page layout.
type Info struct {
	PageCount int
	Pages     []PageBox
}

// Inspect opens a PDF and reads the size of every page.
// MediaBox is inherited through the page tree when a page does not set it.
func Inspect(ctx context.Context, data []byte) (info Info, err error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return Info{}, ErrNotPDF
	}
	defer func() {
		if rec := recover(); rec != nil {
			info = Info{}
			err = fmt.Errorf("%w: %v", ErrNotPDF, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	n := reader.NumPage()
	if n < 1 {
		return Info{}, fmt.Errorf("%w: no pages", ErrNotPDF)
	}

	info.PageCount = n
	info.Pages = make([]PageBox, 0, n)
	for i := 1; i <= n; i++ {
		info.Pages = append(info.Pages, pageBox(reader.Page(i)))
	}
	return info, nil
}

// Text returns the plain text of a PDF.
func Text(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrNotPDF, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func pageBox(page pdf.Page) PageBox {
	box := inherited(page.V, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		return PageBox{Width: defaultPageWidth, Height: defaultPageHeight}
	}
	llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
	urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
	w, h := abs(urx-llx), abs(ury-lly)
	if w == 0 || h == 0 {
		return PageBox{Width: defaultPageWidth, Height: defaultPageHeight}
	}
	if rot := int(inherited(page.V, "Rotate").Int64()); rot%180 != 0 {
		w, h = h, w
	}
	return PageBox{Width: w, Height: h}
}

func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
