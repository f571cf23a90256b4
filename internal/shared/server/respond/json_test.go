package respond

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestPDFSetsAttachmentHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)

	PDF(c, "Lease \"final\"\r\n.pdf", []byte("%PDF-1.4"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="Lease 'final'.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if resp.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestPDFDefaultsFileName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)

	PDF(c, "  ", nil)

	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="document.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
}
