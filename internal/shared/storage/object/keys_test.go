package object

import (
	"strings"
	"testing"
)

func TestNewOriginalKeyNamespacesOwner(t *testing.T) {
	key, err := NewOriginalKey("google:42", "Lease Agreement.pdf")
	if err != nil {
		t.Fatalf("NewOriginalKey: %v", err)
	}
	if !strings.HasPrefix(key, OriginalsPrefix+"/") {
		t.Fatalf("expected originals prefix, got %q", key)
	}
	if !strings.HasSuffix(key, "_Lease Agreement.pdf") {
		t.Fatalf("expected sanitized file name suffix, got %q", key)
	}
	other, _ := NewOriginalKey("google:42", "Lease Agreement.pdf")
	if other == key {
		t.Fatalf("expected unique keys, got %q twice", key)
	}
}

func TestNewOriginalKeyRejectsTraversal(t *testing.T) {
	if _, err := NewOriginalKey("owner", "../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestCleanKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain", key: "docs/signed/a_signed.pdf", want: "docs/signed/a_signed.pdf"},
		{name: "dot segments", key: "docs/./audit/../audit/a.pdf", want: "docs/audit/a.pdf"},
		{name: "backslashes", key: `docs\signed\a.pdf`, want: "docs/signed/a.pdf"},
		{name: "traversal", key: "../secret", wantErr: true},
		{name: "absolute", key: "/etc/passwd", wantErr: true},
		{name: "empty", key: "  ", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CleanKey(%q) expected error, got %q", tt.key, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanKey(%q): %v", tt.key, err)
			}
			if got != tt.want {
				t.Fatalf("CleanKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
