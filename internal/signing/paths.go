package signing

import (
	"path"
	"strings"
)

const (
	SignedPrefix = "docs/signed"
	AuditPrefix  = "docs/audit"
)

// SignedPath derives the flattened output path. The document id keeps
// documents that share a file name apart.
func SignedPath(documentID, originalPath string) string {
	return derivedPath(SignedPrefix, documentID, stem(originalPath)+"_signed.pdf")
}

// AuditPath derives the audit trail output path.
func AuditPath(documentID, originalPath string) string {
	return derivedPath(AuditPrefix, documentID, stem(originalPath)+"_audit.pdf")
}

func derivedPath(prefix, documentID, name string) string {
	id := strings.Trim(strings.ReplaceAll(strings.TrimSpace(documentID), "\\", "/"), "/")
	if id == "" || strings.Contains(id, "/") || id == "." || id == ".." {
		return prefix + "/" + name
	}
	return prefix + "/" + id + "/" + name
}

func stem(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if base == "." || base == "/" {
		return "document"
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
