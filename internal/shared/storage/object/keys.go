package object

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"esign-backend/internal/shared/util"
)

// OriginalsPrefix holds uploaded source PDFs.
const OriginalsPrefix = "docs/originals"

// NewOriginalKey builds a unique key for an owner's uploaded file.
func NewOriginalKey(ownerID, fileName string) (string, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	finalName := fmt.Sprintf("%s_%s", randomID(), sanitized)
	return path.Join(OriginalsPrefix, util.HashUserKey(ownerID), finalName), nil
}

// CleanKey normalizes a key and rejects traversal or absolute paths.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("invalid storage key")
	}
	clean := path.Clean(strings.ReplaceAll(trimmed, "\\", "/"))
	if strings.HasPrefix(clean, "..") || strings.HasPrefix(clean, "/") || clean == "." {
		return "", fmt.Errorf("invalid storage key")
	}
	return clean, nil
}

// DetectContentType sniffs the first bytes, preferring the PDF type for .pdf keys.
func DetectContentType(key string, data []byte) string {
	if strings.EqualFold(path.Ext(key), ".pdf") {
		return "application/pdf"
	}
	n := len(data)
	if n > 512 {
		n = 512
	}
	return http.DetectContentType(data[:n])
}

func randomID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
