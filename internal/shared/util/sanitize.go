package util

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFileNameBytes = 180

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens a client supplied name into one safe key segment.
// Separators become underscores, control characters are dropped, and long
// names are truncated while keeping the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	s = strings.TrimSpace(s)
	if s == "" || s == "_" {
		return "", ErrInvalidFileName
	}
	return truncateKeepExt(s, maxFileNameBytes), nil
}

func truncateKeepExt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	ext := ""
	if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= 10 {
		ext = s[i:]
		s = s[:i]
	}
	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ext
}
