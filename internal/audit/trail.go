package audit

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	clientLimit     = 30
	clientTruncated = 27
)

// SubjectResolver turns a subject into a display label.
type SubjectResolver interface {
	SubjectLabel(subject Subject) (string, bool)
}

// SignerDirectory resolves signer subjects from a fixed id to name map.
type SignerDirectory map[string]string

// SubjectLabel implements SubjectResolver.
func (d SignerDirectory) SubjectLabel(subject Subject) (string, bool) {
	switch subject.Kind {
	case SubjectDocument:
		return "Document", true
	case SubjectSigner:
		name, ok := d[subject.ID]
		return name, ok
	default:
		return "", false
	}
}

// Row is one rendered line of an audit trail.
type Row struct {
	OccurredAt time.Time
	Subject    string
	Action     string
	IPAddress  string
	UserAgent  string
}

// BuildTrail orders entries chronologically and resolves their subjects.
// Unknown subjects are labelled "N/A".
func BuildTrail(entries []Entry, resolver SubjectResolver) []Row {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	SortChronological(sorted)

	rows := make([]Row, 0, len(sorted))
	for _, e := range sorted {
		label := "N/A"
		if resolver != nil {
			if name, ok := resolver.SubjectLabel(e.Subject); ok && strings.TrimSpace(name) != "" {
				label = name
			}
		}
		rows = append(rows, Row{
			OccurredAt: e.OccurredAt,
			Subject:    label,
			Action:     ActionLabel(e.Action),
			IPAddress:  orNA(e.Origin.IPAddress),
			UserAgent:  orNA(TruncateClient(e.Origin.UserAgent)),
		})
	}
	return rows
}

// SortChronological sorts by occurrence time, falling back to the ULID.
func SortChronological(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.Before(entries[j].OccurredAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

// TruncateClient caps a user agent at 30 characters, keeping 27 plus an ellipsis.
func TruncateClient(ua string) string {
	if utf8.RuneCountInString(ua) <= clientLimit {
		return ua
	}
	runes := []rune(ua)
	return string(runes[:clientTruncated]) + "..."
}

// ActionLabel renders an action for humans, e.g. "reminder_sent" becomes "Reminder sent".
func ActionLabel(a Action) string {
	s := strings.ReplaceAll(string(a), "_", " ")
	if s == "" {
		return "N/A"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
