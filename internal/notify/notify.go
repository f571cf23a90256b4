package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Kind selects the template a delivery backend renders.
type Kind string

const (
	KindSignerInvitation  Kind = "signer-invitation"
	KindSignerReminder    Kind = "signer-reminder"
	KindSigningCompleted  Kind = "signing-completed"
	KindSigningRejected   Kind = "signing-rejected"
	KindDocumentCompleted Kind = "document-completed-with-attachments"
)

// Attachment references a stored file to attach to a message.
type Attachment struct {
	Name string
	Path string
	URL  string
}

// Message is a single outbound notice.
type Message struct {
	Kind        Kind
	To          []string
	Context     map[string]any
	Attachments []Attachment
}

// Result reports the outcome of a send. Failures are values, not errors.
type Result struct {
	Success bool
	Message string
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) Result
}

// Ok builds a successful result.
func Ok() Result {
	return Result{Success: true, Message: "sent"}
}

// Failed builds a failed result from an error.
func Failed(err error) Result {
	if err == nil {
		return Result{Message: "failed"}
	}
	return Result{Message: err.Error()}
}

// Dedupe drops empty and repeated addresses, comparing case-insensitively.
// The first spelling seen is kept.
func Dedupe(addrs ...string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// SigningLink builds the URL a signer follows to open a document.
func SigningLink(baseURL, documentID, signerID, credential string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return fmt.Sprintf("%s/sign/%s/%s?token=%s",
		base,
		url.PathEscape(documentID),
		url.PathEscape(signerID),
		url.QueryEscape(credential),
	)
}

func validate(msg Message) error {
	if strings.TrimSpace(string(msg.Kind)) == "" {
		return fmt.Errorf("notification kind is required")
	}
	if len(Dedupe(msg.To...)) == 0 {
		return fmt.Errorf("notification has no recipients")
	}
	return nil
}
