package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names the job a message asks a consumer to perform.
type Kind string

const (
	KindFinalizeDocument Kind = "finalize_document"
	KindNotification     Kind = "notification"
)

// CurrentVersion is stamped on every message produced by this service.
const CurrentVersion = 1

// Attachment references a stored file a mail consumer should attach.
type Attachment struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Notification is the payload of a notification message.
type Notification struct {
	Kind        string         `json:"kind"`
	To          []string       `json:"to"`
	Context     map[string]any `json:"context,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Kind         Kind          `json:"kind"`
	DocumentID   string        `json:"documentId,omitempty"`
	RequestID    string        `json:"requestId,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	EnqueuedAt   string        `json:"enqueuedAt"`
	Version      int           `json:"version"`
}

// Validate checks that the message carries what its kind requires.
func (m Message) Validate() error {
	switch m.Kind {
	case KindFinalizeDocument:
		if strings.TrimSpace(m.DocumentID) == "" {
			return fmt.Errorf("finalize message missing documentId")
		}
	case KindNotification:
		if m.Notification == nil || len(m.Notification.To) == 0 {
			return fmt.Errorf("notification message missing recipients")
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
