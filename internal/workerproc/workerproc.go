package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"esign-backend/internal/queue"
	"esign-backend/internal/signing"
)

// Finalizer completes the post-signing work for a document.
type Finalizer interface {
	FinalizeCompletion(ctx context.Context, documentID string) (signing.FinalizeResult, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingDocumentID indicates a finalize message without a document id.
type ErrMissingDocumentID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingDocumentID) Error() string { return "missing document id" }

// ErrUnknownKind indicates a message this worker does not process.
type ErrUnknownKind struct {
	Kind queue.Kind
}

func (e ErrUnknownKind) Error() string { return "unsupported message kind " + string(e.Kind) }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	DocumentID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "finalize document"
	}
	return "finalize document: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Kind == "" {
		msg.Kind = queue.KindFinalizeDocument
	}
	if msg.Kind != queue.KindFinalizeDocument {
		return msg, meta, ErrUnknownKind{Kind: msg.Kind}
	}
	if strings.TrimSpace(msg.DocumentID) == "" {
		return msg, meta, ErrMissingDocumentID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, f Finalizer, body string) error {
	if f == nil {
		return errors.New("signing service not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.DocumentID) == "" {
		return ErrMissingDocumentID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	if _, err := f.FinalizeCompletion(ctx, msg.DocumentID); err != nil {
		return ErrProcess{DocumentID: msg.DocumentID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// Unrecoverable reports whether retrying the message can never succeed.
func Unrecoverable(err error) bool {
	if err == nil {
		return false
	}
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingDocumentID
		kind    ErrUnknownKind
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &missing), errors.As(err, &kind):
		return true
	}
	return errors.Is(err, signing.ErrNotFound) || errors.Is(err, signing.ErrInvalidState)
}
