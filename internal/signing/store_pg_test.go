package signing

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"esign-backend/internal/audit"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PGStore{DB: db}, mock
}

func documentRows() *sqlmock.Rows {
	cols := strings.Split(strings.ReplaceAll(documentColumns, "\n", " "), ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return sqlmock.NewRows(cols)
}

func TestPGGetDocumentScansNullables(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnRows(documentRows().AddRow(
			"doc-1", "owner-1", "owner@example.com", "Olive", "Lease", "", "docs/originals/x/lease.pdf", "lease.pdf",
			int64(1024), 2, "pending", nil, nil, created, created, nil, nil,
		))

	doc, err := store.GetDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if doc.Status != StatusPending || doc.SignedPath != "" || doc.CompletedAt != nil || doc.PageCount != 2 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGGetDocumentNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetDocument(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGTxLocksAndCommits(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1 FOR UPDATE")).
		WithArgs("doc-1").
		WillReturnRows(documentRows().AddRow(
			"doc-1", "owner-1", "", "", "Lease", "", "docs/originals/x/lease.pdf", "lease.pdf",
			int64(10), 1, "pending", nil, nil, now, now, nil, nil,
		))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (signer_id, field_id) DO UPDATE")).
		WithArgs("sig-1", "signer-1", "field-1", "Alice", now, "203.0.113.7", "agent").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), "doc-1", "signer", "signer-1", "signed", now, "203.0.113.7", "agent", []byte(`{"signature_count":1}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		if _, err := tx.LockDocument(context.Background(), "doc-1"); err != nil {
			return err
		}
		if err := tx.UpsertSignature(context.Background(), Signature{
			ID: "sig-1", SignerID: "signer-1", FieldID: "field-1", Value: "Alice",
			CapturedAt: now, IPAddress: "203.0.113.7", UserAgent: "agent",
		}); err != nil {
			return err
		}
		return tx.AppendAudit(context.Background(), audit.ForSigner("doc-1", "signer-1", audit.ActionSigned,
			audit.Origin{IPAddress: "203.0.113.7", UserAgent: "agent"}, now, map[string]any{"signature_count": 1}))
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM signers WHERE id = $1 AND document_id = $2")).
		WithArgs("signer-9", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		return tx.DeleteSigner(context.Background(), "doc-1", "signer-9")
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGSetSignedPathRequiresCompleted(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'completed'")).
		WithArgs("doc-1", "docs/signed/lease_signed.pdf").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetSignedPath(context.Background(), "doc-1", "docs/signed/lease_signed.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGListAuditDecodesMetadata(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "document_id", "subject_kind", "subject_id", "action", "occurred_at", "ip_address", "user_agent", "metadata",
		}).AddRow("01HX", "doc-1", "document", "doc-1", "notification_sent", at, "127.0.0.1", "esign-scheduler",
			[]byte(`{"notification_type":"document_completed","success":true}`)))

	entries, err := store.ListAudit(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Subject.Kind != audit.SubjectDocument || e.Action != audit.ActionNotificationSent {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Metadata["success"] != true || e.Metadata["notification_type"] != "document_completed" {
		t.Fatalf("unexpected metadata: %+v", e.Metadata)
	}
}

func TestPGPurgeCandidatesBindsStatuses(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE created_at <= $1 AND status IN ($2, $3, $4)")).
		WithArgs(cutoff, "completed", "declined", "cancelled").
		WillReturnRows(documentRows())

	docs, err := store.PurgeCandidates(context.Background(), PurgeStatuses, cutoff)
	if err != nil {
		t.Fatalf("purge candidates: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPrefixColumns(t *testing.T) {
	got := prefixColumns("s", "id, name,\nemail")
	if got != "s.id, s.name, s.email" {
		t.Fatalf("unexpected prefix: %q", got)
	}
}
