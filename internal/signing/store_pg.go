package signing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"esign-backend/internal/audit"
	"esign-backend/internal/shared/storage/db"
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgQueries struct {
	q querier
}

type pgTx struct {
	pgQueries
}

const documentColumns = `id, owner_id, owner_email, owner_name, title, description, original_path, file_name,
size_bytes, page_count, status, signed_path, audit_path, created_at, updated_at, completed_at, expires_at`

const signerColumns = `id, document_id, name, email, access_token, order_index, status, invited_at,
last_reminded_at, viewed_at, signed_at, declined_at, decline_reason, created_at, updated_at`

const fieldColumns = `id, document_id, field_key, signer_id, kind, page, x, y, width, height, required, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// WithTx implements Store.
func (s *PGStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		return fn(&pgTx{pgQueries{q: tx}})
	})
}

func (s *PGStore) reads() pgQueries {
	return pgQueries{q: s.DB}
}

// GetDocument implements Store.
func (s *PGStore) GetDocument(ctx context.Context, id string) (Document, error) {
	return s.reads().getDocument(ctx, id, false)
}

// ListDocuments implements Store.
func (s *PGStore) ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	return s.reads().queryDocuments(ctx, query, ownerID, limit, offset)
}

// ListFields implements Store.
func (s *PGStore) ListFields(ctx context.Context, documentID string) ([]Field, error) {
	return s.reads().listFields(ctx, documentID)
}

// ListSigners implements Store.
func (s *PGStore) ListSigners(ctx context.Context, documentID string) ([]Signer, error) {
	return s.reads().listSigners(ctx, documentID)
}

// ListSignatures implements Store.
func (s *PGStore) ListSignatures(ctx context.Context, documentID string) ([]Signature, error) {
	const query = `
SELECT sg.id, sg.signer_id, sg.field_id, sg.value, sg.captured_at, sg.ip_address, sg.user_agent
FROM signatures sg
JOIN signers s ON s.id = sg.signer_id
WHERE s.document_id = $1
ORDER BY sg.captured_at, sg.id`
	rows, err := s.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Signature, 0)
	for rows.Next() {
		var sig Signature
		if err := rows.Scan(&sig.ID, &sig.SignerID, &sig.FieldID, &sig.Value, &sig.CapturedAt, &sig.IPAddress, &sig.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// ListMarks implements Store.
func (s *PGStore) ListMarks(ctx context.Context, documentID string) ([]Mark, error) {
	const query = `
SELECT f.id, f.field_key, f.kind, f.page, f.x, f.y, f.width, f.height,
       sg.signer_id, s.name, sg.value, sg.captured_at
FROM signatures sg
JOIN signature_fields f ON f.id = sg.field_id
JOIN signers s ON s.id = sg.signer_id
WHERE f.document_id = $1
ORDER BY f.page, sg.captured_at, sg.id`
	rows, err := s.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Mark, 0)
	for rows.Next() {
		var m Mark
		var kind string
		if err := rows.Scan(&m.FieldID, &m.FieldKey, &kind, &m.Page, &m.X, &m.Y, &m.Width, &m.Height,
			&m.SignerID, &m.SignerName, &m.Value, &m.CapturedAt); err != nil {
			return nil, err
		}
		m.Kind = FieldKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListAudit implements Store.
func (s *PGStore) ListAudit(ctx context.Context, documentID string) ([]audit.Entry, error) {
	const query = `
SELECT id, document_id, subject_kind, subject_id, action, occurred_at, ip_address, user_agent, metadata
FROM audit_logs
WHERE document_id = $1
ORDER BY occurred_at, id`
	rows, err := s.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		var kind, action string
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.DocumentID, &kind, &e.Subject.ID, &action, &e.OccurredAt,
			&e.Origin.IPAddress, &e.Origin.UserAgent, &metadata); err != nil {
			return nil, err
		}
		e.Subject.Kind = audit.SubjectKind(kind)
		e.Action = audit.Action(action)
		e.Metadata = map[string]any{}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DueReminders implements Store.
func (s *PGStore) DueReminders(ctx context.Context, cutoff time.Time) ([]ReminderCandidate, error) {
	query := `
SELECT ` + prefixColumns("d", documentColumns) + `, ` + prefixColumns("s", signerColumns) + `
FROM signers s
JOIN documents d ON d.id = s.document_id
WHERE d.status = 'pending'
  AND s.status NOT IN ('signed', 'declined')
  AND s.invited_at IS NOT NULL
  AND s.invited_at <= $1
  AND (s.last_reminded_at IS NULL OR s.last_reminded_at <= $1)
ORDER BY s.invited_at, s.id`
	rows, err := s.DB.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ReminderCandidate, 0)
	for rows.Next() {
		var c ReminderCandidate
		docDest, finishDoc := documentDest(&c.Document)
		signerDest, finishSigner := signerDest(&c.Signer)
		if err := rows.Scan(append(docDest, signerDest...)...); err != nil {
			return nil, err
		}
		finishDoc()
		finishSigner()
		out = append(out, c)
	}
	return out, rows.Err()
}

// PurgeCandidates implements Store.
func (s *PGStore) PurgeCandidates(ctx context.Context, statuses []DocumentStatus, cutoff time.Time) ([]Document, error) {
	if len(statuses) == 0 {
		return []Document{}, nil
	}
	args := []any{cutoff}
	placeholders := make([]string, 0, len(statuses))
	for _, st := range statuses {
		args = append(args, string(st))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE created_at <= $1 AND status IN (` + strings.Join(placeholders, ", ") + `)
ORDER BY created_at, id`
	return s.reads().queryDocuments(ctx, query, args...)
}

// SetSignedPath implements Store.
func (s *PGStore) SetSignedPath(ctx context.Context, documentID, path string) error {
	const query = `
UPDATE documents
SET signed_path = $2, updated_at = now()
WHERE id = $1 AND status = 'completed'`
	res, err := s.DB.ExecContext(ctx, query, documentID, path)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetAuditPath implements Store.
func (s *PGStore) SetAuditPath(ctx context.Context, documentID, path string) error {
	const query = `
UPDATE documents
SET audit_path = $2, updated_at = now()
WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, documentID, path)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (p *pgTx) LockDocument(ctx context.Context, id string) (Document, error) {
	return p.getDocument(ctx, id, true)
}

func (p *pgTx) CreateDocument(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id, owner_id, owner_email, owner_name, title, description, original_path, file_name,
    size_bytes, page_count, status, signed_path, audit_path, created_at, updated_at, completed_at, expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := p.q.ExecContext(ctx, query,
		doc.ID, doc.OwnerID, doc.OwnerEmail, doc.OwnerName, doc.Title, doc.Description, doc.OriginalPath, doc.FileName,
		doc.SizeBytes, doc.PageCount, string(doc.Status), nullString(doc.SignedPath), nullString(doc.AuditPath),
		doc.CreatedAt, doc.UpdatedAt, nullTime(doc.CompletedAt), nullTime(doc.ExpiresAt),
	)
	return err
}

func (p *pgTx) UpdateDocument(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET title = $2, description = $3, status = $4, signed_path = $5, audit_path = $6,
    page_count = $7, updated_at = $8, completed_at = $9, expires_at = $10
WHERE id = $1`
	res, err := p.q.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.Description, string(doc.Status), nullString(doc.SignedPath), nullString(doc.AuditPath),
		doc.PageCount, doc.UpdatedAt, nullTime(doc.CompletedAt), nullTime(doc.ExpiresAt),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (p *pgTx) DeleteDocument(ctx context.Context, id string) error {
	res, err := p.q.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (p *pgTx) ReplaceFields(ctx context.Context, documentID string, fields []Field) error {
	if _, err := p.q.ExecContext(ctx, `DELETE FROM signature_fields WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	const query = `
INSERT INTO signature_fields (` + fieldColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for _, f := range fields {
		if _, err := p.q.ExecContext(ctx, query,
			f.ID, documentID, f.Key, nullString(f.SignerID), string(f.Kind), f.Page,
			f.X, f.Y, f.Width, f.Height, f.Required, f.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (p *pgTx) ListFields(ctx context.Context, documentID string) ([]Field, error) {
	return p.listFields(ctx, documentID)
}

func (p *pgTx) ListSigners(ctx context.Context, documentID string) ([]Signer, error) {
	return p.listSigners(ctx, documentID)
}

func (p *pgTx) InsertSigner(ctx context.Context, s Signer) error {
	const query = `
INSERT INTO signers (` + signerColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := p.q.ExecContext(ctx, query,
		s.ID, s.DocumentID, s.Name, s.Email, s.AccessToken, s.OrderIndex, string(s.Status),
		nullTime(s.InvitedAt), nullTime(s.LastRemindedAt), nullTime(s.ViewedAt), nullTime(s.SignedAt),
		nullTime(s.DeclinedAt), nullString(s.DeclineReason), s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *pgTx) UpdateSigner(ctx context.Context, s Signer) error {
	const query = `
UPDATE signers
SET status = $3, invited_at = $4, last_reminded_at = $5, viewed_at = $6, signed_at = $7,
    declined_at = $8, decline_reason = $9, updated_at = $10
WHERE id = $1 AND document_id = $2`
	res, err := p.q.ExecContext(ctx, query,
		s.ID, s.DocumentID, string(s.Status), nullTime(s.InvitedAt), nullTime(s.LastRemindedAt),
		nullTime(s.ViewedAt), nullTime(s.SignedAt), nullTime(s.DeclinedAt), nullString(s.DeclineReason), s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (p *pgTx) DeleteSigner(ctx context.Context, documentID, signerID string) error {
	res, err := p.q.ExecContext(ctx, `DELETE FROM signers WHERE id = $1 AND document_id = $2`, signerID, documentID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (p *pgTx) DeleteSigners(ctx context.Context, documentID string) error {
	_, err := p.q.ExecContext(ctx, `DELETE FROM signers WHERE document_id = $1`, documentID)
	return err
}

func (p *pgTx) CountSignatures(ctx context.Context, documentID string) (int, error) {
	const query = `
SELECT count(*)
FROM signatures sg
JOIN signature_fields f ON f.id = sg.field_id
WHERE f.document_id = $1`
	var n int
	if err := p.q.QueryRowContext(ctx, query, documentID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pgTx) UpsertSignature(ctx context.Context, sig Signature) error {
	const query = `
INSERT INTO signatures (id, signer_id, field_id, value, captured_at, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (signer_id, field_id) DO UPDATE
SET value = EXCLUDED.value,
    captured_at = EXCLUDED.captured_at,
    ip_address = EXCLUDED.ip_address,
    user_agent = EXCLUDED.user_agent`
	_, err := p.q.ExecContext(ctx, query,
		sig.ID, sig.SignerID, sig.FieldID, sig.Value, sig.CapturedAt, sig.IPAddress, sig.UserAgent,
	)
	return err
}

func (p *pgTx) AppendAudit(ctx context.Context, e audit.Entry) error {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}
	const query = `
INSERT INTO audit_logs (id, document_id, subject_kind, subject_id, action, occurred_at, ip_address, user_agent, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = p.q.ExecContext(ctx, query,
		e.ID, e.DocumentID, string(e.Subject.Kind), e.Subject.ID, string(e.Action), e.OccurredAt,
		e.Origin.IPAddress, e.Origin.UserAgent, payload,
	)
	return err
}

func (p pgQueries) getDocument(ctx context.Context, id string, lock bool) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	doc, err := scanDocument(p.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (p pgQueries) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (p pgQueries) listFields(ctx context.Context, documentID string) ([]Field, error) {
	query := `SELECT ` + fieldColumns + `
FROM signature_fields
WHERE document_id = $1
ORDER BY page, created_at, field_key`
	rows, err := p.q.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Field, 0)
	for rows.Next() {
		var f Field
		var signerID sql.NullString
		var kind string
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Key, &signerID, &kind, &f.Page,
			&f.X, &f.Y, &f.Width, &f.Height, &f.Required, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.SignerID = signerID.String
		f.Kind = FieldKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p pgQueries) listSigners(ctx context.Context, documentID string) ([]Signer, error) {
	query := `SELECT ` + signerColumns + `
FROM signers
WHERE document_id = $1
ORDER BY order_index, created_at, id`
	rows, err := p.q.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Signer, 0)
	for rows.Next() {
		var s Signer
		dest, finish := signerDest(&s)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		finish()
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	dest, finish := documentDest(&doc)
	if err := row.Scan(dest...); err != nil {
		return Document{}, err
	}
	finish()
	return doc, nil
}

// documentDest returns scan targets for documentColumns and a func that copies nullable values into doc.
func documentDest(doc *Document) ([]any, func()) {
	var status string
	var signedPath, auditPath sql.NullString
	var completedAt, expiresAt sql.NullTime
	dest := []any{
		&doc.ID, &doc.OwnerID, &doc.OwnerEmail, &doc.OwnerName, &doc.Title, &doc.Description,
		&doc.OriginalPath, &doc.FileName, &doc.SizeBytes, &doc.PageCount, &status,
		&signedPath, &auditPath, &doc.CreatedAt, &doc.UpdatedAt, &completedAt, &expiresAt,
	}
	return dest, func() {
		doc.Status = DocumentStatus(status)
		doc.SignedPath = signedPath.String
		doc.AuditPath = auditPath.String
		doc.CompletedAt = timeFromNull(completedAt)
		doc.ExpiresAt = timeFromNull(expiresAt)
	}
}

func signerDest(s *Signer) ([]any, func()) {
	var status string
	var invitedAt, remindedAt, viewedAt, signedAt, declinedAt sql.NullTime
	var reason sql.NullString
	dest := []any{
		&s.ID, &s.DocumentID, &s.Name, &s.Email, &s.AccessToken, &s.OrderIndex, &status,
		&invitedAt, &remindedAt, &viewedAt, &signedAt, &declinedAt, &reason, &s.CreatedAt, &s.UpdatedAt,
	}
	return dest, func() {
		s.Status = SignerStatus(status)
		s.InvitedAt = timeFromNull(invitedAt)
		s.LastRemindedAt = timeFromNull(remindedAt)
		s.ViewedAt = timeFromNull(viewedAt)
		s.SignedAt = timeFromNull(signedAt)
		s.DeclinedAt = timeFromNull(declinedAt)
		s.DeclineReason = reason.String
	}
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timeFromNull(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var (
	_ Store = (*PGStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
