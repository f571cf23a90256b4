package signing

import (
	"context"
	"sort"
	"sync"
	"time"

	"esign-backend/internal/audit"
)

type memoryState struct {
	docs       map[string]Document
	fields     map[string][]Field  // documentId -> fields
	signers    map[string][]Signer // documentId -> signers in insertion order
	signatures map[string]Signature
	audit      map[string][]audit.Entry
}

func newMemoryState() *memoryState {
	return &memoryState{
		docs:       make(map[string]Document),
		fields:     make(map[string][]Field),
		signers:    make(map[string][]Signer),
		signatures: make(map[string]Signature),
		audit:      make(map[string][]audit.Entry),
	}
}

func (s *memoryState) clone() *memoryState {
	out := newMemoryState()
	for k, v := range s.docs {
		out.docs[k] = v
	}
	for k, v := range s.fields {
		out.fields[k] = append([]Field(nil), v...)
	}
	for k, v := range s.signers {
		out.signers[k] = append([]Signer(nil), v...)
	}
	for k, v := range s.signatures {
		out.signatures[k] = v
	}
	for k, v := range s.audit {
		out.audit[k] = append([]audit.Entry(nil), v...)
	}
	return out
}

func signatureKey(signerID, fieldID string) string {
	return signerID + "|" + fieldID
}

// MemoryStore is an in-memory Store. A transaction works on a copy of the
// state which replaces the live state only when the callback succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// WithTx implements Store.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *MemoryStore) read(ctx context.Context) (*memoryState, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	return m.state, m.mu.Unlock, nil
}

// GetDocument implements Store.
func (m *MemoryStore) GetDocument(ctx context.Context, id string) (Document, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return Document{}, err
	}
	defer unlock()
	doc, ok := st.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListDocuments implements Store, newest first.
func (m *MemoryStore) ListDocuments(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	docs := make([]Document, 0)
	for _, d := range st.docs {
		if d.OwnerID == ownerID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// ListFields implements Store.
func (m *MemoryStore) ListFields(ctx context.Context, documentID string) ([]Field, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return st.listFields(documentID), nil
}

// ListSigners implements Store.
func (m *MemoryStore) ListSigners(ctx context.Context, documentID string) ([]Signer, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return st.listSigners(documentID), nil
}

// ListSignatures implements Store.
func (m *MemoryStore) ListSignatures(ctx context.Context, documentID string) ([]Signature, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return st.listSignatures(documentID), nil
}

// ListMarks implements Store.
func (m *MemoryStore) ListMarks(ctx context.Context, documentID string) ([]Mark, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fields := make(map[string]Field)
	for _, f := range st.fields[documentID] {
		fields[f.ID] = f
	}
	names := make(map[string]string)
	for _, s := range st.signers[documentID] {
		names[s.ID] = s.Name
	}

	marks := make([]Mark, 0)
	for _, sig := range st.listSignatures(documentID) {
		f, ok := fields[sig.FieldID]
		if !ok {
			continue
		}
		marks = append(marks, Mark{
			FieldID:    f.ID,
			FieldKey:   f.Key,
			Kind:       f.Kind,
			Page:       f.Page,
			X:          f.X,
			Y:          f.Y,
			Width:      f.Width,
			Height:     f.Height,
			SignerID:   sig.SignerID,
			SignerName: names[sig.SignerID],
			Value:      sig.Value,
			CapturedAt: sig.CapturedAt,
		})
	}
	sort.SliceStable(marks, func(i, j int) bool {
		if marks[i].Page != marks[j].Page {
			return marks[i].Page < marks[j].Page
		}
		return marks[i].CapturedAt.Before(marks[j].CapturedAt)
	})
	return marks, nil
}

// ListAudit implements Store.
func (m *MemoryStore) ListAudit(ctx context.Context, documentID string) ([]audit.Entry, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	entries := append([]audit.Entry(nil), st.audit[documentID]...)
	audit.SortChronological(entries)
	return entries, nil
}

// DueReminders implements Store.
func (m *MemoryStore) DueReminders(ctx context.Context, cutoff time.Time) ([]ReminderCandidate, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]ReminderCandidate, 0)
	for docID, doc := range st.docs {
		if doc.Status != StatusPending {
			continue
		}
		for _, s := range st.listSigners(docID) {
			if s.Status.Finished() || s.InvitedAt == nil || s.InvitedAt.After(cutoff) {
				continue
			}
			if s.LastRemindedAt != nil && s.LastRemindedAt.After(cutoff) {
				continue
			}
			out = append(out, ReminderCandidate{Document: doc, Signer: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Signer.InvitedAt.Before(*out[j].Signer.InvitedAt)
	})
	return out, nil
}

// PurgeCandidates implements Store.
func (m *MemoryStore) PurgeCandidates(ctx context.Context, statuses []DocumentStatus, cutoff time.Time) ([]Document, error) {
	st, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	wanted := make(map[DocumentStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	out := make([]Document, 0)
	for _, d := range st.docs {
		if wanted[d.Status] && !d.CreatedAt.After(cutoff) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SetSignedPath implements Store.
func (m *MemoryStore) SetSignedPath(ctx context.Context, documentID, path string) error {
	return m.WithTx(ctx, func(tx Tx) error {
		doc, err := tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != StatusCompleted {
			return invalidStatef("document %s is %s", documentID, doc.Status)
		}
		doc.SignedPath = path
		return tx.UpdateDocument(ctx, doc)
	})
}

// SetAuditPath implements Store.
func (m *MemoryStore) SetAuditPath(ctx context.Context, documentID, path string) error {
	return m.WithTx(ctx, func(tx Tx) error {
		doc, err := tx.LockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		doc.AuditPath = path
		return tx.UpdateDocument(ctx, doc)
	})
}

func (s *memoryState) listFields(documentID string) []Field {
	return append([]Field{}, s.fields[documentID]...)
}

func (s *memoryState) listSigners(documentID string) []Signer {
	signers := append([]Signer{}, s.signers[documentID]...)
	sort.SliceStable(signers, func(i, j int) bool {
		if signers[i].OrderIndex != signers[j].OrderIndex {
			return signers[i].OrderIndex < signers[j].OrderIndex
		}
		return signers[i].CreatedAt.Before(signers[j].CreatedAt)
	})
	return signers
}

func (s *memoryState) listSignatures(documentID string) []Signature {
	ids := make(map[string]bool)
	for _, sg := range s.signers[documentID] {
		ids[sg.ID] = true
	}
	out := make([]Signature, 0)
	for _, sig := range s.signatures {
		if ids[sig.SignerID] {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].CapturedAt.Before(out[j].CapturedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) LockDocument(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	doc, ok := t.state.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (t *memoryTx) CreateDocument(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, existing := range t.state.docs {
		if existing.OriginalPath == doc.OriginalPath {
			return validationf("original %s already belongs to document %s", doc.OriginalPath, existing.ID)
		}
	}
	t.state.docs[doc.ID] = doc
	return nil
}

func (t *memoryTx) UpdateDocument(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.state.docs[doc.ID]; !ok {
		return ErrNotFound
	}
	t.state.docs[doc.ID] = doc
	return nil
}

func (t *memoryTx) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.state.docs[id]; !ok {
		return ErrNotFound
	}
	for _, s := range t.state.signers[id] {
		t.deleteSignaturesBySigner(s.ID)
	}
	delete(t.state.docs, id)
	delete(t.state.fields, id)
	delete(t.state.signers, id)
	delete(t.state.audit, id)
	return nil
}

func (t *memoryTx) ListFields(ctx context.Context, documentID string) ([]Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.state.listFields(documentID), nil
}

func (t *memoryTx) ReplaceFields(ctx context.Context, documentID string, fields []Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	old := make(map[string]bool)
	for _, f := range t.state.fields[documentID] {
		old[f.ID] = true
	}
	for k, sig := range t.state.signatures {
		if old[sig.FieldID] {
			delete(t.state.signatures, k)
		}
	}
	t.state.fields[documentID] = append([]Field(nil), fields...)
	return nil
}

func (t *memoryTx) ListSigners(ctx context.Context, documentID string) ([]Signer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.state.listSigners(documentID), nil
}

func (t *memoryTx) InsertSigner(ctx context.Context, signer Signer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, s := range t.state.signers[signer.DocumentID] {
		if s.OrderIndex == signer.OrderIndex {
			return validationf("order index %d already used", signer.OrderIndex)
		}
	}
	t.state.signers[signer.DocumentID] = append(t.state.signers[signer.DocumentID], signer)
	return nil
}

func (t *memoryTx) UpdateSigner(ctx context.Context, signer Signer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	list := t.state.signers[signer.DocumentID]
	for i := range list {
		if list[i].ID == signer.ID {
			list[i] = signer
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) DeleteSigner(ctx context.Context, documentID, signerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	list := t.state.signers[documentID]
	for i := range list {
		if list[i].ID == signerID {
			t.state.signers[documentID] = append(list[:i:i], list[i+1:]...)
			t.deleteSignaturesBySigner(signerID)
			t.unassignFields(documentID, signerID)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) DeleteSigners(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, s := range t.state.signers[documentID] {
		t.deleteSignaturesBySigner(s.ID)
		t.unassignFields(documentID, s.ID)
	}
	delete(t.state.signers, documentID)
	return nil
}

func (t *memoryTx) CountSignatures(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(t.state.listSignatures(documentID)), nil
}

func (t *memoryTx) UpsertSignature(ctx context.Context, sig Signature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := signatureKey(sig.SignerID, sig.FieldID)
	if existing, ok := t.state.signatures[key]; ok {
		sig.ID = existing.ID
	}
	t.state.signatures[key] = sig
	return nil
}

func (t *memoryTx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.state.docs[entry.DocumentID]; !ok {
		return ErrNotFound
	}
	t.state.audit[entry.DocumentID] = append(t.state.audit[entry.DocumentID], entry)
	return nil
}

func (t *memoryTx) deleteSignaturesBySigner(signerID string) {
	for k, sig := range t.state.signatures {
		if sig.SignerID == signerID {
			delete(t.state.signatures, k)
		}
	}
}

func (t *memoryTx) unassignFields(documentID, signerID string) {
	fields := t.state.fields[documentID]
	for i := range fields {
		if fields[i].SignerID == signerID {
			fields[i].SignerID = ""
		}
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memoryTx)(nil)
)
