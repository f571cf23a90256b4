package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"esign-backend/internal/shared/storage/object"
)

// Store implements object.Store using the local filesystem.
type Store struct {
	baseDir    string
	publicBase string
}

// New creates a new local object store rooted at baseDir. publicBase is the URL
// prefix the API serves files under; it may be empty.
func New(baseDir, publicBase string) *Store {
	return &Store{baseDir: baseDir, publicBase: strings.TrimRight(publicBase, "/")}
}

// Exists reports whether a file is stored at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	full, err := s.resolve(ctx, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Get reads the stored file.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	full, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", object.ErrNotFound, key)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Put writes data at key, replacing any previous content.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.SaveWithKey(ctx, key, object.DetectContentType(key, data), bytes.NewReader(data))
	return err
}

// SaveWithKey streams the reader to disk at a specific storage key.
func (s *Store) SaveWithKey(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	full, err := s.resolve(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	// Temp file plus rename keeps the replace atomic.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("open temp file: %w", err)
	}
	written, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("rename: %w", err)
	}
	_ = contentType
	return written, nil
}

// Delete removes the file at key. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	full, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Copy duplicates src to dst.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	data, err := s.Get(ctx, src)
	if err != nil {
		return err
	}
	return s.Put(ctx, dst, data)
}

// MakeDirectory creates the directory and any parents.
func (s *Store) MakeDirectory(ctx context.Context, key string) error {
	full, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

// PublicURL returns the URL the file is served under.
func (s *Store) PublicURL(key string) string {
	clean, err := object.CleanKey(key)
	if err != nil {
		return ""
	}
	if s.publicBase == "" {
		return "/" + clean
	}
	return s.publicBase + "/" + clean
}

func (s *Store) resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

var _ object.Store = (*Store)(nil)
