// Package blobstore stores generated artifacts (prescription PDFs) and
// validates uploaded files.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrInvalidFileName    = errors.New("file name contains invalid characters")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type BlobMetadata struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

type BlobStore interface {
	Put(ctx context.Context, name string, content io.Reader) (*BlobMetadata, error)
	Open(ctx context.Context, name string) (io.ReadCloser, *BlobMetadata, error)
	Delete(ctx context.Context, name string) error
}

func checkName(name string) error {
	if name == "" {
		return ErrMissingFileName
	}
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return ErrInvalidFileName
	}
	return nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ---------------------------------------------------------------------------
// Filesystem implementation
// ---------------------------------------------------------------------------

// FileStore keeps blobs as flat files in one directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes to a temporary file and renames it into place so readers never
// observe a partial artifact.
func (s *FileStore) Put(_ context.Context, name string, content io.Reader) (*BlobMetadata, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), content)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write blob %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return nil, fmt.Errorf("store blob %s: %w", name, err)
	}

	return &BlobMetadata{
		Name:        name,
		ContentType: contentTypeFor(name),
		Size:        n,
		Hash:        hex.EncodeToString(h.Sum(nil)),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *FileStore) Open(_ context.Context, name string) (io.ReadCloser, *BlobMetadata, error) {
	if err := checkName(name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open blob %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat blob %s: %w", name, err)
	}
	return f, &BlobMetadata{
		Name:        name,
		ContentType: contentTypeFor(name),
		Size:        info.Size(),
		CreatedAt:   info.ModTime().UTC(),
	}, nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe BlobStore for tests.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]*storedBlob)}
}

func (s *InMemoryBlobStore) Put(_ context.Context, name string, content io.Reader) (*BlobMetadata, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	sum := sha256.Sum256(data)
	meta := BlobMetadata{
		Name:        name,
		ContentType: contentTypeFor(name),
		Size:        int64(len(data)),
		Hash:        hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[name] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) Open(_ context.Context, name string) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	b, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := b.metadata
	return io.NopCloser(bytes.NewReader(b.content)), &meta, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[name]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, name)
	return nil
}

// Has reports whether name is stored.
func (s *InMemoryBlobStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[name]
	return ok
}

// ---------------------------------------------------------------------------
// Upload validation
// ---------------------------------------------------------------------------

// ReadUpload checks a multipart file against maxSize and the allowed
// content types, then returns its bytes.
func ReadUpload(fh *multipart.FileHeader, maxSize int64, allowed ...string) ([]byte, error) {
	if fh == nil || fh.Filename == "" {
		return nil, ErrMissingFileName
	}
	if fh.Size > maxSize {
		return nil, ErrFileTooLarge
	}
	if len(allowed) > 0 {
		ct, _, _ := mime.ParseMediaType(fh.Header.Get("Content-Type"))
		ok := false
		for _, a := range allowed {
			if strings.EqualFold(ct, a) {
				ok = true
				break
			}
		}
		if !ok {
			return nil, ErrInvalidContentType
		}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
