package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
)

func testStores(t *testing.T) map[string]BlobStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]BlobStore{
		"file":   fs,
		"memory": NewInMemoryBlobStore(),
	}
}

func TestBlobStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			meta, err := store.Put(ctx, "prescription_P-1_1700000000000.pdf", strings.NewReader("%PDF-1.3 test"))
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if meta.Size != int64(len("%PDF-1.3 test")) {
				t.Errorf("unexpected size %d", meta.Size)
			}
			if meta.ContentType != "application/pdf" {
				t.Errorf("expected application/pdf, got %s", meta.ContentType)
			}
			if len(meta.Hash) != 64 {
				t.Errorf("expected sha256 hex hash, got %q", meta.Hash)
			}

			rc, _, err := store.Open(ctx, meta.Name)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if string(data) != "%PDF-1.3 test" {
				t.Errorf("unexpected content %q", data)
			}

			if err := store.Delete(ctx, meta.Name); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, _, err := store.Open(ctx, meta.Name); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
			}
			if err := store.Delete(ctx, meta.Name); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound on second delete, got %v", err)
			}
		})
	}
}

func TestBlobStore_RejectsBadNames(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, "", strings.NewReader("x")); !errors.Is(err, ErrMissingFileName) {
				t.Errorf("expected ErrMissingFileName, got %v", err)
			}
			for _, bad := range []string{"../etc/passwd", "a/b.pdf", ".hidden"} {
				if _, err := store.Put(ctx, bad, strings.NewReader("x")); !errors.Is(err, ErrInvalidFileName) {
					t.Errorf("%q: expected ErrInvalidFileName, got %v", bad, err)
				}
			}
		})
	}
}

func multipartFile(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="pdf"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	return req.MultipartForm.File["pdf"][0]
}

func TestReadUpload(t *testing.T) {
	fh := multipartFile(t, "rx.pdf", "application/pdf", []byte("%PDF-1.4"))
	data, err := ReadUpload(fh, 1024, "application/pdf")
	if err != nil {
		t.Fatalf("ReadUpload: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("unexpected data %q", data)
	}
}

func TestReadUpload_WrongType(t *testing.T) {
	fh := multipartFile(t, "rx.png", "image/png", []byte("png"))
	if _, err := ReadUpload(fh, 1024, "application/pdf"); !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestReadUpload_TooLarge(t *testing.T) {
	fh := multipartFile(t, "rx.pdf", "application/pdf", bytes.Repeat([]byte("a"), 2048))
	if _, err := ReadUpload(fh, 1024, "application/pdf"); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestReadUpload_Nil(t *testing.T) {
	if _, err := ReadUpload(nil, 1024); !errors.Is(err, ErrMissingFileName) {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}
}
