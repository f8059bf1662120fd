// Package blobstore stores uploaded archives and materialized lab files.
// It defines the BlobStore interface, an in-memory implementation for tests
// and development, and a filesystem implementation for production.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (100 MB).
const MaxFileSize = 100 * 1024 * 1024

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	Ref       string    `json:"ref"`
	FileName  string    `json:"file_name"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// BlobStore is the contract for blob storage backends: a named byte stream
// goes in, a stable reference comes out.
type BlobStore interface {
	Save(ctx context.Context, name string, content io.Reader) (*BlobMetadata, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, *BlobMetadata, error)
	Delete(ctx context.Context, ref string) error
	Stat(ctx context.Context, ref string) (*BlobMetadata, error)
}

// readAll reads content up to MaxFileSize, computing size and SHA-256.
func readAll(content io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, "", ErrFileTooLarge
	}
	h := sha256.Sum256(data)
	return data, fmt.Sprintf("%x", h), nil
}

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for testing/dev.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

// NewInMemoryBlobStore returns a ready-to-use InMemoryBlobStore.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs: make(map[string]*storedBlob),
	}
}

func (s *InMemoryBlobStore) Save(_ context.Context, name string, content io.Reader) (*BlobMetadata, error) {
	if name == "" {
		return nil, ErrMissingFileName
	}

	data, hash, err := readAll(content)
	if err != nil {
		return nil, err
	}

	meta := BlobMetadata{
		Ref:       uuid.New().String(),
		FileName:  name,
		Size:      int64(len(data)),
		Hash:      hash,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[meta.Ref] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) Open(_ context.Context, ref string) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[ref]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	meta := blob.metadata
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[ref]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, ref)
	return nil
}

func (s *InMemoryBlobStore) Stat(_ context.Context, ref string) (*BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[ref]
	if !ok {
		return nil, ErrBlobNotFound
	}
	meta := blob.metadata
	return &meta, nil
}
