package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FSBlobStore stores blobs as files under a root directory. Each blob is a
// pair of files keyed by its reference: <ref> holding the content and
// <ref>.json holding the metadata.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates the root directory if needed and returns a store
// rooted there.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) contentPath(ref string) string {
	return filepath.Join(s.root, ref)
}

// validRef guards against refs that are not store-issued UUIDs reaching the
// filesystem layer.
func validRef(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

func (s *FSBlobStore) metaPath(ref string) string {
	return filepath.Join(s.root, ref+".json")
}

func (s *FSBlobStore) Save(_ context.Context, name string, content io.Reader) (*BlobMetadata, error) {
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

	if err := os.WriteFile(s.contentPath(meta.Ref), data, 0o644); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal blob metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(meta.Ref), metaJSON, 0o644); err != nil {
		os.Remove(s.contentPath(meta.Ref))
		return nil, fmt.Errorf("write blob metadata: %w", err)
	}

	out := meta
	return &out, nil
}

func (s *FSBlobStore) Open(ctx context.Context, ref string) (io.ReadCloser, *BlobMetadata, error) {
	if !validRef(ref) {
		return nil, nil, ErrBlobNotFound
	}
	meta, err := s.Stat(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.contentPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, meta, nil
}

func (s *FSBlobStore) Delete(_ context.Context, ref string) error {
	if !validRef(ref) {
		return ErrBlobNotFound
	}
	if err := os.Remove(s.contentPath(ref)); err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	_ = os.Remove(s.metaPath(ref))
	return nil
}

func (s *FSBlobStore) Stat(_ context.Context, ref string) (*BlobMetadata, error) {
	if !validRef(ref) {
		return nil, ErrBlobNotFound
	}
	raw, err := os.ReadFile(s.metaPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob metadata: %w", err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal blob metadata: %w", err)
	}
	return &meta, nil
}
