package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func testStore(t *testing.T, name string) BlobStore {
	t.Helper()
	switch name {
	case "memory":
		return NewInMemoryBlobStore()
	case "fs":
		s, err := NewFSBlobStore(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	t.Fatalf("unknown store %q", name)
	return nil
}

func TestBlobStoreRoundTrip(t *testing.T) {
	for _, impl := range []string{"memory", "fs"} {
		t.Run(impl, func(t *testing.T) {
			s := testStore(t, impl)
			ctx := context.Background()

			meta, err := s.Save(ctx, "snapshot.jpg", strings.NewReader("image-bytes"))
			if err != nil {
				t.Fatal(err)
			}
			if meta.Ref == "" {
				t.Fatal("expected non-empty ref")
			}
			if meta.Size != int64(len("image-bytes")) {
				t.Errorf("size = %d", meta.Size)
			}
			if meta.Hash == "" {
				t.Error("expected content hash")
			}

			rc, got, err := s.Open(ctx, meta.Ref)
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != "image-bytes" {
				t.Errorf("content = %q", data)
			}
			if got.FileName != "snapshot.jpg" {
				t.Errorf("file name = %q", got.FileName)
			}
		})
	}
}

func TestBlobStoreMissingName(t *testing.T) {
	for _, impl := range []string{"memory", "fs"} {
		t.Run(impl, func(t *testing.T) {
			s := testStore(t, impl)
			if _, err := s.Save(context.Background(), "", strings.NewReader("x")); !errors.Is(err, ErrMissingFileName) {
				t.Errorf("err = %v, want ErrMissingFileName", err)
			}
		})
	}
}

func TestBlobStoreNotFound(t *testing.T) {
	for _, impl := range []string{"memory", "fs"} {
		t.Run(impl, func(t *testing.T) {
			s := testStore(t, impl)
			ctx := context.Background()
			ref := "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
			if _, _, err := s.Open(ctx, ref); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("Open err = %v", err)
			}
			if _, err := s.Stat(ctx, ref); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("Stat err = %v", err)
			}
			if err := s.Delete(ctx, ref); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("Delete err = %v", err)
			}
		})
	}
}

func TestBlobStoreDelete(t *testing.T) {
	for _, impl := range []string{"memory", "fs"} {
		t.Run(impl, func(t *testing.T) {
			s := testStore(t, impl)
			ctx := context.Background()
			meta, err := s.Save(ctx, "a.txt", strings.NewReader("x"))
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, meta.Ref); err != nil {
				t.Fatal(err)
			}
			if _, _, err := s.Open(ctx, meta.Ref); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
			}
		})
	}
}

func TestFSBlobStoreRejectsNonUUIDRef(t *testing.T) {
	s, err := NewFSBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Open(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("err = %v, want ErrBlobNotFound", err)
	}
}
