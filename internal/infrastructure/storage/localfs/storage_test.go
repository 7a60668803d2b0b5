package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutOpenDeleteRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	key := "patient-1/doc.pdf"
	if err := storage.Put(ctx, key, strings.NewReader("content"), "application/pdf"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	f, err := storage.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(f)
	_ = f.Close()
	if string(raw) != "content" {
		t.Fatalf("unexpected content %q", raw)
	}

	if err := storage.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := storage.Open(ctx, key); err == nil {
		t.Fatalf("expected open to fail after delete")
	}
}

func TestDeleteMissingKeyIsIdempotent(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Delete(context.Background(), "patient-1/never-existed.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	base := t.TempDir()
	storage, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	outside := filepath.Join(base, "..", "escape.txt")
	if err := storage.Put(context.Background(), "../escape.txt", strings.NewReader("x"), "text/plain"); err == nil {
		t.Fatalf("expected error for escaping key")
	}
	if _, err := os.Stat(outside); err == nil {
		t.Fatalf("file must not be written outside the base dir")
	}
}
