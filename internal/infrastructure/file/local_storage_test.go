package file_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammadpnp/prospect-import/internal/infrastructure/file"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	t.Parallel()

	storage := file.NewLocalStorage(filepath.Join(t.TempDir(), "staging"))

	name, err := storage.Save(context.Background(), strings.NewReader("a@x.com,Al\n"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if filepath.Ext(name) != ".csv" {
		t.Fatalf("expected .csv name, got %s", name)
	}

	other, err := storage.Save(context.Background(), strings.NewReader("b@x.com\n"))
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if other == name {
		t.Fatal("expected unique staged names")
	}

	for i := 0; i < 2; i++ {
		rc, err := storage.Open(context.Background(), name)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(data) != "a@x.com,Al\n" {
			t.Fatalf("unexpected content: %q", data)
		}
	}
}

func TestLocalStorageOpenMissing(t *testing.T) {
	t.Parallel()

	storage := file.NewLocalStorage(t.TempDir())
	if _, err := storage.Open(context.Background(), "missing.csv"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLocalStorageSaveCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	storage := file.NewLocalStorage(t.TempDir())
	if _, err := storage.Save(ctx, strings.NewReader("a@x.com\n")); err == nil {
		t.Fatal("expected error")
	}
}
