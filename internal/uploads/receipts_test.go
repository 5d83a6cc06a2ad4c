package uploads

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), maxSize, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestSaveAcceptedTypes(t *testing.T) {
	s := newTestStore(t, 1024)

	for _, name := range []string{"scan.jpg", "scan.JPEG", "scan.png", "invoice.pdf"} {
		stored, err := s.Save(strings.NewReader("content"), name)
		if err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		if stored == name {
			t.Fatalf("stored name must be randomized, got %s", stored)
		}
		wantExt := strings.ToLower(filepath.Ext(name))
		if filepath.Ext(stored) != wantExt {
			t.Fatalf("stored name %s, want extension %s", stored, wantExt)
		}
		data, err := os.ReadFile(filepath.Join(s.Dir(), stored))
		if err != nil {
			t.Fatalf("read stored file: %v", err)
		}
		if string(data) != "content" {
			t.Fatalf("stored content = %q", data)
		}
	}
}

func TestSaveRejectsUnsupportedType(t *testing.T) {
	s := newTestStore(t, 1024)

	for _, name := range []string{"malware.exe", "doc.docx", "noext", "archive.tar.gz"} {
		if _, err := s.Save(strings.NewReader("x"), name); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("Save(%s): expected ErrUnsupportedType, got %v", name, err)
		}
	}
}

func TestSaveSizeLimit(t *testing.T) {
	s := newTestStore(t, 10)

	if _, err := s.Save(strings.NewReader("0123456789"), "ok.png"); err != nil {
		t.Fatalf("exactly at the limit must succeed: %v", err)
	}

	if _, err := s.Save(strings.NewReader("0123456789A"), "big.png"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	// The rejected upload must not leave a partial file behind.
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("dir entries = %d, want only the accepted file", len(entries))
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, 1024)

	stored, err := s.Save(strings.NewReader("x"), "r.pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Remove(stored); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), stored)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present after Remove: %v", err)
	}

	// Removing again, or removing nothing, is not an error.
	if err := s.Remove(stored); err != nil {
		t.Fatalf("Remove of missing file: %v", err)
	}
	if err := s.Remove(""); err != nil {
		t.Fatalf("Remove of empty name: %v", err)
	}
}

func TestRemoveRejectsPathEscape(t *testing.T) {
	s := newTestStore(t, 1024)

	for _, name := range []string{"../secret.txt", "sub/receipt.png", "/etc/passwd"} {
		if err := s.Remove(name); err == nil {
			t.Fatalf("Remove(%s): expected error", name)
		}
	}
}
