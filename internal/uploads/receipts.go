// Package uploads stores expense receipt files on local disk under random
// names, keeping only the path in the database.
package uploads

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType is returned for anything other than JPEG, PNG
	// or PDF receipts.
	ErrUnsupportedType = errors.New("unsupported file type (only JPEG, PNG and PDF are allowed)")
	// ErrTooLarge is returned when a receipt exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// Store writes receipts into a single flat directory.
type Store struct {
	dir     string
	maxSize int64
	logger  *slog.Logger
}

func NewStore(dir string, maxSize int64, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize, logger: logger}, nil
}

// Dir returns the directory receipts are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the uploaded receipt under a random hex name, keeping the
// original extension. The returned path is relative to the store directory.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	name := hex.EncodeToString(buf) + ext

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create receipt file: %w", err)
	}
	defer dst.Close()

	// One extra byte past the limit distinguishes too-large from exactly
	// at the limit.
	n, err := io.Copy(dst, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write receipt: %w", err)
	}
	if n > s.maxSize {
		os.Remove(dst.Name())
		return "", ErrTooLarge
	}

	s.logger.Debug("Receipt stored", "file", name, "bytes", n)
	return name, nil
}

// Remove deletes a stored receipt. A missing file is not an error: the
// row may reference a file that was already cleaned up.
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	// Reject anything that could escape the upload directory.
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid receipt name: %s", name)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove receipt: %w", err)
	}
	return nil
}
