// Package attachments stores image files referenced by document blocks.
//
// Files live flat in one directory under generated names, so a stored name
// doubles as the image id recorded on a block.
package attachments

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DirName is the attachments directory inside the workspace.
const DirName = "attachments"

// ErrUnsupported is returned for files that are not a supported image.
var ErrUnsupported = errors.New("unsupported image type")

// Extensions maps accepted extensions to their MIME type.
var Extensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// ExtForMIME returns the canonical extension of an image MIME type.
func ExtForMIME(mime string) string {
	switch strings.TrimSpace(strings.Split(mime, ";")[0]) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	return ""
}

// Store saves attachments under a directory.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore returns a store rooted at <root>/attachments accepting files up to
// maxBytes.
func NewStore(root string, maxBytes int64) *Store {
	return &Store{dir: filepath.Join(root, DirName), maxBytes: maxBytes}
}

// Dir returns the attachments directory.
func (s *Store) Dir() string { return s.dir }

// Path validates that name is a plain file name and returns its location.
func (s *Store) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return filepath.Join(s.dir, cleaned), nil
}

// Save writes src under a fresh name with extension ext after checking that
// the content matches it. It returns the stored name and size.
func (s *Store) Save(ext string, src io.Reader) (string, int64, error) {
	ext = strings.ToLower(ext)
	if _, ok := Extensions[ext]; !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	data, err := io.ReadAll(io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return "", 0, fmt.Errorf("attachments: read: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", 0, fmt.Errorf("attachments: file too large: exceeds %d bytes", s.maxBytes)
	}
	if err := checkContent(data, ext); err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("attachments: mkdir: %w", err)
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", 0, fmt.Errorf("attachments: write: %w", err)
	}
	return name, int64(len(data)), nil
}

// Remove deletes a stored attachment. Missing files are ignored.
func (s *Store) Remove(name string) error {
	abs, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// checkContent verifies the file content matches the declared extension.
func checkContent(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("%w: content is not an SVG document", ErrUnsupported)
		}
		return nil
	}
	detected := http.DetectContentType(data)
	if ExtForMIME(detected) != ExtForMIME(Extensions[ext]) {
		return fmt.Errorf("%w: content does not match %s (detected %s)", ErrUnsupported, ext, detected)
	}
	return nil
}
