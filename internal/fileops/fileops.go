// Package fileops wraps the filesystem primitives the command layer uses to
// keep on-disk files in sync with registry entries.
package fileops

import (
	"fmt"
	"os"
	"strings"

	"github.com/softmill/filedex/internal/apperr"
)

// Provider is the filesystem abstraction consumed by the service layer.
type Provider interface {
	// WriteFile writes the full content to path with overwrite semantics.
	WriteFile(path, content string) error
	// ReadFile returns the full content at path with line endings normalized to \n.
	ReadFile(path string) (string, error)
	// Rename moves oldPath to newPath, failing distinctly if newPath exists.
	Rename(oldPath, newPath string) error
	// Remove deletes the file at path.
	Remove(path string) error
	// MkdirAll creates the directory tree if missing.
	MkdirAll(dir string) error
	// Exists reports whether something exists at path.
	Exists(path string) bool
}

// OS implements Provider with direct filesystem calls.
type OS struct{}

var _ Provider = OS{}

func (OS) WriteFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", apperr.ErrStorage, path, err)
	}
	return nil
}

func (OS) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no file on disk at %s", apperr.ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: read %s: %v", apperr.ErrStorage, path, err)
	}
	return normalizeNewlines(string(data)), nil
}

// Rename refuses to clobber: os.Rename would silently replace an existing
// destination on POSIX.
func (OS) Rename(oldPath, newPath string) error {
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%w: %s", apperr.ErrDuplicate, newPath)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("%w: rename %s to %s: %v", apperr.ErrStorage, oldPath, newPath, err)
	}
	return nil
}

func (OS) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: delete %s: %v", apperr.ErrStorage, path, err)
	}
	return nil
}

func (OS) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir %s: %v", apperr.ErrStorage, dir, err)
	}
	return nil
}

func (OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
