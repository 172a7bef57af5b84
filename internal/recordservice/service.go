// Package recordservice implements the command layer: it validates input,
// mutates the actual files on disk through fileops, and on success records the
// outcome in the registry. When a registry rewrite fails after a disk mutation
// already succeeded, the returned error says so explicitly, since recovery for
// a partially applied operation differs from one that never started.
package recordservice

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/softmill/filedex/internal/apperr"
	"github.com/softmill/filedex/internal/checksum"
	"github.com/softmill/filedex/internal/fileops"
	"github.com/softmill/filedex/internal/models"
	"github.com/softmill/filedex/internal/registry"
)

// Service coordinates file operations and registry persistence. A single
// coarse mutex serializes every mutation end to end, from resolving the
// record through the precondition check, the disk write, and the registry
// rewrite. Without it, two concurrent updates could both pass the same
// checksum precondition and one would silently overwrite the other.
type Service struct {
	mu       sync.Mutex
	reg      *registry.Registry
	fs       fileops.Provider
	onChange func(kind, id, path string)
}

// Option configures a Service.
type Option func(*Service)

// WithChangeCallback registers a hook invoked after every successful mutation.
// kind is one of "created", "updated", "deleted"; path is the record's
// on-disk location after the mutation.
func WithChangeCallback(cb func(kind, id, path string)) Option {
	return func(s *Service) { s.onChange = cb }
}

// New creates a record service.
func New(reg *registry.Registry, fs fileops.Provider, opts ...Option) *Service {
	s := &Service{reg: reg, fs: fs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the underlying store for read-only callers.
func (s *Service) Registry() *registry.Registry { return s.reg }

// Create validates the name, ensures the target directory exists, refuses to
// clobber an existing file, writes the content to disk, and registers the
// new record.
func (s *Service) Create(_ context.Context, fileName, content, storagePath, category string) (*models.Record, error) {
	if err := ValidateFileName(fileName); err != nil {
		return nil, err
	}
	storagePath = strings.TrimSpace(storagePath)
	if storagePath == "" {
		return nil, fmt.Errorf("%w: storage path cannot be empty", apperr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(storagePath); err != nil {
		return nil, err
	}

	target := filepath.Join(storagePath, fileName)
	if s.fs.Exists(target) {
		return nil, fmt.Errorf("%w: a file named %q already exists at %s", apperr.ErrDuplicate, fileName, storagePath)
	}
	if err := s.fs.WriteFile(target, content); err != nil {
		return nil, err
	}

	rec := models.New(fileName, content, storagePath, category)
	if err := s.reg.Save(rec); err != nil {
		return nil, fmt.Errorf("file written to disk but registry update failed: %w", err)
	}
	s.notify("created", rec)
	return rec, nil
}

// Resolve finds a record by reference, trying in this order: exact id, id
// prefix, exact (case-insensitive) file name. The order is contractual: a file
// name that happens to look like an id prefix of another record resolves to
// that other record.
func (s *Service) Resolve(_ context.Context, ref string) (*models.Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: reference cannot be empty", apperr.ErrValidation)
	}
	if rec, ok := s.reg.FindByID(ref); ok {
		return rec, nil
	}
	for _, rec := range s.reg.FindAll() {
		if strings.HasPrefix(rec.ID, ref) {
			return rec, nil
		}
	}
	if rec, ok := s.reg.FindByFileName(ref); ok {
		return rec, nil
	}
	return nil, fmt.Errorf("%w: no record matches %q", apperr.ErrNotFound, ref)
}

// List returns all records, most recently created first.
func (s *Service) List(_ context.Context) []*models.Record {
	return s.reg.FindAll()
}

// ListByCategory filters records by category, case-insensitively.
func (s *Service) ListByCategory(_ context.Context, category string) []*models.Record {
	return s.reg.FindByCategory(category)
}

// Count returns the number of tracked records.
func (s *Service) Count(_ context.Context) int {
	return s.reg.Count()
}

// ReadDisk returns the live bytes of the tracked file, which may differ from
// the registry's cached content.
func (s *Service) ReadDisk(_ context.Context, rec *models.Record) (string, error) {
	return s.fs.ReadFile(rec.Path())
}

// UpdateContent overwrites the tracked file and the registry's cached content.
// A non-empty ifMatch must equal the checksum of the current cached content,
// otherwise the update is rejected with a conflict. The service mutex holds
// from the precondition check through the rewrite, so two concurrent updates
// carrying the same checksum cannot both pass.
func (s *Service) UpdateContent(ctx context.Context, ref, content, ifMatch string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.SumString(rec.Content) {
		return nil, fmt.Errorf("%w: content checksum mismatch", apperr.ErrConflict)
	}
	if err := s.fs.WriteFile(rec.Path(), content); err != nil {
		return nil, err
	}
	rec.SetContent(content)
	if err := s.reg.Update(rec); err != nil {
		return nil, fmt.Errorf("file updated on disk but registry update failed: %w", err)
	}
	s.notify("updated", rec)
	return rec, nil
}

// Rename gives the tracked file a new name within its current directory.
func (s *Service) Rename(ctx context.Context, ref, newName string) (*models.Record, error) {
	if err := ValidateFileName(newName); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	newPath := filepath.Join(rec.StoragePath, newName)
	if err := s.fs.Rename(rec.Path(), newPath); err != nil {
		return nil, err
	}
	rec.SetFileName(newName)
	if err := s.reg.Update(rec); err != nil {
		return nil, fmt.Errorf("file renamed on disk but registry update failed: %w", err)
	}
	s.notify("updated", rec)
	return rec, nil
}

// Move relocates the tracked file to a different directory, creating it if needed.
func (s *Service) Move(ctx context.Context, ref, newDir string) (*models.Record, error) {
	newDir = strings.TrimSpace(newDir)
	if newDir == "" {
		return nil, fmt.Errorf("%w: target directory cannot be empty", apperr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(newDir); err != nil {
		return nil, err
	}
	if err := s.fs.Rename(rec.Path(), filepath.Join(newDir, rec.FileName)); err != nil {
		return nil, err
	}
	rec.SetStoragePath(newDir)
	if err := s.reg.Update(rec); err != nil {
		return nil, fmt.Errorf("file moved on disk but registry update failed: %w", err)
	}
	s.notify("updated", rec)
	return rec, nil
}

// Recategorize changes the category tag. No disk I/O is involved.
func (s *Service) Recategorize(ctx context.Context, ref, category string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rec.SetCategory(category)
	if err := s.reg.Update(rec); err != nil {
		return nil, err
	}
	s.notify("updated", rec)
	return rec, nil
}

// Refresh re-reads the tracked file from disk into the registry's cached
// content, resolving any drift in favour of the disk.
func (s *Service) Refresh(ctx context.Context, ref string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.ReadFile(rec.Path())
	if err != nil {
		return nil, err
	}
	rec.SetContent(data)
	if err := s.reg.Update(rec); err != nil {
		return nil, err
	}
	s.notify("updated", rec)
	return rec, nil
}

// Delete removes the tracked file from disk (if it still exists) and then the
// record from the registry.
func (s *Service) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	if s.fs.Exists(rec.Path()) {
		if err := s.fs.Remove(rec.Path()); err != nil {
			return err
		}
	}
	if _, err := s.reg.Delete(rec.ID); err != nil {
		return fmt.Errorf("file deleted from disk but registry update failed: %w", err)
	}
	s.notify("deleted", rec)
	return nil
}

// AuditReport lists records whose on-disk file disagrees with the registry.
type AuditReport struct {
	Missing    []*models.Record // no file on disk at the recorded path
	Drifted    []*models.Record // disk content differs from the cached content
	Unreadable []*models.Record // something exists at the path but cannot be read
}

// Audit compares every record against the disk. The registry never does this
// on its own; callers run it at startup or on demand. A record whose path
// exists but cannot be read counts as unreadable rather than healthy, so a
// permission failure does not hide behind a clean report.
func (s *Service) Audit(_ context.Context) AuditReport {
	var report AuditReport
	for _, rec := range s.reg.FindAll() {
		if !s.fs.Exists(rec.Path()) {
			report.Missing = append(report.Missing, rec)
			continue
		}
		data, err := s.fs.ReadFile(rec.Path())
		if err != nil {
			report.Unreadable = append(report.Unreadable, rec)
			continue
		}
		if checksum.SumString(data) != checksum.SumString(rec.Content) {
			report.Drifted = append(report.Drifted, rec)
		}
	}
	return report
}

func (s *Service) notify(kind string, rec *models.Record) {
	if s.onChange != nil {
		s.onChange(kind, rec.ID, rec.Path())
	}
}
