// Package watch observes the storage directories of tracked records with
// fsnotify and reports when files drift from, or disappear out from under,
// the registry. The watcher never mutates anything; it only surfaces the
// disagreement so a caller can decide to refresh or delete.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/softmill/filedex/internal/checksum"
	"github.com/softmill/filedex/internal/fileops"
	"github.com/softmill/filedex/internal/models"
	"github.com/softmill/filedex/internal/registry"
)

// EventCallback is called after the watcher detects a disagreement between
// disk and registry. kind is "drifted" (content differs) or "missing" (file
// gone from its recorded path); path is the record's on-disk location.
type EventCallback func(kind, id, path string)

// rescanInterval bounds how long a storage directory created after startup
// (by a create or move) stays unwatched.
const rescanInterval = 10 * time.Second

// Run watches the storage directories of all registered records until ctx is
// cancelled. Directories that appear in the registry later are picked up on
// the next rescan tick. Remove and rename events trigger a debounced
// reconciliation pass over the whole registry.
func Run(ctx context.Context, reg *registry.Registry, fs fileops.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]struct{})
	syncDirs(w, reg, watched, logger)

	logger.Info("watcher: started", slog.Int("dirs", len(watched)))

	rescan := time.NewTicker(rescanInterval)
	defer rescan.Stop()

	// reconcileTimer debounces full reconciliation after remove/rename bursts.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-rescan.C:
			syncDirs(w, reg, watched, logger)

		case <-reconcileCh:
			reconcile(reg, fs, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rec := recordAt(reg, ev.Name)
			if rec == nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				data, readErr := fs.ReadFile(rec.Path())
				if readErr != nil {
					continue
				}
				if checksum.SumString(data) != checksum.SumString(rec.Content) {
					logger.Debug("watcher: drift detected",
						slog.String("id", rec.ShortID()),
						slog.String("path", rec.Path()))
					if cb != nil {
						cb("drifted", rec.ID, rec.Path())
					}
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				logger.Debug("watcher: file gone",
					slog.String("id", rec.ShortID()),
					slog.String("path", rec.Path()))
				if cb != nil {
					cb("missing", rec.ID, rec.Path())
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// syncDirs brings the watch list up to date with the registry's current set
// of storage directories.
func syncDirs(w *fsnotify.Watcher, reg *registry.Registry, watched map[string]struct{}, logger *slog.Logger) {
	for _, rec := range reg.FindAll() {
		dir := filepath.Clean(rec.StoragePath)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := w.Add(dir); err != nil {
			logger.Warn("watcher: add dir failed",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			continue
		}
		watched[dir] = struct{}{}
	}
}

// recordAt finds the record tracking the given on-disk path, if any.
func recordAt(reg *registry.Registry, path string) *models.Record {
	cleaned := filepath.Clean(path)
	for _, rec := range reg.FindAll() {
		if filepath.Clean(rec.Path()) == cleaned {
			return rec
		}
	}
	return nil
}

// reconcile re-checks every record against the disk.
func reconcile(reg *registry.Registry, fs fileops.Provider, logger *slog.Logger, cb EventCallback) {
	for _, rec := range reg.FindAll() {
		if !fs.Exists(rec.Path()) {
			logger.Debug("reconcile: missing", slog.String("id", rec.ShortID()))
			if cb != nil {
				cb("missing", rec.ID, rec.Path())
			}
			continue
		}
		data, err := fs.ReadFile(rec.Path())
		if err != nil {
			continue
		}
		if checksum.SumString(data) != checksum.SumString(rec.Content) {
			logger.Debug("reconcile: drifted", slog.String("id", rec.ShortID()))
			if cb != nil {
				cb("drifted", rec.ID, rec.Path())
			}
		}
	}
}
