// Package registry implements the durable store of file records: an
// insertion-ordered in-memory map persisted to a single flat file that is
// rewritten atomically on every mutation.
package registry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/softmill/filedex/internal/apperr"
	"github.com/softmill/filedex/internal/models"
)

const (
	backingName = "registry.dat"
	tempName    = "registry.tmp"
)

// maxLineSize bounds a single registry line; content is held in memory anyway.
const maxLineSize = 16 << 20

// Registry owns the canonical collection of records for one process. A single
// coarse mutex guards every read-modify-rewrite sequence so the HTTP façade
// can share one instance across goroutines. Exclusive ownership of the backing
// file is assumed; concurrent processes are not guarded against.
type Registry struct {
	mu   sync.Mutex
	dir  string
	file string
	recs *orderedmap.OrderedMap[string, *models.Record]
}

// Open ensures dir exists (creating it if missing) and loads all records from
// the backing file. A missing backing file is a first run, not an error.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create registry dir %s: %v", apperr.ErrStorage, dir, err)
	}
	r := &Registry{
		dir:  dir,
		file: filepath.Join(dir, backingName),
		recs: orderedmap.New[string, *models.Record](),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the registry directory.
func (r *Registry) Dir() string { return r.dir }

// Save inserts or replaces the record by id, then rewrites the backing file.
// A copy is stored so the caller's pointer never aliases the map. The map is
// mutated before the rewrite attempt: on failure the in-memory state is ahead
// of disk and the caller should treat the whole operation as failed (a retry
// re-runs the rewrite).
func (r *Registry) Save(rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs.Set(rec.ID, rec.Clone())
	return r.persist()
}

// Update is Save under a name that reads better at mutation call sites.
func (r *Registry) Update(rec *models.Record) error {
	return r.Save(rec)
}

// Delete removes the record by id if present and reports whether anything was
// removed. The backing file is rewritten only when a record actually went away.
func (r *Registry) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, removed := r.recs.Delete(id); !removed {
		return false, nil
	}
	if err := r.persist(); err != nil {
		return false, err
	}
	return true, nil
}

// FindByID looks up a record by its exact id. Like every finder it returns a
// copy: the stored record is only ever replaced wholesale via Save, never
// mutated in place, so a concurrent rewrite always encodes a consistent record.
func (r *Registry) FindByID(id string) (*models.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs.Get(id)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// FindByFileName scans for the first record whose file name matches
// case-insensitively.
func (r *Registry) FindByFileName(name string) (*models.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pair := r.recs.Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Value.FileName, name) {
			return pair.Value.Clone(), true
		}
	}
	return nil, false
}

// FindAll returns every record sorted by CreatedAt descending (most recent first).
func (r *Registry) FindAll() []*models.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked(func(*models.Record) bool { return true })
}

// FindByCategory returns records whose category matches case-insensitively,
// sorted by CreatedAt descending.
func (r *Registry) FindByCategory(category string) []*models.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked(func(rec *models.Record) bool {
		return strings.EqualFold(rec.Category, category)
	})
}

// Count returns the number of records currently held.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recs.Len()
}

func (r *Registry) sortedLocked(keep func(*models.Record) bool) []*models.Record {
	out := make([]*models.Record, 0, r.recs.Len())
	for pair := r.recs.Oldest(); pair != nil; pair = pair.Next() {
		if keep(pair.Value) {
			out = append(out, pair.Value.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// load reads the backing file line by line. Blank lines are skipped; any
// non-blank line that does not parse as a complete record fails the whole load.
func (r *Registry) load() error {
	f, err := os.Open(r.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: open %s: %v", apperr.ErrStorage, r.file, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, err := decodeLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		r.recs.Set(rec.ID, rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: read %s: %v", apperr.ErrStorage, r.file, err)
	}
	return nil
}

// persist rewrites the backing file. All lines go to a temp file first; the
// temp file is fully flushed, synced, and closed; the old backing file is
// removed; finally the temp file is renamed into place. A failure anywhere
// before the rename leaves the previous backing file intact and readable. The
// rename itself is the only window where data can be lost, and its failure is
// reported as a distinct storage error.
func (r *Registry) persist() error {
	tmpPath := filepath.Join(r.dir, tempName)
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: create temp registry: %v", apperr.ErrStorage, err)
	}

	w := bufio.NewWriter(tmp)
	for pair := r.recs.Oldest(); pair != nil; pair = pair.Next() {
		if _, err := w.WriteString(encodeLine(pair.Value) + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("%w: write temp registry: %v", apperr.ErrStorage, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: flush temp registry: %v", apperr.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync temp registry: %v", apperr.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp registry: %v", apperr.ErrStorage, err)
	}

	if err := os.Remove(r.file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove old registry: %v", apperr.ErrStorage, err)
	}
	if err := os.Rename(tmpPath, r.file); err != nil {
		return fmt.Errorf("%w: rename temp registry into place: %v", apperr.ErrStorage, err)
	}
	return nil
}
