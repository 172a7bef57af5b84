package recordservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/softmill/filedex/internal/apperr"
	"github.com/softmill/filedex/internal/checksum"
	"github.com/softmill/filedex/internal/fileops"
	"github.com/softmill/filedex/internal/models"
	"github.com/softmill/filedex/internal/registry"
)

// testEnv returns a service over a temp registry, the registry dir, and a temp
// storage dir for tracked files.
func testEnv(t *testing.T, opts ...Option) (*Service, string, string) {
	t.Helper()
	regDir := t.TempDir()
	reg, err := registry.Open(regDir)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	return New(reg, fileops.OS{}, opts...), regDir, t.TempDir()
}

func TestCreateWritesFileAndRegisters(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "notes.txt", "hello", storeDir, "Work")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Category != "Work" {
		t.Errorf("category = %q", rec.Category)
	}

	data, err := os.ReadFile(filepath.Join(storeDir, "notes.txt"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("disk content = %q", data)
	}
	if svc.Count(ctx) != 1 {
		t.Errorf("count = %d", svc.Count(ctx))
	}
}

func TestCreateBlankCategoryDefaults(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	rec, err := svc.Create(context.Background(), "a.txt", "", storeDir, "   ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Category != models.DefaultCategory {
		t.Errorf("category = %q, want %q", rec.Category, models.DefaultCategory)
	}
}

func TestCreateCreatesStorageDir(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	nested := filepath.Join(storeDir, "deep", "er")
	if _, err := svc.Create(context.Background(), "a.txt", "x", nested, ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nested, "a.txt")); err != nil {
		t.Errorf("file not created in new dir: %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, "dup.txt", "a", storeDir, ""); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx, "dup.txt", "b", storeDir, "")
	if !errors.Is(err, apperr.ErrDuplicate) {
		t.Errorf("error = %v, want ErrDuplicate", err)
	}
}

func TestCreateInvalidNames(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()

	cases := []string{"", "   ", "noextension", "bad|name.txt", "q?.txt", `back\slash.txt`}
	for _, name := range cases {
		_, err := svc.Create(ctx, name, "", storeDir, "")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Create(%q) error = %v, want ErrValidation", name, err)
		}
	}
	// Nothing was written or registered.
	if svc.Count(ctx) != 0 {
		t.Errorf("count = %d after rejected creates", svc.Count(ctx))
	}
}

func TestResolveOrder(t *testing.T) {
	svc, _, _ := testEnv(t)
	ctx := context.Background()
	now := time.Now()

	// byID's id starts with "aaaa"; byName is literally named "aaaa.txt".
	byID := models.Restore("aaaa1111-2222", "first.txt", "", "/tmp/x", "", now, now)
	byName := models.Restore("zzzz9999-8888", "aaaa1111-2222.txt", "", "/tmp/x", "", now.Add(time.Second), now.Add(time.Second))
	if err := svc.reg.Save(byID); err != nil {
		t.Fatal(err)
	}
	if err := svc.reg.Save(byName); err != nil {
		t.Fatal(err)
	}

	// Exact id wins even though it is also another record's file name stem.
	got, err := svc.Resolve(ctx, "aaaa1111-2222")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != byID.ID {
		t.Errorf("exact id resolved %s", got.ID)
	}

	// Prefix of an id beats an exact file name match.
	got, err = svc.Resolve(ctx, "aaaa")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != byID.ID {
		t.Errorf("id prefix resolved %s, want %s", got.ID, byID.ID)
	}

	// File name fallback, case-insensitive.
	got, err = svc.Resolve(ctx, "FIRST.TXT")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != byID.ID {
		t.Errorf("file name resolved %s", got.ID)
	}

	if _, err := svc.Resolve(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown ref error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Resolve(ctx, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank ref error = %v, want ErrValidation", err)
	}
}

func TestUpdateContent(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, "a.txt", "v1", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateContent(ctx, rec.ID, "v2", "")
	if err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if updated.Content != "v2" {
		t.Errorf("content = %q", updated.Content)
	}
	data, _ := os.ReadFile(filepath.Join(storeDir, "a.txt"))
	if string(data) != "v2" {
		t.Errorf("disk content = %q", data)
	}
}

func TestUpdateContentChecksumPrecondition(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, "a.txt", "v1", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}

	good := checksum.SumString("v1")
	if _, err := svc.UpdateContent(ctx, rec.ID, "v2", good); err != nil {
		t.Fatalf("update with matching checksum: %v", err)
	}

	// good is now stale.
	_, err = svc.UpdateContent(ctx, rec.ID, "v3", good)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale checksum error = %v, want ErrConflict", err)
	}
}

func TestRename(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, "old.txt", "data", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}

	renamed, err := svc.Rename(ctx, rec.ID, "new.txt")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.FileName != "new.txt" {
		t.Errorf("file name = %q", renamed.FileName)
	}
	if _, err := os.Stat(filepath.Join(storeDir, "new.txt")); err != nil {
		t.Error("renamed file missing on disk")
	}
	if _, err := os.Stat(filepath.Join(storeDir, "old.txt")); !os.IsNotExist(err) {
		t.Error("old file still on disk")
	}
}

func TestRenameOntoExisting(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, "a.txt", "", storeDir, "")
	if _, err := svc.Create(ctx, "b.txt", "", storeDir, ""); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Rename(ctx, rec.ID, "b.txt")
	if !errors.Is(err, apperr.ErrDuplicate) {
		t.Errorf("error = %v, want ErrDuplicate", err)
	}
}

func TestMove(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, "a.txt", "data", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(storeDir, "archive")
	moved, err := svc.Move(ctx, rec.ID, dest)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.StoragePath != dest {
		t.Errorf("storage path = %q", moved.StoragePath)
	}
	if _, err := os.Stat(filepath.Join(dest, "a.txt")); err != nil {
		t.Error("moved file missing at destination")
	}
}

func TestRecategorize(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, "a.txt", "", storeDir, "Work")

	got, err := svc.Recategorize(ctx, rec.ID, "Archive")
	if err != nil {
		t.Fatalf("Recategorize: %v", err)
	}
	if got.Category != "Archive" {
		t.Errorf("category = %q", got.Category)
	}
	if len(svc.ListByCategory(ctx, "archive")) != 1 {
		t.Error("case-insensitive category filter missed the record")
	}
}

func TestRefreshPicksUpExternalEdit(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, _ := svc.Create(ctx, "a.txt", "registry view", storeDir, "")

	// Edit behind the registry's back.
	if err := os.WriteFile(filepath.Join(storeDir, "a.txt"), []byte("disk view"), 0o644); err != nil {
		t.Fatal(err)
	}
	if live, _ := svc.ReadDisk(ctx, rec); live != "disk view" {
		t.Errorf("ReadDisk = %q", live)
	}
	if rec.Content != "registry view" {
		t.Errorf("cached content changed unexpectedly: %q", rec.Content)
	}

	refreshed, err := svc.Refresh(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.Content != "disk view" {
		t.Errorf("refreshed content = %q", refreshed.Content)
	}
}

func TestDeleteEndToEnd(t *testing.T) {
	svc, regDir, storeDir := testEnv(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "a.txt", "", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}
	all := svc.List(ctx)
	if len(all) != 1 || all[0].Category != models.DefaultCategory {
		t.Fatalf("list after create = %+v", all)
	}

	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(svc.List(ctx)) != 0 {
		t.Error("list not empty after delete")
	}
	if _, err := os.Stat(filepath.Join(storeDir, "a.txt")); !os.IsNotExist(err) {
		t.Error("file still on disk")
	}

	// Reopening the registry from the same directory also sees it empty.
	reopened, err := registry.Open(regDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Count() != 0 {
		t.Errorf("reopened count = %d", reopened.Count())
	}
}

func TestAudit(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()

	clean, _ := svc.Create(ctx, "clean.txt", "ok", storeDir, "")
	missing, _ := svc.Create(ctx, "missing.txt", "gone", storeDir, "")
	drifted, _ := svc.Create(ctx, "drifted.txt", "original", storeDir, "")

	if err := os.Remove(filepath.Join(storeDir, "missing.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(storeDir, "drifted.txt"), []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}

	report := svc.Audit(ctx)
	if len(report.Missing) != 1 || report.Missing[0].ID != missing.ID {
		t.Errorf("missing = %+v", report.Missing)
	}
	if len(report.Drifted) != 1 || report.Drifted[0].ID != drifted.ID {
		t.Errorf("drifted = %+v", report.Drifted)
	}
	for _, rec := range append(report.Missing, report.Drifted...) {
		if rec.ID == clean.ID {
			t.Error("clean record flagged by audit")
		}
	}
}

func TestAuditReportsUnreadable(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "blocked.txt", "data", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}

	// Something exists at the path but is not a readable file.
	path := filepath.Join(storeDir, "blocked.txt")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}

	report := svc.Audit(ctx)
	if len(report.Unreadable) != 1 || report.Unreadable[0].ID != rec.ID {
		t.Errorf("unreadable = %+v", report.Unreadable)
	}
	if len(report.Missing) != 0 || len(report.Drifted) != 0 {
		t.Errorf("unreadable record misclassified: missing=%d drifted=%d",
			len(report.Missing), len(report.Drifted))
	}
}

func TestChangeCallback(t *testing.T) {
	var events []string
	var paths []string
	cb := func(kind, id, path string) {
		events = append(events, kind)
		paths = append(paths, path)
	}

	regDir := t.TempDir()
	reg, err := registry.Open(regDir)
	if err != nil {
		t.Fatal(err)
	}
	svc := New(reg, fileops.OS{}, WithChangeCallback(cb))
	storeDir := t.TempDir()
	ctx := context.Background()

	rec, err := svc.Create(ctx, "a.txt", "", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Recategorize(ctx, rec.ID, "X"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}

	want := "created,updated,deleted"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("events = %q, want %q", got, want)
	}
	for i, p := range paths {
		if p != filepath.Join(storeDir, "a.txt") {
			t.Errorf("event %d path = %q", i, p)
		}
	}
}

func TestConcurrentUpdatesStayConsistent(t *testing.T) {
	svc, regDir, storeDir := testEnv(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, "a.txt", "v0", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := svc.UpdateContent(ctx, rec.ID, fmt.Sprintf("g%d-%d", g, i), ""); err != nil {
					t.Errorf("concurrent update: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	// Disk, cache, and the reloaded backing file all agree.
	got, err := svc.Resolve(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(storeDir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != got.Content {
		t.Errorf("disk %q disagrees with cache %q", data, got.Content)
	}

	reopened, err := registry.Open(regDir)
	if err != nil {
		t.Fatalf("reopen after concurrent updates: %v", err)
	}
	persisted, ok := reopened.FindByID(rec.ID)
	if !ok {
		t.Fatal("record lost")
	}
	if persisted.Content != got.Content {
		t.Errorf("backing file %q disagrees with cache %q", persisted.Content, got.Content)
	}
}

func TestChecksumPreconditionAdmitsSingleWriter(t *testing.T) {
	svc, _, storeDir := testEnv(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, "a.txt", "v1", storeDir, "")
	if err != nil {
		t.Fatal(err)
	}

	// Two writers race with the same precondition; exactly one may win.
	sum := checksum.SumString("v1")
	errs := make(chan error, 2)
	for g := 0; g < 2; g++ {
		go func(g int) {
			_, err := svc.UpdateContent(ctx, rec.ID, fmt.Sprintf("writer-%d", g), sum)
			errs <- err
		}(g)
	}

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Errorf("wins = %d, conflicts = %d, want exactly one of each", wins, conflicts)
	}
}

func TestValidateFileName(t *testing.T) {
	valid := []string{"notes.txt", "report.2026.md", "a.b"}
	for _, name := range valid {
		if err := ValidateFileName(name); err != nil {
			t.Errorf("ValidateFileName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "  ", "noext", "a<b.txt", `a>b.txt`, `a:b.txt`, `a"b.txt`, "a/b.txt", `a\b.txt`, "a|b.txt", "a?b.txt", "a*b.txt"}
	for _, name := range invalid {
		err := ValidateFileName(name)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ValidateFileName(%q) = %v, want ErrValidation", name, err)
		}
	}
}
