// Package testutil provides shared test helpers for setting up registries and
// services.
package testutil

import (
	"testing"

	"github.com/softmill/filedex/internal/fileops"
	"github.com/softmill/filedex/internal/recordservice"
	"github.com/softmill/filedex/internal/registry"
)

// TestRegistry creates a registry in a temporary directory that is
// automatically cleaned up.
func TestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	return reg
}

// TestService creates a record service backed by a temp registry and the real
// filesystem, plus a temp storage directory for tracked files.
func TestService(t *testing.T, opts ...recordservice.Option) (*recordservice.Service, string) {
	t.Helper()
	reg := TestRegistry(t)
	storageDir := t.TempDir()
	return recordservice.New(reg, fileops.OS{}, opts...), storageDir
}
