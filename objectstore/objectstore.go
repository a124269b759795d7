// Package objectstore provides the default afero.Fs-backed ObjectStore
// implementations, adapted from the teacher's files_driver.go/
// files_clientdriver.go (which rebased a plain os.File tree per user) into a
// single shared filesystem behind the afero abstraction.
package objectstore

import (
	"github.com/spf13/afero"

	"github.com/gera2ld/goftpd"
)

// NewOSStore returns an ObjectStore rooted at baseDir on the real filesystem.
func NewOSStore(baseDir string) ftpd.ObjectStore {
	return &store{Fs: afero.NewBasePathFs(afero.NewOsFs(), baseDir)}
}

// NewMemoryStore returns an in-memory ObjectStore, grounded on the teacher's
// own test fixtures (afero.MemMapFs) rather than any production driver.
func NewMemoryStore() ftpd.ObjectStore {
	return &store{Fs: afero.NewMemMapFs()}
}

// store adapts an afero.Fs into the ObjectStore extension points (RemoveDir,
// AllocateSpace) the core can optionally use.
type store struct {
	afero.Fs
}

// RemoveDir removes a directory tree; afero.Fs already exposes RemoveAll, so
// this is a thin rename to the vocabulary the core's RMD handler expects.
func (s *store) RemoveDir(name string) error {
	return s.Fs.RemoveAll(name)
}

// AllocateSpace approves every request unconditionally: neither back-end
// (plain OS directory, MemMapFs) is quota-managed here, matching spec.md's
// treatment of ALLO as a compatibility no-op.
func (s *store) AllocateSpace(int64) error {
	return nil
}
