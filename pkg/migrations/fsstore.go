// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// FSStore is the filesystem Store implementation (spec §4.5): one JSON
// file per migration under Dir, plus a ".butane.lock" file beside them
// for the advisory lock. Grounded on gofrs/flock usage in untoldecay/BeadsLog's
// cmd/bd/sync.go (TryLock for an exclusive writer lock around a
// filesystem mutation).
type FSStore struct {
	Dir string
}

func NewFSStore(dir string) *FSStore { return &FSStore{Dir: dir} }

func (s *FSStore) path(name string) string {
	return filepath.Join(s.Dir, name+".json")
}

func (s *FSStore) Load(name string) (*Migration, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, MigrationNotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("migrations: reading %q: %w", name, err)
	}
	return decodeMigration(data)
}

func (s *FSStore) Save(m *Migration) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("migrations: creating store dir: %w", err)
	}
	data, err := encodeMigration(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(m.Name), data, 0o644); err != nil {
		return fmt.Errorf("migrations: writing %q: %w", m.Name, err)
	}
	return nil
}

func (s *FSStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("migrations: listing store dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

func (s *FSStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("migrations: deleting %q: %w", name, err)
	}
	return nil
}

func (s *FSStore) lockPath() string { return filepath.Join(s.Dir, ".butane.lock") }

// Lock acquires the exclusive writer lock (spec §4.5).
func (s *FSStore) Lock() (Unlocker, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("migrations: creating store dir: %w", err)
	}
	lock := flock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("migrations: acquiring exclusive lock: %w", err)
	}
	return lock, nil
}

// RLock acquires the shared reader lock (spec §4.5).
func (s *FSStore) RLock() (Unlocker, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("migrations: creating store dir: %w", err)
	}
	lock := flock.New(s.lockPath())
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("migrations: acquiring shared lock: %w", err)
	}
	return lock, nil
}

var _ Store = (*FSStore)(nil)
