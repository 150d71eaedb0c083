// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store, interchangeable with FSStore (spec §4.5):
// same Load/Save/List/Delete contract, and the same JSON wire shape via
// Snapshot/LoadSnapshot for callers that want to persist or transmit the
// whole store at once (e.g. a test fixture or an embedded migrations blob).
type MemStore struct {
	mu     sync.RWMutex
	lockMu sync.RWMutex
	docs   map[string]*migrationDoc
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]*migrationDoc)}
}

func (s *MemStore) Load(name string) (*Migration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	if !ok {
		return nil, MigrationNotFoundError{Name: name}
	}
	return fromDoc(doc), nil
}

func (s *MemStore) Save(m *Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[m.Name] = toDoc(m)
	return nil
}

func (s *MemStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.docs))
	for n := range s.docs {
		names = append(names, n)
	}
	return sortedNames(names), nil
}

func (s *MemStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, name)
	return nil
}

// memLock adapts sync.RWMutex to Unlocker; MemStore never blocks a reader
// against another reader, matching the shared/exclusive split of the
// filesystem store's flock-based locks without needing a real file.
type memLock struct {
	mu       *sync.RWMutex
	exclusive bool
}

func (l *memLock) Unlock() error {
	if l.exclusive {
		l.mu.Unlock()
	} else {
		l.mu.RUnlock()
	}
	return nil
}

func (s *MemStore) Lock() (Unlocker, error) {
	s.lockMu.Lock()
	return &memLock{mu: &s.lockMu, exclusive: true}, nil
}

func (s *MemStore) RLock() (Unlocker, error) {
	s.lockMu.RLock()
	return &memLock{mu: &s.lockMu, exclusive: false}, nil
}

// snapshotDoc is the aggregated wire shape for a whole in-memory store,
// exactly per spec §6: "{migrations: map name→migration, current:
// migration, latest: Option<name>}". "current" is the pseudo-migration
// named CurrentName if one has been Saved into the store; Butane's model
// layer writes it there to represent the in-progress, not-yet-named
// schema being authored.
type snapshotDoc struct {
	Migrations map[string]*migrationDoc `json:"migrations"`
	Current    *migrationDoc            `json:"current"`
	Latest     *string                  `json:"latest"`
}

// Snapshot serializes the entire store to JSON.
func (s *MemStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	docs := make(map[string]*migrationDoc, len(s.docs))
	var current *migrationDoc
	for name, doc := range s.docs {
		if name == CurrentName {
			current = doc
			continue
		}
		docs[name] = doc
	}
	s.mu.RUnlock()

	var latest *string
	if m, err := Latest(s); err == nil && m != nil {
		name := m.Name
		latest = &name
	}

	b, err := json.MarshalIndent(snapshotDoc{Migrations: docs, Current: current, Latest: latest}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("migrations: snapshotting store: %w", err)
	}
	return b, nil
}

// LoadSnapshot replaces the store's contents with a previously-Snapshot'd
// document. Latest is informational only (it's recomputed from parent
// pointers by Latest()); it is not used to reconstruct state.
func (s *MemStore) LoadSnapshot(data []byte) error {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("migrations: loading store snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*migrationDoc, len(doc.Migrations)+1)
	for name, d := range doc.Migrations {
		s.docs[name] = d
	}
	if doc.Current != nil {
		s.docs[CurrentName] = doc.Current
	}
	return nil
}

var _ Store = (*MemStore)(nil)
