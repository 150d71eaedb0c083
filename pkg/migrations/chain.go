// SPDX-License-Identifier: Apache-2.0

package migrations

import "fmt"

// Latest returns the head of the migration chain: the one migration that
// is nobody's parent (spec §4.5 "latest() is the head of the chain").
// The CurrentName pseudo-migration is skipped. Returns nil, nil if the
// store holds no other migration.
func Latest(store Store) (*Migration, error) {
	names, err := store.List()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	migs := make(map[string]*Migration, len(names))
	isParent := make(map[string]bool, len(names))
	for _, n := range names {
		if n == CurrentName {
			continue
		}
		m, err := store.Load(n)
		if err != nil {
			return nil, err
		}
		migs[n] = m
		if !m.IsRoot() {
			isParent[m.Parent] = true
		}
	}

	if len(migs) == 0 {
		return nil, nil
	}

	var heads []string
	for n := range migs {
		if !isParent[n] {
			heads = append(heads, n)
		}
	}
	switch len(heads) {
	case 0:
		return nil, CyclicChainError{Name: names[0]}
	case 1:
		return migs[heads[0]], nil
	default:
		return nil, fmt.Errorf("migrations: chain has multiple heads: %v", heads)
	}
}

// AllMigrations walks parents from latest() and reverses, yielding the
// chain oldest-first (spec §4.5).
func AllMigrations(store Store) ([]*Migration, error) {
	latest, err := Latest(store)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	var chain []*Migration
	seen := make(map[string]bool)
	cur := latest
	for {
		if seen[cur.Name] {
			return nil, CyclicChainError{Name: cur.Name}
		}
		seen[cur.Name] = true
		chain = append(chain, cur)
		if cur.IsRoot() {
			break
		}
		parent, err := store.Load(cur.Parent)
		if err != nil {
			return nil, err
		}
		cur = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// MigrationsSince returns every migration strictly after name in the
// chain, oldest-first; MigrationNotFoundError if name isn't in the chain
// (spec §4.5).
func MigrationsSince(store Store, name string) ([]*Migration, error) {
	all, err := AllMigrations(store)
	if err != nil {
		return nil, err
	}
	for i, m := range all {
		if m.Name == name {
			return all[i+1:], nil
		}
	}
	return nil, MigrationNotFoundError{Name: name}
}
