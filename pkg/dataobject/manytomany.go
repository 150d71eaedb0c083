// SPDX-License-Identifier: Apache-2.0

package dataobject

import (
	"context"
	"fmt"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

// ManyToMany tracks one owner's membership in a many-to-many link table
// (spec §4.7 "many-to-many fields track pending additions/removals against
// the last-synced set; Sync applies the delta"). It holds no related rows
// itself; Load fetches them on demand from the related table.
type ManyToMany[T DataObject] struct {
	linkTable string
	ownerPK   value.SqlVal

	lastSynced    map[string]value.SqlVal
	pendingAdd    map[string]value.SqlVal
	pendingRemove map[string]bool
}

// NewManyToMany constructs the tracker for ownerTable's field, keyed by
// ownerPK. The link table name follows the "<table>_<field>_Many"
// convention (adb.ManyTableName) with fixed "owner"/"has" columns.
func NewManyToMany[T DataObject](ownerTable, field string, ownerPK value.SqlVal) *ManyToMany[T] {
	return &ManyToMany[T]{
		linkTable:     adb.ManyTableName(ownerTable, field),
		ownerPK:       ownerPK,
		lastSynced:    make(map[string]value.SqlVal),
		pendingAdd:    make(map[string]value.SqlVal),
		pendingRemove: make(map[string]bool),
	}
}

// LinkTable returns the underlying link table name, for callers building
// SubqueryJoin filters (spec §4.4 many-to-many containment).
func (m *ManyToMany[T]) LinkTable() string { return m.linkTable }

// Add stages related for linking to the owner. related must already be
// saved, since the link table stores its PK.
func (m *ManyToMany[T]) Add(related T) error {
	if !related.IsSaved() {
		return ValueNotSaved{Table: related.TableName()}
	}
	pk := related.PK()
	key := sqlValKey(pk)
	delete(m.pendingRemove, key)
	if _, already := m.lastSynced[key]; !already {
		m.pendingAdd[key] = pk
	}
	return nil
}

// Remove stages related for unlinking from the owner.
func (m *ManyToMany[T]) Remove(related T) {
	key := sqlValKey(related.PK())
	delete(m.pendingAdd, key)
	if _, synced := m.lastSynced[key]; synced {
		m.pendingRemove[key] = true
	}
}

// Sync applies staged additions and removals to the link table: additions
// via INSERT OR REPLACE, removals via DELETE WHERE owner = pk AND has IN
// (removed) (spec §4.7). Call this as part of the owner's Save.
func (m *ManyToMany[T]) Sync(ctx context.Context, c *conn.Connection) error {
	for key, pk := range m.pendingAdd {
		if err := c.InsertOrReplace(ctx, m.linkTable, []string{"owner", "has"}, "has", []value.SqlVal{m.ownerPK, pk}); err != nil {
			return fmt.Errorf("dataobject: linking into %q: %w", m.linkTable, err)
		}
		m.lastSynced[key] = pk
	}
	m.pendingAdd = make(map[string]value.SqlVal)

	if len(m.pendingRemove) > 0 {
		removed := make([]value.SqlVal, 0, len(m.pendingRemove))
		for key := range m.pendingRemove {
			if pk, ok := m.lastSynced[key]; ok {
				removed = append(removed, pk)
				delete(m.lastSynced, key)
			}
		}
		if len(removed) > 0 {
			q := query.New(m.linkTable, nil).Filter(query.And(
				query.Eq("owner", query.Val(m.ownerPK)),
				query.In("has", removed),
			))
			if _, err := c.DeleteWhere(ctx, q); err != nil {
				return fmt.Errorf("dataobject: unlinking from %q: %w", m.linkTable, err)
			}
		}
	}
	m.pendingRemove = make(map[string]bool)
	return nil
}

// Load fetches the related rows currently linked to the owner: first the
// related PKs from the link table, then the matching rows from
// relatedTable, keyed by relatedPKCol. newT constructs a zero-value T per
// row before FromRow decodes it.
func (m *ManyToMany[T]) Load(ctx context.Context, c *conn.Connection, newT func() T, relatedTable, relatedPKCol string) ([]T, error) {
	return m.load(ctx, c, newT, relatedTable, relatedPKCol, nil)
}

// LoadOrdered is Load with the related rows returned in relatedPKCol's
// dir order (spec §4.7 "ordered many-to-many load").
func (m *ManyToMany[T]) LoadOrdered(ctx context.Context, c *conn.Connection, newT func() T, relatedTable, relatedPKCol string, dir query.Direction) ([]T, error) {
	return m.load(ctx, c, newT, relatedTable, relatedPKCol, &dir)
}

func (m *ManyToMany[T]) load(ctx context.Context, c *conn.Connection, newT func() T, relatedTable, relatedPKCol string, dir *query.Direction) ([]T, error) {
	linkQ := query.New(m.linkTable, []string{"has"}).Filter(query.Eq("owner", query.Val(m.ownerPK)))
	iter, err := c.Query(ctx, linkQ)
	if err != nil {
		return nil, fmt.Errorf("dataobject: reading links from %q: %w", m.linkTable, err)
	}
	var relatedPKs []value.SqlVal
	for {
		row, ok, err := iter.Next(ctx)
		if err != nil {
			iter.Close()
			return nil, err
		}
		if !ok {
			break
		}
		if ref, ok := row["has"]; ok {
			relatedPKs = append(relatedPKs, ref.ToOwned())
		}
	}
	iter.Close()

	if len(relatedPKs) == 0 {
		return nil, nil
	}

	relatedQ := query.New(relatedTable, newT().Columns()).Filter(query.In(relatedPKCol, relatedPKs))
	if dir != nil {
		if *dir == query.Asc {
			relatedQ.OrderAsc(relatedPKCol)
		} else {
			relatedQ.OrderDesc(relatedPKCol)
		}
	}

	iter, err = c.Query(ctx, relatedQ)
	if err != nil {
		return nil, fmt.Errorf("dataobject: reading related rows from %q: %w", relatedTable, err)
	}
	defer iter.Close()

	var out []T
	for {
		row, ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t := newT()
		if err := t.FromRow(row); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
