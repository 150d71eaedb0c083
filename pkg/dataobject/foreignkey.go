// SPDX-License-Identifier: Apache-2.0

package dataobject

import (
	"context"

	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/value"
)

// ForeignKey holds a reference to another DataObject by primary key,
// loading the target row lazily and caching it once loaded (spec §4.7
// "foreign key fields hold the PK until load() is called; load() caches
// the result on the field").
type ForeignKey[T DataObject] struct {
	pk     value.SqlVal
	target T
	loaded bool
	newT   func() T
}

// NewForeignKey wraps a known related PK. newT must construct a zero-value
// T ready to receive FromRow.
func NewForeignKey[T DataObject](pk value.SqlVal, newT func() T) *ForeignKey[T] {
	return &ForeignKey[T]{pk: pk, newT: newT}
}

// FromLoaded wraps an already-fetched related record, so a freshly
// constructed owner whose related row the caller already has in hand
// doesn't need a redundant round trip.
func FromLoaded[T DataObject](target T) *ForeignKey[T] {
	return &ForeignKey[T]{pk: target.PK(), target: target, loaded: true}
}

// PK returns the referenced primary key without requiring a load.
func (fk *ForeignKey[T]) PK() value.SqlVal { return fk.pk }

// Loaded reports whether Get will succeed without error.
func (fk *ForeignKey[T]) Loaded() bool { return fk.loaded }

// Load fetches and caches the referenced row if it has not been loaded yet.
func (fk *ForeignKey[T]) Load(ctx context.Context, c *conn.Connection) error {
	if fk.loaded {
		return nil
	}
	t := fk.newT()
	if err := Get(ctx, c, t, fk.pk); err != nil {
		return err
	}
	fk.target = t
	fk.loaded = true
	return nil
}

// Get returns the cached related record, or ValueNotLoaded if Load has
// not been called.
func (fk *ForeignKey[T]) Get() (T, error) {
	var zero T
	if !fk.loaded {
		return zero, ValueNotLoaded{}
	}
	return fk.target, nil
}

// Set replaces the reference, pointing it at an already-saved related
// record and marking it loaded immediately.
func (fk *ForeignKey[T]) Set(target T) error {
	if !target.IsSaved() {
		return ValueNotSaved{Table: target.TableName()}
	}
	fk.pk = target.PK()
	fk.target = target
	fk.loaded = true
	return nil
}
