// SPDX-License-Identifier: Apache-2.0

package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/backend/sqlite"
	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/migrations"
)

func fooADB() *adb.ADB {
	a := adb.New()
	a.Tables["Foo"] = &adb.ATable{
		Name: "Foo",
		Columns: []adb.AColumn{
			{Name: "id", SqlType: adb.Known(adb.TypeBigInt), IsPK: true},
			{Name: "bar", SqlType: adb.Known(adb.TypeText)},
		},
	}
	return a
}

func TestChainWalking(t *testing.T) {
	store := migrations.NewMemStore()
	backends := []backend.Backend{sqlite.New()}

	m1, produced, err := migrations.CreateMigration(backends, "0001_init", nil, fooADB())
	require.NoError(t, err)
	require.True(t, produced)
	require.NoError(t, store.Save(m1))

	child := fooADB()
	def := adb.AColumn{Name: "baz", SqlType: adb.Known(adb.TypeInt)}
	child.Tables["Foo"].AddColumn(def)

	m2, produced, err := migrations.CreateMigration(backends, "0002_add_baz", m1, child)
	require.NoError(t, err)
	require.True(t, produced)
	require.NoError(t, store.Save(m2))

	latest, err := migrations.Latest(store)
	require.NoError(t, err)
	assert.Equal(t, "0002_add_baz", latest.Name)

	all, err := migrations.AllMigrations(store)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "0001_init", all[0].Name)
	assert.Equal(t, "0002_add_baz", all[1].Name)

	since, err := migrations.MigrationsSince(store, "0001_init")
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "0002_add_baz", since[0].Name)

	_, err = migrations.MigrationsSince(store, "nonexistent")
	assert.IsType(t, migrations.MigrationNotFoundError{}, err)
}

func TestNoOpDiffProducesNothing(t *testing.T) {
	backends := []backend.Backend{sqlite.New()}
	a := fooADB()
	m, produced, err := migrations.CreateMigration(backends, "0001_init", nil, a)
	require.NoError(t, err)
	require.True(t, produced)

	_, produced, err = migrations.CreateMigration(backends, "0002_noop", m, a)
	require.NoError(t, err)
	assert.False(t, produced)
}

// TestApplyAndDowngrade reproduces spec §8 property 3: applying a
// migration then downgrading it restores the prior schema.
func TestApplyAndDowngrade(t *testing.T) {
	ctx := context.Background()
	store := migrations.NewMemStore()
	be := sqlite.New()
	backends := []backend.Backend{be}

	c, err := conn.Open(ctx, be, ":memory:")
	require.NoError(t, err)
	defer c.Close()

	m1, _, err := migrations.CreateMigration(backends, "0001_init", nil, fooADB())
	require.NoError(t, err)
	require.NoError(t, store.Save(m1))

	require.NoError(t, migrations.Apply(ctx, c, m1))

	has, err := c.HasTable(ctx, "Foo")
	require.NoError(t, err)
	assert.True(t, has)

	last, err := migrations.LastAppliedMigration(ctx, c, store)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "0001_init", last.Name)

	unapplied, err := migrations.UnappliedMigrations(ctx, c, store)
	require.NoError(t, err)
	assert.Empty(t, unapplied)

	require.NoError(t, migrations.Downgrade(ctx, c, m1))

	has, err = c.HasTable(ctx, "Foo")
	require.NoError(t, err)
	assert.False(t, has)

	last, err = migrations.LastAppliedMigration(ctx, c, store)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestClearMigrations(t *testing.T) {
	ctx := context.Background()
	store := migrations.NewMemStore()
	be := sqlite.New()
	backends := []backend.Backend{be}

	c, err := conn.Open(ctx, be, ":memory:")
	require.NoError(t, err)
	defer c.Close()

	m1, _, err := migrations.CreateMigration(backends, "0001_init", nil, fooADB())
	require.NoError(t, err)
	require.NoError(t, store.Save(m1))
	require.NoError(t, migrations.Apply(ctx, c, m1))

	require.NoError(t, migrations.ClearMigrations(ctx, c, store))

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	has, err := c.HasTable(ctx, "Foo")
	require.NoError(t, err)
	assert.True(t, has, "clear_migrations must not alter schema")
}
