// SPDX-License-Identifier: Apache-2.0

package sqlite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend/sqlite"
)

// TestS1InitialMigration reproduces spec §8 scenario S1: the first
// migration on empty state for model Foo{id: i64 pk, bar: String}.
func TestS1InitialMigration(t *testing.T) {
	b := sqlite.New()

	foo := &adb.ATable{
		Name: "Foo",
		Columns: []adb.AColumn{
			{Name: "id", SqlType: adb.Known(adb.TypeBigInt), IsPK: true},
			{Name: "bar", SqlType: adb.Known(adb.TypeText)},
		},
	}

	current := adb.New()
	ops := adb.Diff(current, func() *adb.ADB {
		n := adb.New()
		n.Tables["Foo"] = foo
		return n
	}())

	marker := &adb.ATable{
		Name: "butane_migrations",
		Columns: []adb.AColumn{
			{Name: "name", SqlType: adb.Known(adb.TypeText), IsPK: true},
		},
	}
	ops = append(ops, adb.AddTableIfNotExists(marker))

	sql, err := b.CreateMigrationSQL(current, ops)
	require.NoError(t, err)
	assert.Contains(t, sql, `CREATE TABLE Foo`)
	assert.Contains(t, sql, `id INTEGER NOT NULL PRIMARY KEY`)
	assert.Contains(t, sql, `bar TEXT NOT NULL`)
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS butane_migrations`)
}

func TestReservedWordQuoting(t *testing.T) {
	col := adb.AColumn{Name: "order", SqlType: adb.Known(adb.TypeInt)}
	b := sqlite.New()
	sqlStr, err := b.ColumnSQL(col)
	require.NoError(t, err)
	assert.Contains(t, sqlStr, `"order"`)
}
