// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend/postgres"
	"github.com/butaneorm/butane/pkg/value"
)

func fooTable() *adb.ATable {
	return &adb.ATable{
		Name: "Foo",
		Columns: []adb.AColumn{
			{Name: "id", SqlType: adb.Known(adb.TypeBigInt), IsPK: true},
			{Name: "bar", SqlType: adb.Known(adb.TypeText)},
		},
	}
}

// TestS2AddFieldWithDefault reproduces spec §8 scenario S2: add a field
// with a default to a table that already exists (parent is S1).
func TestS2AddFieldWithDefault(t *testing.T) {
	b := postgres.New()

	parent := adb.New()
	parent.Tables["Foo"] = fooTable()

	child := adb.New()
	foo := fooTable()
	def := value.BigInt(42)
	foo.AddColumn(adb.AColumn{Name: "baz", SqlType: adb.Known(adb.TypeBigInt), Default: &def})
	child.Tables["Foo"] = foo

	upOps := adb.Diff(parent, child)
	upSQL, err := b.CreateMigrationSQL(parent, upOps)
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE Foo ADD COLUMN baz BIGINT NOT NULL DEFAULT 42;`, upSQL)

	downOps := adb.Diff(child, parent)
	downSQL, err := b.CreateMigrationSQL(child, downOps)
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE Foo DROP COLUMN baz;`, downSQL)
}
