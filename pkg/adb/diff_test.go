// SPDX-License-Identifier: Apache-2.0

package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/value"
)

func fooTable() *ATable {
	return &ATable{
		Name: "Foo",
		Columns: []AColumn{
			{Name: "id", SqlType: Known(TypeBigInt), IsPK: true, IsAuto: true},
			{Name: "bar", SqlType: Known(TypeText)},
		},
	}
}

func TestDiffAddTable(t *testing.T) {
	old := New()
	newDB := New()
	newDB.Tables["Foo"] = fooTable()

	ops := Diff(old, newDB)
	require.Len(t, ops, 1)
	assert.Equal(t, OpAddTable, ops[0].Kind)
	assert.Equal(t, "Foo", ops[0].Table.Name)
}

func TestDiffAddColumnWithDefault(t *testing.T) {
	old := New()
	old.Tables["Foo"] = fooTable()

	newDB := New()
	foo := fooTable()
	def := value.Int(42)
	foo.AddColumn(AColumn{Name: "baz", SqlType: Known(TypeBigInt), Default: &def})
	newDB.Tables["Foo"] = foo

	ops := Diff(old, newDB)
	require.Len(t, ops, 1)
	assert.Equal(t, OpAddColumn, ops[0].Kind)
	assert.Equal(t, "baz", ops[0].Column.Name)
}

func TestApplyTransformRoundTrip(t *testing.T) {
	old := New()
	newDB := New()
	newDB.Tables["Foo"] = fooTable()

	ops := Diff(old, newDB)
	got := old.Clone()
	require.NoError(t, Apply(got, ops, nil))

	assert.Equal(t, len(newDB.Tables), len(got.Tables))
	assert.ElementsMatch(t, newDB.Tables["Foo"].Columns, got.Tables["Foo"].Columns)
}

func TestConstraintOrdering(t *testing.T) {
	old := New()
	newDB := New()
	author := &ATable{
		Name: "Author",
		Columns: []AColumn{
			{Name: "id", SqlType: Known(TypeBigInt), IsPK: true, IsAuto: true},
		},
	}
	ref := LiteralRef("Author", "id")
	post := &ATable{
		Name: "Post",
		Columns: []AColumn{
			{Name: "id", SqlType: Known(TypeBigInt), IsPK: true, IsAuto: true},
			{Name: "author", SqlType: Known(TypeBigInt), Reference: &ref},
		},
	}
	newDB.Tables["Author"] = author
	newDB.Tables["Post"] = post

	ops := Diff(old, newDB)

	addIdx := map[string]int{}
	constraintIdx := map[string]int{}
	for i, op := range ops {
		switch op.Kind {
		case OpAddTable:
			addIdx[op.Table.Name] = i
		case OpAddTableConstraints:
			constraintIdx[op.Table.Name] = i
		}
	}
	require.Contains(t, constraintIdx, "Post")
	assert.Greater(t, constraintIdx["Post"], addIdx["Post"])
	assert.Greater(t, constraintIdx["Post"], addIdx["Author"])
}

func TestResolveDeferredReference(t *testing.T) {
	a := New()
	a.Tables["Author"] = &ATable{
		Name: "Author",
		Columns: []AColumn{
			{Name: "id", SqlType: Known(TypeBigInt), IsPK: true, IsAuto: true},
		},
	}
	ref := DeferredRef(Deferred(PKKey("Author")))
	a.Tables["Post"] = &ATable{
		Name: "Post",
		Columns: []AColumn{
			{Name: "id", SqlType: Known(TypeBigInt), IsPK: true, IsAuto: true},
			{Name: "author", SqlType: Deferred(PKKey("Author")), Reference: &ref},
		},
	}

	require.NoError(t, Resolve(a))

	col := a.Tables["Post"].Column("author")
	require.True(t, col.SqlType.IsResolved())
	assert.Equal(t, TypeBigInt, col.SqlType.ResolvedType())
	require.True(t, col.Reference.Resolved)
	assert.Equal(t, "Author", col.Reference.Table)
	assert.Equal(t, "id", col.Reference.Column)
}

func TestResolveUnresolvableFails(t *testing.T) {
	a := New()
	a.Tables["Foo"] = &ATable{
		Name: "Foo",
		Columns: []AColumn{
			{Name: "x", SqlType: Deferred(CustomKey("Nope"))},
		},
	}
	err := Resolve(a)
	require.Error(t, err)
	var cre CannotResolveType
	require.ErrorAs(t, err, &cre)
}

func TestResolveJSONSpecialCase(t *testing.T) {
	a := New()
	a.Tables["Foo"] = &ATable{
		Name: "Foo",
		Columns: []AColumn{
			{Name: "tags", SqlType: Deferred(CustomKey("Map<String,String>"))},
		},
	}
	require.NoError(t, Resolve(a))
	assert.Equal(t, TypeJSON, a.Tables["Foo"].Column("tags").SqlType.ResolvedType())
}
