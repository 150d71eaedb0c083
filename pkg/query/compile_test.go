// SPDX-License-Identifier: Apache-2.0

package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/backend/postgres"
	"github.com/butaneorm/butane/pkg/backend/sqlite"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

// TestS3FilterAndOrder reproduces spec §8 scenario S3: filter + order + limit.
func TestS3FilterAndOrder(t *testing.T) {
	c := query.NewCompiler(sqlite.New())
	q := query.New("Foo", []string{"id", "bar"}).
		Filter(query.Eq("bar", query.Val(value.Text("hello")))).
		OrderAsc("id").
		WithLimit(10)

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, bar FROM Foo WHERE bar = ? ORDER BY id ASC LIMIT 10;`, compiled.SQL)
	require.Len(t, compiled.Args, 1)
	assert.True(t, compiled.Args[0].Equal(value.Text("hello")))
}

func TestDollarPlaceholdersSequential(t *testing.T) {
	c := query.NewCompiler(postgres.New())
	q := query.New("Foo", []string{"id"}).
		Filter(query.And(
			query.Eq("bar", query.Val(value.Text("a"))),
			query.Eq("baz", query.Val(value.Text("b"))),
		))

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT id FROM Foo WHERE (bar = $1 AND baz = $2);`, compiled.SQL)
}

func TestOffsetWithoutLimitSynthesizesLimitOnSQLite(t *testing.T) {
	c := query.NewCompiler(sqlite.New())
	q := query.New("Foo", []string{"id"}).WithOffset(5)

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "LIMIT")
	assert.Contains(t, compiled.SQL, "OFFSET 5")
}

func TestInEmptyIsAlwaysFalse(t *testing.T) {
	c := query.NewCompiler(sqlite.New())
	q := query.New("Foo", []string{"id"}).Filter(query.In("id", nil))

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "1=0")
}
