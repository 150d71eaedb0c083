// SPDX-License-Identifier: Apache-2.0

package conn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend/sqlite"
	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

func openTestConn(t *testing.T) *conn.Connection {
	t.Helper()
	c, err := conn.Open(context.Background(), sqlite.New(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

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

// TestInsertAndQueryRoundTrip reproduces spec §8 property 5: querying and
// deleting with the same filter operate on the same row set.
func TestInsertAndQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openTestConn(t)
	be := sqlite.New()

	ops := adb.Diff(adb.New(), fooADB())
	sql, err := be.CreateMigrationSQL(adb.New(), ops)
	require.NoError(t, err)
	require.NoError(t, c.Execute(ctx, sql))

	pk, err := c.InsertReturningPK(ctx, "Foo", []string{"id", "bar"}, "id",
		[]value.SqlVal{value.BigInt(1), value.Text("hello")})
	require.NoError(t, err)
	assert.True(t, pk.Equal(value.BigInt(1)))

	q := query.New("Foo", []string{"id", "bar"}).Filter(query.Eq("id", query.Val(value.BigInt(1))))
	iter, err := c.Query(ctx, q)
	require.NoError(t, err)
	defer iter.Close()

	row, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", *row["bar"].Text)

	n, err := c.DeleteWhere(ctx, query.New("Foo", nil).Filter(query.Eq("id", query.Val(value.BigInt(1)))))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// TestTransactionRollbackOnClose reproduces spec §8 scenario S5: a dropped
// Active transaction rolls back.
func TestTransactionRollbackOnClose(t *testing.T) {
	ctx := context.Background()
	c := openTestConn(t)
	be := sqlite.New()

	ops := adb.Diff(adb.New(), fooADB())
	sql, err := be.CreateMigrationSQL(adb.New(), ops)
	require.NoError(t, err)
	require.NoError(t, c.Execute(ctx, sql))

	tx, err := c.Transaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOnly(ctx, "Foo", []string{"id", "bar"}, []value.SqlVal{value.BigInt(1), value.Text("x")}))
	require.NoError(t, tx.Close())
	assert.Equal(t, conn.TxRolledBack, tx.State())

	has, err := c.HasTable(ctx, "Foo")
	require.NoError(t, err)
	assert.True(t, has)

	q := query.New("Foo", []string{"id"})
	iter, err := c.Query(ctx, q)
	require.NoError(t, err)
	_, ok, err := iter.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "rolled-back insert must not be visible")
	iter.Close()
}

// TestCommitTerminalState reproduces spec §4.6: calls after Commit fail
// with InternalError.
func TestCommitTerminalState(t *testing.T) {
	ctx := context.Background()
	c := openTestConn(t)
	be := sqlite.New()
	ops := adb.Diff(adb.New(), fooADB())
	sqlStmt, err := be.CreateMigrationSQL(adb.New(), ops)
	require.NoError(t, err)
	require.NoError(t, c.Execute(ctx, sqlStmt))

	tx, err := c.Transaction(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	err = tx.Execute(ctx, "SELECT 1;")
	require.Error(t, err)
	assert.IsType(t, conn.InternalError{}, err)
}
