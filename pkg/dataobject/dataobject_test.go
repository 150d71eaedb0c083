// SPDX-License-Identifier: Apache-2.0

package dataobject_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/backend/sqlite"
	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/dataobject"
	"github.com/butaneorm/butane/pkg/value"
)

// post is a minimal DataObject: an auto-increment PK and one text column.
type post struct {
	ID    int64
	Title string
	saved bool
}

func (p *post) TableName() string { return "Post" }
func (p *post) PKColumn() string  { return "id" }
func (p *post) AutoPK() bool      { return true }
func (p *post) PK() value.SqlVal  { return value.BigInt(p.ID) }
func (p *post) SetPK(v value.SqlVal) { p.ID = v.BigVal }
func (p *post) Columns() []string { return []string{"id", "title"} }
func (p *post) Values() []value.SqlVal {
	return []value.SqlVal{value.BigInt(p.ID), value.Text(p.Title)}
}
func (p *post) FromRow(row conn.Row) error {
	if ref, ok := row["id"]; ok {
		p.ID = ref.ToOwned().BigVal
	}
	if ref, ok := row["title"]; ok && ref.Text != nil {
		p.Title = *ref.Text
	}
	p.saved = true
	return nil
}
func (p *post) IsSaved() bool { return p.saved }
func (p *post) MarkSaved()    { p.saved = true }

// tag is a related DataObject, linked to post many-to-many via
// Post_Tags_Many.
type tag struct {
	ID    int64
	Name  string
	saved bool
}

func (t *tag) TableName() string     { return "Tag" }
func (t *tag) PKColumn() string      { return "id" }
func (t *tag) AutoPK() bool          { return true }
func (t *tag) PK() value.SqlVal      { return value.BigInt(t.ID) }
func (t *tag) SetPK(v value.SqlVal)  { t.ID = v.BigVal }
func (t *tag) Columns() []string     { return []string{"id", "name"} }
func (t *tag) Values() []value.SqlVal {
	return []value.SqlVal{value.BigInt(t.ID), value.Text(t.Name)}
}
func (t *tag) FromRow(row conn.Row) error {
	if ref, ok := row["id"]; ok {
		t.ID = ref.ToOwned().BigVal
	}
	if ref, ok := row["name"]; ok && ref.Text != nil {
		t.Name = *ref.Text
	}
	t.saved = true
	return nil
}
func (t *tag) IsSaved() bool { return t.saved }
func (t *tag) MarkSaved()    { t.saved = true }

func setupSchema(t *testing.T, c *conn.Connection, be backend.Backend) {
	t.Helper()
	toADB := adb.New()
	toADB.Tables["Post"] = &adb.ATable{
		Name: "Post",
		Columns: []adb.AColumn{
			{Name: "id", SqlType: adb.Known(adb.TypeBigInt), IsPK: true, IsAuto: true},
			{Name: "title", SqlType: adb.Known(adb.TypeText)},
		},
	}
	toADB.Tables["Tag"] = &adb.ATable{
		Name: "Tag",
		Columns: []adb.AColumn{
			{Name: "id", SqlType: adb.Known(adb.TypeBigInt), IsPK: true, IsAuto: true},
			{Name: "name", SqlType: adb.Known(adb.TypeText)},
		},
	}
	toADB.Tables[adb.ManyTableName("Post", "Tags")] = adb.NewManyTable(
		"Post", "Tags", adb.Known(adb.TypeBigInt), adb.Known(adb.TypeBigInt))

	ops := adb.Diff(adb.New(), toADB)
	sqlStmt, err := be.CreateMigrationSQL(adb.New(), ops)
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), sqlStmt))
}

// TestSaveInsertsThenUpdates reproduces spec §4.7's save contract: INSERT
// on first save (capturing the auto PK), UPDATE afterward.
func TestSaveInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	be := sqlite.New()
	c, err := conn.Open(ctx, be, ":memory:")
	require.NoError(t, err)
	defer c.Close()
	setupSchema(t, c, be)

	p := &post{Title: "hello"}
	require.NoError(t, dataobject.Save(ctx, c, p))
	assert.NotZero(t, p.ID)

	p.Title = "hello, edited"
	require.NoError(t, dataobject.Save(ctx, c, p))

	got := &post{}
	require.NoError(t, dataobject.Get(ctx, c, got, value.BigInt(p.ID)))
	assert.Equal(t, "hello, edited", got.Title)
}

func TestGetMissingReturnsNoSuchObject(t *testing.T) {
	ctx := context.Background()
	be := sqlite.New()
	c, err := conn.Open(ctx, be, ":memory:")
	require.NoError(t, err)
	defer c.Close()
	setupSchema(t, c, be)

	got := &post{}
	err = dataobject.Get(ctx, c, got, value.BigInt(999))
	assert.IsType(t, dataobject.NoSuchObject{}, err)
}

func TestForeignKeyMustBeLoadedBeforeGet(t *testing.T) {
	fk := dataobject.NewForeignKey(value.BigInt(1), func() *post { return &post{} })
	_, err := fk.Get()
	assert.IsType(t, dataobject.ValueNotLoaded{}, err)
}

// TestManyToManySyncAndLoad reproduces spec §4.7's many-to-many delta sync:
// Add stages a link, Sync persists it, Load reads it back; Remove then
// Sync removes it.
func TestManyToManySyncAndLoad(t *testing.T) {
	ctx := context.Background()
	be := sqlite.New()
	c, err := conn.Open(ctx, be, ":memory:")
	require.NoError(t, err)
	defer c.Close()
	setupSchema(t, c, be)

	p := &post{Title: "post"}
	require.NoError(t, dataobject.Save(ctx, c, p))

	t1 := &tag{Name: "go"}
	require.NoError(t, dataobject.Save(ctx, c, t1))
	t2 := &tag{Name: "sql"}
	require.NoError(t, dataobject.Save(ctx, c, t2))

	m2m := dataobject.NewManyToMany[*tag]("Post", "Tags", p.PK())
	require.NoError(t, m2m.Add(t1))
	require.NoError(t, m2m.Add(t2))
	require.NoError(t, m2m.Sync(ctx, c))

	loaded, err := m2m.Load(ctx, c, func() *tag { return &tag{} }, "Tag", "id")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	m2m.Remove(t1)
	require.NoError(t, m2m.Sync(ctx, c))

	loaded, err = m2m.Load(ctx, c, func() *tag { return &tag{} }, "Tag", "id")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "sql", loaded[0].Name)
}

func TestManyToManyRejectsUnsavedRelated(t *testing.T) {
	m2m := dataobject.NewManyToMany[*tag]("Post", "Tags", value.BigInt(1))
	err := m2m.Add(&tag{Name: "unsaved"})
	assert.IsType(t, dataobject.ValueNotSaved{}, err)
}
