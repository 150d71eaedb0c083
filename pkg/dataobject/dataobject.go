// SPDX-License-Identifier: Apache-2.0

// Package dataobject implements Butane's DataObject protocol (spec §4.7):
// the save/load/delete/query contract every record type honors, plus
// foreign-key lazy loading and many-to-many link-table synchronization.
package dataobject

import (
	"context"
	"fmt"

	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

// DataObject is the contract a generated model record satisfies (spec
// §4.7): PK column name, PK type, table name, whether the PK is
// auto-generated, an ordered column list, a FromRow decoder, and the
// saved/PK bookkeeping Save needs.
type DataObject interface {
	TableName() string
	PKColumn() string
	AutoPK() bool
	PK() value.SqlVal
	SetPK(value.SqlVal)
	Columns() []string
	Values() []value.SqlVal
	FromRow(row conn.Row) error
	IsSaved() bool
	MarkSaved()
}

// Save implements spec §4.7 "save contract": UPDATE over non-PK columns
// if already saved, otherwise INSERT (capturing the generated PK for
// auto_pk records).
func Save(ctx context.Context, c *conn.Connection, obj DataObject) error {
	if obj.IsSaved() {
		cols, vals := nonPKColumns(obj)
		if len(cols) == 0 {
			return nil
		}
		return c.Update(ctx, obj.TableName(), obj.PKColumn(), obj.PK(), cols, vals)
	}

	cols := obj.Columns()
	vals := obj.Values()
	if obj.AutoPK() {
		cols, vals := nonPKColumns(obj)
		pk, err := c.InsertReturningPK(ctx, obj.TableName(), cols, obj.PKColumn(), vals)
		if err != nil {
			return fmt.Errorf("dataobject: saving %s: %w", obj.TableName(), err)
		}
		obj.SetPK(pk)
	} else if err := c.InsertOnly(ctx, obj.TableName(), cols, vals); err != nil {
		return fmt.Errorf("dataobject: saving %s: %w", obj.TableName(), err)
	}
	obj.MarkSaved()
	return nil
}

// Get implements spec §4.7 "get(conn, pk)": SELECT … WHERE pk = ? LIMIT 1,
// decoding the row via obj.FromRow. Absence yields NoSuchObject.
func Get(ctx context.Context, c *conn.Connection, obj DataObject, pk value.SqlVal) error {
	q := query.New(obj.TableName(), obj.Columns()).
		Filter(query.Eq(obj.PKColumn(), query.Val(pk))).
		WithLimit(1)

	iter, err := c.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("dataobject: getting %s: %w", obj.TableName(), err)
	}
	defer iter.Close()

	row, ok, err := iter.Next(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return NoSuchObject{Table: obj.TableName()}
	}
	return obj.FromRow(row)
}

// Delete removes obj's row by PK.
func Delete(ctx context.Context, c *conn.Connection, obj DataObject) error {
	q := query.New(obj.TableName(), nil).Filter(query.Eq(obj.PKColumn(), query.Val(obj.PK())))
	_, err := c.DeleteWhere(ctx, q)
	return err
}

func nonPKColumns(obj DataObject) ([]string, []value.SqlVal) {
	cols := obj.Columns()
	vals := obj.Values()
	var outCols []string
	var outVals []value.SqlVal
	for i, name := range cols {
		if name == obj.PKColumn() {
			continue
		}
		outCols = append(outCols, name)
		outVals = append(outVals, vals[i])
	}
	return outCols, outVals
}

// sqlValKey renders a SqlVal as a map key, used to track many-to-many
// link-table deltas by related PK without requiring PK types to be
// directly usable as Go map keys.
func sqlValKey(v value.SqlVal) string {
	switch v.Kind {
	case value.KindBigInt:
		return fmt.Sprintf("B:%d", v.BigVal)
	case value.KindInt:
		return fmt.Sprintf("I:%d", v.IntVal)
	case value.KindText:
		return fmt.Sprintf("T:%s", v.TextVal)
	case value.KindBlob:
		return fmt.Sprintf("b:%x", v.BlobVal)
	default:
		return fmt.Sprintf("%s:%v", v.Kind, v)
	}
}
