// SPDX-License-Identifier: Apache-2.0

package adb

import "fmt"

// OpKind discriminates the ordering-relevant Operation variants.
// Operation is a closed set rather than an interface: the SQL generator
// needs to type-switch over the whole set to fold them, and Butane
// operations carry no per-backend Start/Complete/Rollback behavior of
// their own.
type OpKind int

const (
	OpAddTable OpKind = iota
	OpAddTableIfNotExists
	OpAddTableConstraints
	OpRemoveTable
	OpRemoveTableConstraints
	OpAddColumn
	OpRemoveColumn
	OpChangeColumn
)

// Operation is one schema-change step, ordering-relevant within a
// migration's Operation list.
type Operation struct {
	Kind OpKind

	// OpAddTable / OpAddTableIfNotExists / OpAddTableConstraints / OpRemoveTableConstraints
	Table *ATable

	// OpRemoveTable
	TableName string

	// OpAddColumn / OpRemoveColumn / OpChangeColumn
	OnTable string
	Column  AColumn // AddColumn, ChangeColumn.New
	OldName string  // RemoveColumn, ChangeColumn.Old name
}

func AddTable(t *ATable) Operation             { return Operation{Kind: OpAddTable, Table: t} }
func AddTableIfNotExists(t *ATable) Operation  { return Operation{Kind: OpAddTableIfNotExists, Table: t} }
func AddTableConstraints(t *ATable) Operation  { return Operation{Kind: OpAddTableConstraints, Table: t} }
func RemoveTable(name string) Operation        { return Operation{Kind: OpRemoveTable, TableName: name} }
func RemoveTableConstraints(t *ATable) Operation {
	return Operation{Kind: OpRemoveTableConstraints, Table: t}
}
func AddColumn(table string, col AColumn) Operation {
	return Operation{Kind: OpAddColumn, OnTable: table, Column: col}
}
func RemoveColumnOp(table, name string) Operation {
	return Operation{Kind: OpRemoveColumn, OnTable: table, OldName: name}
}
func ChangeColumn(table, oldName string, newCol AColumn) Operation {
	return Operation{Kind: OpChangeColumn, OnTable: table, OldName: oldName, Column: newCol}
}

// TransformWith applies op to a, mutating it in place (spec §4.2
// "Applying an Operation to an ADB"). warn receives a message for the
// tolerated missing-table cases on ChangeColumn/RemoveColumn (spec §7);
// it may be nil.
func TransformWith(a *ADB, op Operation, warn func(string)) error {
	switch op.Kind {
	case OpAddTable, OpAddTableIfNotExists:
		a.Tables[op.Table.Name] = op.Table.Clone()
	case OpAddTableConstraints, OpRemoveTableConstraints:
		// no structural change; these only drive SQL emission.
	case OpRemoveTable:
		delete(a.Tables, op.TableName)
	case OpAddColumn:
		t, ok := a.Tables[op.OnTable]
		if !ok {
			return TableNotFoundError{Table: op.OnTable}
		}
		t.AddColumn(op.Column)
	case OpRemoveColumn:
		t, ok := a.Tables[op.OnTable]
		if !ok {
			if warn != nil {
				warn(fmt.Sprintf("RemoveColumn: table %q does not exist, skipping", op.OnTable))
			}
			return nil
		}
		t.RemoveColumn(op.OldName)
	case OpChangeColumn:
		t, ok := a.Tables[op.OnTable]
		if !ok {
			if warn != nil {
				warn(fmt.Sprintf("ChangeColumn: table %q does not exist, skipping", op.OnTable))
			}
			return nil
		}
		t.ReplaceColumn(op.OldName, op.Column)
	default:
		return fmt.Errorf("adb: unknown operation kind %d", op.Kind)
	}
	return nil
}

// Apply folds a whole Operation list into a, in order.
func Apply(a *ADB, ops []Operation, warn func(string)) error {
	for _, op := range ops {
		if err := TransformWith(a, op, warn); err != nil {
			return err
		}
	}
	return nil
}
