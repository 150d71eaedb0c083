// SPDX-License-Identifier: Apache-2.0

package adb

import "sort"

// Diff computes the ordered Operation list that transforms old into new
// (spec §4.2 "Diff algorithm"). Table and column ordering follow the
// documented tie-breaks: table names alphabetic, column adds in the new
// table's insertion order, changed columns in the intersection's
// alphabetic order.
func Diff(old, newADB *ADB) []Operation {
	var ops []Operation

	names := mergedSortedNames(old, newADB)

	var addedTables []*ATable

	for _, name := range names {
		oldTable, inOld := old.Tables[name]
		newTable, inNew := newADB.Tables[name]

		switch {
		case !inOld && inNew:
			ops = append(ops, AddTable(newTable))
			addedTables = append(addedTables, newTable)
		case inOld && !inNew:
			ops = append(ops, RemoveTableConstraints(oldTable))
			ops = append(ops, RemoveTable(name))
		case inOld && inNew:
			ops = append(ops, diffColumns(name, oldTable, newTable)...)
		}
	}

	for _, t := range addedTables {
		if t.HasReferenceColumn() {
			ops = append(ops, AddTableConstraints(t))
		}
	}

	return ops
}

func mergedSortedNames(a, b *ADB) []string {
	set := make(map[string]struct{})
	for n := range a.Tables {
		set[n] = struct{}{}
	}
	for n := range b.Tables {
		set[n] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func diffColumns(table string, oldTable, newTable *ATable) []Operation {
	var ops []Operation

	oldByName := make(map[string]AColumn, len(oldTable.Columns))
	for _, c := range oldTable.Columns {
		oldByName[c.Name] = c
	}
	newByName := make(map[string]AColumn, len(newTable.Columns))
	for _, c := range newTable.Columns {
		newByName[c.Name] = c
	}

	// Adds: preserve new-table insertion order.
	for _, c := range newTable.Columns {
		if _, ok := oldByName[c.Name]; !ok {
			ops = append(ops, AddColumn(table, c))
		}
	}

	// Removes and changes: intersection's alphabetic order for changes;
	// removes are not order-sensitive relative to each other but are
	// emitted in alphabetic order for determinism.
	var removedNames, changedNames []string
	for name := range oldByName {
		if _, ok := newByName[name]; !ok {
			removedNames = append(removedNames, name)
		}
	}
	for name, oc := range oldByName {
		if nc, ok := newByName[name]; ok && !columnsEqual(oc, nc) {
			changedNames = append(changedNames, name)
		}
	}
	sort.Strings(removedNames)
	sort.Strings(changedNames)

	for _, name := range removedNames {
		ops = append(ops, RemoveColumnOp(table, name))
	}
	for _, name := range changedNames {
		ops = append(ops, ChangeColumn(table, name, newByName[name]))
	}

	return ops
}

func columnsEqual(a, b AColumn) bool {
	if a.Name != b.Name || a.Nullable != b.Nullable || a.IsPK != b.IsPK ||
		a.IsAuto != b.IsAuto || a.Unique != b.Unique {
		return false
	}
	if !a.SqlType.Equal(b.SqlType) {
		return false
	}
	if (a.Default == nil) != (b.Default == nil) {
		return false
	}
	if a.Default != nil && !a.Default.Equal(*b.Default) {
		return false
	}
	if (a.Reference == nil) != (b.Reference == nil) {
		return false
	}
	if a.Reference != nil {
		if a.Reference.Resolved != b.Reference.Resolved {
			return false
		}
		if a.Reference.Resolved {
			if a.Reference.Table != b.Reference.Table || a.Reference.Column != b.Reference.Column {
				return false
			}
		} else if !a.Reference.Deferred.Equal(b.Reference.Deferred) {
			return false
		}
	}
	return true
}
