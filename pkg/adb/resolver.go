// SPDX-License-Identifier: Apache-2.0

package adb

import "strings"

// Resolve runs the type resolver to a fixpoint (spec §4.2):
//  1. populate a mapping PK(table) -> pk.SqlType for every table with a PK
//  2. treat resolved ExtraTypes entries as authoritative
//  3. rewrite each column's Deferred(k) to the resolved identifier
//  4. resolve reference targets to Literal{table, pk_column}
//  5. special-case CustomType names with a mapping-over-string prefix to Json
//
// Resolve mutates a in place and returns an error if any column or
// reference remains unresolved once no further progress is made.
func Resolve(a *ADB) error {
	for {
		changed := false

		resolver := make(map[TypeKey]DeferredSqlType)
		for name, t := range a.Tables {
			if pk := t.PK(); pk != nil && pk.SqlType.IsResolved() {
				resolver[PKKey(name)] = pk.SqlType
			}
		}
		for k, v := range a.ExtraTypes {
			if v.IsResolved() {
				resolver[k] = v
			}
		}

		for _, name := range a.SortedTableNames() {
			t := a.Tables[name]
			for i := range t.Columns {
				col := &t.Columns[i]

				if col.SqlType.Kind == DeferredDeferred {
					if resolved, ok := resolver[col.SqlType.Key]; ok {
						col.SqlType = resolved
						changed = true
					} else if resolved, ok := specialCaseJSON(col.SqlType.Key); ok {
						col.SqlType = resolved
						changed = true
					}
				}

				if col.Reference != nil && !col.Reference.Resolved {
					if resolveRef(a, col.Reference) {
						changed = true
					}
				}
			}
		}

		for k, v := range a.ExtraTypes {
			if v.Kind == DeferredDeferred {
				if resolved, ok := resolver[v.Key]; ok {
					a.ExtraTypes[k] = resolved
					changed = true
				} else if resolved, ok := specialCaseJSON(v.Key); ok {
					a.ExtraTypes[k] = resolved
					changed = true
				}
			}
		}

		if !changed {
			break
		}
	}

	for _, name := range a.SortedTableNames() {
		t := a.Tables[name]
		for _, col := range t.Columns {
			if !col.SqlType.IsResolved() {
				return CannotResolveType{Key: col.SqlType.Key}
			}
			if col.Reference != nil && !col.Reference.Resolved {
				return CannotResolveType{Key: col.Reference.Deferred.Key}
			}
		}
	}
	return nil
}

// resolveRef locates the referenced table's primary key and, if resolved,
// rewrites ref into a Literal. Returns true if it made progress.
func resolveRef(a *ADB, ref *ARef) bool {
	key := ref.Deferred.Key
	if key.Kind != TypeKeyPK {
		return false
	}
	target, ok := a.Tables[key.Name]
	if !ok {
		return false
	}
	pk := target.PK()
	if pk == nil || !pk.SqlType.IsResolved() {
		return false
	}
	*ref = LiteralRef(key.Name, pk.Name)
	return true
}

// specialCaseJSON implements spec §4.2 step 5: any CustomType whose
// textual form begins with the mapping-over-string prefix resolves to
// Json rather than requiring explicit registration.
const mapOverStringPrefix = "Map<String,"

func specialCaseJSON(key TypeKey) (DeferredSqlType, bool) {
	if key.Kind != TypeKeyCustom {
		return DeferredSqlType{}, false
	}
	if strings.HasPrefix(key.Name, mapOverStringPrefix) {
		return Known(TypeJSON), true
	}
	return DeferredSqlType{}, false
}
