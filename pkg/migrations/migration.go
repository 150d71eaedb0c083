// SPDX-License-Identifier: Apache-2.0

// Package migrations implements Butane's migration chain, persistence
// contract, and apply/downgrade lifecycle, built around Butane's
// diff-based Operation model.
package migrations

import (
	"github.com/butaneorm/butane/pkg/adb"
)

// MarkerTableName is the applied-marker table name from spec §3/§6.
const MarkerTableName = "butane_migrations"

// MarkerTable returns the ATable definition of the applied-marker table.
func MarkerTable() *adb.ATable {
	return &adb.ATable{
		Name: MarkerTableName,
		Columns: []adb.AColumn{
			{Name: "name", SqlType: adb.Known(adb.TypeText), IsPK: true},
		},
	}
}

// CurrentName is the name of the pseudo-migration representing the
// in-progress schema being authored; it never appears in Latest,
// AllMigrations, or MigrationsSince (spec §3).
const CurrentName = "current"

// Migration is a named, parent-linked schema change with a snapshot of the
// post-state ADB and per-backend up/down SQL.
type Migration struct {
	Name         string
	Parent       string // "" for the root migration
	ADBSnapshot  *adb.ADB
	UpSQL        map[string]string
	DownSQL      map[string]string
}

// IsRoot reports whether m has no parent.
func (m *Migration) IsRoot() bool { return m.Parent == "" }
