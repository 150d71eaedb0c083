// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/butaneorm/butane/pkg/adb"
)

// migrationDoc is the persisted migration JSON structure, exactly per
// spec §6 "Wire formats":
//
//	{
//	  "name": "<name>",
//	  "db": { "tables": {...}, "extra_types": {...} },
//	  "from": "<parent_name> | null",
//	  "up":   { "<backend>": "<sql>", ... },
//	  "down": { "<backend>": "<sql>", ... }
//	}
type migrationDoc struct {
	Name string      `json:"name"`
	DB   migrationDB `json:"db"`
	From *string     `json:"from"`
	Up   map[string]string `json:"up"`
	Down map[string]string `json:"down"`
}

type migrationDB struct {
	Tables     map[string]*adb.ATable               `json:"tables"`
	ExtraTypes map[adb.TypeKey]adb.DeferredSqlType `json:"extra_types"`
}

func toDoc(m *Migration) *migrationDoc {
	doc := &migrationDoc{
		Name: m.Name,
		DB: migrationDB{
			Tables:     m.ADBSnapshot.Tables,
			ExtraTypes: m.ADBSnapshot.ExtraTypes,
		},
		Up:   m.UpSQL,
		Down: m.DownSQL,
	}
	if !m.IsRoot() {
		parent := m.Parent
		doc.From = &parent
	}
	return doc
}

func fromDoc(doc *migrationDoc) *Migration {
	snapshot := adb.New()
	for name, t := range doc.DB.Tables {
		snapshot.Tables[name] = t
	}
	for k, v := range doc.DB.ExtraTypes {
		snapshot.ExtraTypes[k] = v
	}
	parent := ""
	if doc.From != nil {
		parent = *doc.From
	}
	return &Migration{
		Name:        doc.Name,
		Parent:      parent,
		ADBSnapshot: snapshot,
		UpSQL:       doc.Up,
		DownSQL:     doc.Down,
	}
}

func encodeMigration(m *Migration) ([]byte, error) {
	b, err := json.MarshalIndent(toDoc(m), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("migrations: encoding %q: %w", m.Name, err)
	}
	return b, nil
}

func decodeMigration(data []byte) (*Migration, error) {
	var doc migrationDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("migrations: decoding migration: %w", err)
	}
	return fromDoc(&doc), nil
}

// sortedNames returns names sorted for deterministic iteration (used by
// the in-memory store's List, and incidentally useful in tests).
func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
