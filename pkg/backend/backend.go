// SPDX-License-Identifier: Apache-2.0

// Package backend defines the per-backend capability record (spec §4.3,
// §9 "Subtype dispatch across backends") shared by the sqlite, postgres,
// turso, and mysql sub-packages, plus the reserved-word quoting and
// column-type-mapping logic common to all of them.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/butaneorm/butane/pkg/adb"
)

// Names are the fixed backend identifier strings from spec §6.
const (
	NameSQLite   = "sqlite"
	NamePostgres = "pg"
	NameTurso    = "turso"
	NameLibSQL   = "libsql"
	NameMySQL    = "mysql"
)

// Backend is the capability record every backend implements: no deep
// inheritance, just a small vtable (spec §9).
type Backend interface {
	// Name returns one of the fixed backend identifiers above.
	Name() string

	// RowIDColumn returns the implicit row-id column name, if the backend
	// exposes one (e.g. SQLite's rowid), or "" otherwise.
	RowIDColumn() string

	// SupportsSubqueries reports whether WHERE-clause subqueries may be
	// emitted directly, or must be rewritten via the two-phase subquery
	// emulation (spec §4.4).
	SupportsSubqueries() bool

	// PlaceholderStyle controls how the query compiler and SQL generator
	// render bound-parameter placeholders.
	PlaceholderStyle() PlaceholderStyle

	// QuoteChar is the identifier quote character used when an identifier
	// collides with the reserved-word set.
	QuoteChar() byte

	// ColumnSQL renders the column-type portion of a column definition
	// (spec §4.3 "Column type mapping" table), including AUTO PK handling.
	ColumnSQL(col adb.AColumn) (string, error)

	// CreateMigrationSQL folds ops onto a working copy of current, starting
	// from current, and returns the accumulated SQL (spec §4.3).
	CreateMigrationSQL(current *adb.ADB, ops []adb.Operation) (string, error)

	// Connect opens a synchronous connection to connStr.
	Connect(ctx context.Context, connStr string) (Connector, error)
}

// Connector is the minimal handle a Backend.Connect returns; concrete
// connection behavior lives in package conn, which wraps Connector with
// the full ConnectionMethods contract (spec §4.6).
type Connector interface {
	Close() error
}

// PlaceholderStyle controls bound-parameter rendering.
type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota // SQLite/MySQL: ?
	PlaceholderDollar                           // Postgres: $1, $2, ...
)

// Placeholder renders the nth (1-based) placeholder for style.
func Placeholder(style PlaceholderStyle, n int) string {
	if style == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdentifier quotes name with quoteChar if it collides with the
// reserved-word set, and leaves it bare otherwise (spec §9 "Reserved-word
// handling": never quote unconditionally).
func QuoteIdentifier(name string, quoteChar byte) string {
	if !IsReserved(name) {
		return name
	}
	q := string(quoteChar)
	escaped := strings.ReplaceAll(name, q, q+q)
	return q + escaped + q
}

// reservedWords is a static set of SQL keywords shared across backends.
// Not exhaustive of any one dialect's full reserved-word list, but covers
// the common ANSI core plus the words test fixtures are documented to
// exercise (spec §8 property 6, scenario coverage for "reserved-words").
var reservedWords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "table": {}, "column": {},
	"group": {}, "order": {}, "by": {}, "insert": {}, "update": {},
	"delete": {}, "into": {}, "values": {}, "primary": {}, "key": {},
	"foreign": {}, "references": {}, "unique": {}, "not": {}, "null": {},
	"default": {}, "check": {}, "constraint": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "add": {}, "and": {}, "or": {},
	"in": {}, "like": {}, "is": {}, "as": {}, "join": {}, "on": {},
	"limit": {}, "offset": {}, "asc": {}, "desc": {}, "type": {},
	"user": {}, "all": {}, "distinct": {}, "case": {}, "when": {},
	"then": {}, "else": {}, "end": {}, "int": {}, "text": {}, "blob": {},
	"real": {}, "boolean": {}, "date": {}, "timestamp": {}, "json": {},
	"to": {}, "current": {}, "value": {}, "level": {},
	"name": {}, "system": {},
}

// IsReserved reports whether name (case-insensitively) is a reserved word.
func IsReserved(name string) bool {
	_, ok := reservedWords[strings.ToLower(name)]
	return ok
}

// ColumnDefault returns the SQL default literal for col (spec §4.3
// "Default values"). When col.Default is set it returns "" and no error:
// the literal for col.Default is not rendered here. Otherwise it returns
// "NULL" if nullable, else a per-type zero for Bool, Int, BigInt, Real,
// Text, Json and Blob. Timestamp and Date columns have no zero here and
// return an error; Custom columns without a default error as
// NoCustomDefault.
func ColumnDefault(col adb.AColumn) (string, error) {
	if col.Default != nil {
		return "", nil // caller renders the literal via the value encoder
	}
	if col.Nullable {
		return "NULL", nil
	}
	if !col.SqlType.IsResolved() {
		return "", fmt.Errorf("backend: column %q has unresolved type", col.Name)
	}
	switch col.SqlType.ResolvedType() {
	case adb.TypeBool:
		return "0", nil
	case adb.TypeInt, adb.TypeBigInt:
		return "0", nil
	case adb.TypeReal:
		return "0.0", nil
	case adb.TypeText, adb.TypeJSON:
		return "''", nil
	case adb.TypeBlob:
		return "''", nil
	case adb.TypeTimestamp, adb.TypeDate:
		return "", fmt.Errorf("backend: column %q has no implicit default for temporal types", col.Name)
	case adb.TypeCustom:
		return "", adb.NoCustomDefault{Column: col.Name}
	default:
		return "", fmt.Errorf("backend: unhandled SqlType for column %q", col.Name)
	}
}
