// SPDX-License-Identifier: Apache-2.0

// Package turso implements the Turso/libSQL Backend (spec §4.3). It shares
// SQLite's SQL dialect (libSQL is SQLite-wire-compatible) but connects via
// github.com/tursodatabase/libsql-client-go, the remote/embedded-replica
// client referenced by the lockplane manifest in the retrieval pack, since
// it is a genuinely different wire protocol from the local ncruces driver
// used by package sqlite.
package turso

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
)

// Backend is the Turso/libSQL backend.Backend implementation. name
// distinguishes "turso" (embedded replica / turso: URIs) from "libsql"
// (pure remote libsql://, libsql+http:// URIs) per spec §6; both share
// identical SQL generation and capability flags.
type Backend struct {
	name string
}

var _ backend.Backend = Backend{}

func NewTurso() Backend { return Backend{name: backend.NameTurso} }
func NewLibSQL() Backend { return Backend{name: backend.NameLibSQL} }

func (b Backend) Name() string { return b.name }

// RowIDColumn returns "" — unlike the local ncruces SQLite backend, the
// libsql client does not surface an implicit rowid in a way Butane can
// reliably depend on over the wire protocol.
func (Backend) RowIDColumn() string { return "" }

// SupportsSubqueries is false: Turso's remote/embedded-replica protocol
// does not support in-WHERE subqueries reliably across replica staleness
// windows, so the query compiler must run the two-phase subquery rewrite
// (spec §4.4) for this backend.
func (Backend) SupportsSubqueries() bool { return false }

func (Backend) PlaceholderStyle() backend.PlaceholderStyle { return backend.PlaceholderQuestion }
func (Backend) QuoteChar() byte                             { return '"' }

func quote(name string) string { return backend.QuoteIdentifier(name, '"') }

func (b Backend) Connect(ctx context.Context, connStr string) (backend.Connector, error) {
	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("%s: opening %q: %w", b.name, connStr, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: connecting: %w", b.name, err)
	}
	return &conn{db: db}, nil
}

type conn struct{ db *sql.DB }

func (c *conn) Close() error { return c.db.Close() }
func (c *conn) DB() *sql.DB  { return c.db }

// ColumnSQL reuses SQLite's column-type mapping: libSQL is
// wire-compatible with SQLite's type affinity system.
func (b Backend) ColumnSQL(col adb.AColumn) (string, error) {
	var sb strings.Builder
	sb.WriteString(quote(col.Name))
	sb.WriteByte(' ')

	if col.IsPK && col.IsAuto {
		sb.WriteString("INTEGER PRIMARY KEY")
		return sb.String(), nil
	}

	typeSQL, err := sqlTypeName(col)
	if err != nil {
		return "", err
	}
	sb.WriteString(typeSQL)

	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.IsPK {
		sb.WriteString(" PRIMARY KEY")
	}
	if col.Unique && !col.IsPK {
		sb.WriteString(" UNIQUE")
	}
	if col.Reference != nil && col.Reference.Resolved {
		sb.WriteString(fmt.Sprintf(" REFERENCES %s(%s)", quote(col.Reference.Table), quote(col.Reference.Column)))
	}
	return sb.String(), nil
}

func sqlTypeName(col adb.AColumn) (string, error) {
	if !col.SqlType.IsResolved() {
		return "", fmt.Errorf("%s: column %q has unresolved type", backend.NameTurso, col.Name)
	}
	switch col.SqlType.ResolvedType() {
	case adb.TypeBool, adb.TypeInt, adb.TypeBigInt:
		return "INTEGER", nil
	case adb.TypeReal:
		return "REAL", nil
	case adb.TypeText, adb.TypeTimestamp, adb.TypeDate, adb.TypeJSON:
		return "TEXT", nil
	case adb.TypeBlob:
		return "BLOB", nil
	case adb.TypeCustom:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("%s: unhandled SqlType for column %q", backend.NameTurso, col.Name)
	}
}

// CreateMigrationSQL uses the same table-copy-for-ChangeColumn strategy as
// package sqlite (libSQL inherited SQLite's lack of full ALTER TABLE
// support as of the spec's target release).
func (b Backend) CreateMigrationSQL(current *adb.ADB, ops []adb.Operation) (string, error) {
	work := current.Clone()
	var stmts []string

	for _, op := range ops {
		switch op.Kind {
		case adb.OpAddTable, adb.OpAddTableIfNotExists:
			stmt, err := b.createTableSQL(op.Table, op.Kind == adb.OpAddTableIfNotExists)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, stmt)
		case adb.OpAddTableConstraints, adb.OpRemoveTableConstraints:
			// inlined in CREATE TABLE, same as sqlite.
		case adb.OpRemoveTable:
			stmts = append(stmts, fmt.Sprintf("DROP TABLE %s;", quote(op.TableName)))
		case adb.OpAddColumn:
			colSQL, err := b.ColumnSQL(op.Column)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", quote(op.OnTable), colSQL))
		case adb.OpRemoveColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", quote(op.OnTable), quote(op.OldName)))
		case adb.OpChangeColumn:
			stmt, err := b.changeColumnSQL(work, op)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, stmt)
		}

		if err := adb.TransformWith(work, op, nil); err != nil {
			return "", err
		}
	}

	return strings.Join(stmts, "\n"), nil
}

func (b Backend) createTableSQL(t *adb.ATable, ifNotExists bool) (string, error) {
	var cols []string
	for _, c := range t.Columns {
		s, err := b.ColumnSQL(c)
		if err != nil {
			return "", err
		}
		cols = append(cols, s)
	}
	ine := ""
	if ifNotExists {
		ine = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (%s);", ine, quote(t.Name), strings.Join(cols, ",")), nil
}

func (b Backend) changeColumnSQL(work *adb.ADB, op adb.Operation) (string, error) {
	oldTable, ok := work.Tables[op.OnTable]
	if !ok {
		return "", adb.TableNotFoundError{Table: op.OnTable}
	}
	newTable := oldTable.Clone()
	newTable.ReplaceColumn(op.OldName, op.Column)

	colNames := make([]string, len(newTable.Columns))
	for i, c := range newTable.Columns {
		colNames[i] = c.Name
	}
	tmpName := backend.TemporaryTableName(op.OnTable, colNames)
	tmpTable := newTable.Clone()
	tmpTable.Name = tmpName

	var sb strings.Builder
	createStmt, err := b.createTableSQL(tmpTable, false)
	if err != nil {
		return "", err
	}
	sb.WriteString(createStmt)
	sb.WriteByte('\n')

	var insertCols, selectCols []string
	for _, c := range newTable.Columns {
		insertCols = append(insertCols, quote(c.Name))
		srcName := c.Name
		if c.Name == op.Column.Name && op.OldName != op.Column.Name {
			srcName = op.OldName
		}
		selectCols = append(selectCols, quote(srcName))
	}
	sb.WriteString(fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;\n",
		quote(tmpName), strings.Join(insertCols, ","), strings.Join(selectCols, ","), quote(op.OnTable)))
	sb.WriteString(fmt.Sprintf("DROP TABLE %s;\n", quote(op.OnTable)))
	sb.WriteString(fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", quote(tmpName), quote(op.OnTable)))

	return sb.String(), nil
}
