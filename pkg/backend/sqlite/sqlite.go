// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements the SQLite Backend (spec §4.3). It uses
// github.com/ncruces/go-sqlite3, a pure-Go (wazero) SQLite driver, so
// Butane never requires cgo to talk to SQLite — grounded on
// untoldecay/BeadsLog's internal/storage/sqlite package, which drives the
// same driver the same way.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/value"
)

const quoteChar = '"'

// Backend is the SQLite backend.Backend implementation.
type Backend struct{}

var _ backend.Backend = Backend{}

func New() Backend { return Backend{} }

func (Backend) Name() string                               { return backend.NameSQLite }
func (Backend) RowIDColumn() string                         { return "rowid" }
func (Backend) SupportsSubqueries() bool                    { return true }
func (Backend) PlaceholderStyle() backend.PlaceholderStyle { return backend.PlaceholderQuestion }
func (Backend) QuoteChar() byte                             { return quoteChar }

func quote(name string) string { return backend.QuoteIdentifier(name, quoteChar) }

// Connect opens a *sql.DB against connStr using the ncruces/go-sqlite3
// driver. connStr is expected to already be normalized to a "file:" URI or
// ":memory:" by package connstr.
func (Backend) Connect(ctx context.Context, connStr string) (backend.Connector, error) {
	// connStr is passed to the driver unchanged: no _journal_mode
	// parameter is added, so callers that want a particular journal mode
	// (WAL or otherwise) append it to connStr themselves.
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %q: %w", connStr, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: connecting to %q: %w", connStr, err)
	}
	return &conn{db: db}, nil
}

type conn struct{ db *sql.DB }

func (c *conn) Close() error { return c.db.Close() }
func (c *conn) DB() *sql.DB  { return c.db }

// ColumnSQL renders the SQLite column type mapping table from spec §4.3.
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
	if col.Default != nil {
		lit, err := literalSQL(*col.Default)
		if err != nil {
			return "", err
		}
		sb.WriteString(" DEFAULT ")
		sb.WriteString(lit)
	}
	if col.Reference != nil && col.Reference.Resolved {
		sb.WriteString(fmt.Sprintf(" REFERENCES %s(%s)", quote(col.Reference.Table), quote(col.Reference.Column)))
	}
	return sb.String(), nil
}

func sqlTypeName(col adb.AColumn) (string, error) {
	if !col.SqlType.IsResolved() {
		return "", fmt.Errorf("sqlite: column %q has unresolved type", col.Name)
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
		return "TEXT", nil // JSON round-trip or enum-as-text, both stored as TEXT
	default:
		return "", fmt.Errorf("sqlite: unhandled SqlType for column %q", col.Name)
	}
}

// CreateMigrationSQL folds ops onto a working copy of current, emitting
// SQL per the mapping table and the table-copy dance for ChangeColumn
// (spec §4.3). The first migration (current with no tables at all, i.e.
// parent==nil) is handled by the caller appending AddTableIfNotExists for
// butane_migrations, same as every backend.
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
			// SQLite inlines foreign keys in CREATE TABLE; no separate
			// constraint-add step is needed or possible.
		case adb.OpRemoveTable:
			stmts = append(stmts, fmt.Sprintf("DROP TABLE %s;", quote(op.TableName)))
		case adb.OpAddColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", quote(op.OnTable), mustColumnSQL(b, op.Column)))
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

func mustColumnSQL(b Backend, col adb.AColumn) string {
	s, err := b.ColumnSQL(col)
	if err != nil {
		return fmt.Sprintf("/* error: %v */", err)
	}
	return s
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

// changeColumnSQL implements the SQLite table-copy dance (spec §4.3):
// create a temp table with the post-change schema, copy surviving rows,
// drop the original, rename the temp table into place.
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

// literalSQL renders a SqlVal as a DDL literal. DDL cannot be parametrized,
// so every backend inlines DEFAULT literals directly (unlike query
// compilation, where only integers are inlined and everything else is a
// placeholder — spec §4.3 "Literal emission" applies to query values, not
// to DEFAULT clauses).
func literalSQL(v value.SqlVal) (string, error) {
	switch v.Kind {
	case value.KindNull:
		return "NULL", nil
	case value.KindBool:
		if v.BoolVal {
			return "1", nil
		}
		return "0", nil
	case value.KindInt:
		return fmt.Sprintf("%d", v.IntVal), nil
	case value.KindBigInt:
		return fmt.Sprintf("%d", v.BigVal), nil
	case value.KindReal:
		return fmt.Sprintf("%v", v.RealVal), nil
	case value.KindText, value.KindJSON:
		return "'" + strings.ReplaceAll(v.TextVal, "'", "''") + "'", nil
	case value.KindBlob:
		return fmt.Sprintf("X'%x'", v.BlobVal), nil
	case value.KindDate:
		return "'" + v.DateVal.Format("2006-01-02") + "'", nil
	case value.KindTimestamp:
		return "'" + v.TimeVal.Format("2006-01-02 15:04:05.999999999") + "'", nil
	default:
		return "", fmt.Errorf("sqlite: cannot render literal for kind %s", v.Kind)
	}
}
