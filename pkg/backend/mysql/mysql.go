// SPDX-License-Identifier: Apache-2.0

// Package mysql implements the MySQL Backend only to the extent spec.md
// requires: quoting, AUTO_INCREMENT, and ON DUPLICATE KEY UPDATE
// semantics. The original Rust source's MySQL support is itself partial
// (custom types panic there); this port keeps that scope explicit rather
// than silently extending it — custom-typed columns return
// IncompatibleCustom instead of panicking (spec §7).
package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
)

const quoteChar = '`'

type Backend struct{}

var _ backend.Backend = Backend{}

func New() Backend { return Backend{} }

func (Backend) Name() string                               { return backend.NameMySQL }
func (Backend) RowIDColumn() string                         { return "" }
func (Backend) SupportsSubqueries() bool                    { return true }
func (Backend) PlaceholderStyle() backend.PlaceholderStyle { return backend.PlaceholderQuestion }
func (Backend) QuoteChar() byte                             { return quoteChar }

func quote(name string) string { return backend.QuoteIdentifier(name, quoteChar) }

// IncompatibleCustom is returned wherever a Custom SqlType reaches MySQL
// column generation, since MySQL support in this spec is deliberately
// partial (spec §9 Open Questions).
type IncompatibleCustom struct {
	Column string
}

func (e IncompatibleCustom) Error() string {
	return fmt.Sprintf("mysql: column %q uses a custom type, unsupported by the partial MySQL backend", e.Column)
}

func (Backend) Connect(ctx context.Context, connStr string) (backend.Connector, error) {
	return nil, fmt.Errorf("mysql: connection support is out of scope for this backend; only SQL generation is implemented")
}

// ColumnSQL implements the MySQL column type mapping table from spec §4.3,
// including the PK/unique/FK-widening rule for Text and Blob.
func (b Backend) ColumnSQL(col adb.AColumn) (string, error) {
	if !col.SqlType.IsResolved() {
		return "", fmt.Errorf("mysql: column %q has unresolved type", col.Name)
	}
	if col.SqlType.ResolvedType() == adb.TypeCustom {
		return "", IncompatibleCustom{Column: col.Name}
	}

	var sb strings.Builder
	sb.WriteString(quote(col.Name))
	sb.WriteByte(' ')

	constrained := col.IsPK || col.Unique || col.Reference != nil

	typeSQL, err := sqlTypeName(col, constrained)
	if err != nil {
		return "", err
	}
	sb.WriteString(typeSQL)

	if col.IsPK && col.IsAuto {
		sb.WriteString(" AUTO_INCREMENT")
	}
	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.IsPK {
		sb.WriteString(" PRIMARY KEY")
	}
	if col.Unique && !col.IsPK {
		sb.WriteString(" UNIQUE")
	}
	return sb.String(), nil
}

func sqlTypeName(col adb.AColumn, constrained bool) (string, error) {
	switch col.SqlType.ResolvedType() {
	case adb.TypeBool:
		return "BOOLEAN", nil
	case adb.TypeInt:
		return "INT", nil
	case adb.TypeBigInt:
		return "BIGINT", nil
	case adb.TypeReal:
		return "DOUBLE", nil
	case adb.TypeText:
		if constrained {
			return "VARCHAR(255)", nil
		}
		return "TEXT", nil
	case adb.TypeBlob:
		if constrained {
			return "VARBINARY(255)", nil
		}
		return "BLOB", nil
	case adb.TypeTimestamp:
		return "DATETIME(6)", nil
	case adb.TypeDate:
		return "DATE", nil
	case adb.TypeJSON:
		return "JSON", nil
	default:
		return "", fmt.Errorf("mysql: unhandled SqlType for column %q", col.Name)
	}
}

// UpsertSQL renders the MySQL ON DUPLICATE KEY UPDATE upsert form (spec
// §4.6), updating every column except pkCol. The conn package's
// InsertOrReplace builds its own MySQL statement and does not call it.
func UpsertSQL(table string, cols []string, pkCol string) string {
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	var updates []string
	for i, c := range cols {
		quoted[i] = quote(c)
		placeholders[i] = "?"
		if c != pkCol {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", quote(c), quote(c)))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		quote(table), strings.Join(quoted, ","), strings.Join(placeholders, ","), strings.Join(updates, ","))
}

// CreateMigrationSQL folds ops using ALTER TABLE ... CHANGE COLUMN for
// ChangeColumn, MySQL's native rename+retype syntax.
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
		case adb.OpAddTableConstraints:
			for _, c := range op.Table.Columns {
				if c.Reference != nil && c.Reference.Resolved {
					stmts = append(stmts, fmt.Sprintf(
						"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s);",
						quote(op.Table.Name), quote(fkConstraintName(op.Table.Name, c.Name)),
						quote(c.Name), quote(c.Reference.Table), quote(c.Reference.Column)))
				}
			}
		case adb.OpRemoveTableConstraints:
			for _, c := range op.Table.Columns {
				if c.Reference != nil {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s;",
						quote(op.Table.Name), quote(fkConstraintName(op.Table.Name, c.Name))))
				}
			}
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
			colSQL, err := b.ColumnSQL(op.Column)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s CHANGE COLUMN %s %s;", quote(op.OnTable), quote(op.OldName), colSQL))
		}

		if err := adb.TransformWith(work, op, nil); err != nil {
			return "", err
		}
	}

	return strings.Join(stmts, "\n"), nil
}

func fkConstraintName(table, column string) string {
	return fmt.Sprintf("%s_%s_fk", table, column)
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
