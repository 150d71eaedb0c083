// SPDX-License-Identifier: Apache-2.0

// Package postgres implements the Postgres backend using
// github.com/lib/pq for connection handling and error-code inspection.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/value"
)

// LockNotAvailableErrorCode is the Postgres lock_not_available error code
// raised on lock_timeout. pkg/conn's retry wrapper matches the same code
// through its own lockNotAvailable constant.
const LockNotAvailableErrorCode pq.ErrorCode = "55P03"

type Backend struct{}

var _ backend.Backend = Backend{}

func New() Backend { return Backend{} }

func (Backend) Name() string                               { return backend.NamePostgres }
func (Backend) RowIDColumn() string                         { return "" }
func (Backend) SupportsSubqueries() bool                    { return true }
func (Backend) PlaceholderStyle() backend.PlaceholderStyle { return backend.PlaceholderDollar }
func (Backend) QuoteChar() byte                             { return '"' }

func quote(name string) string { return backend.QuoteIdentifier(name, '"') }

func (Backend) Connect(ctx context.Context, connStr string) (backend.Connector, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening %q: %w", connStr, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	return &conn{db: db}, nil
}

type conn struct{ db *sql.DB }

func (c *conn) Close() error { return c.db.Close() }
func (c *conn) DB() *sql.DB  { return c.db }

// ColumnSQL renders the Postgres column type mapping table from spec §4.3.
func (b Backend) ColumnSQL(col adb.AColumn) (string, error) {
	var sb strings.Builder
	sb.WriteString(quote(col.Name))
	sb.WriteByte(' ')

	if col.IsPK && col.IsAuto {
		typeSQL, err := sqlTypeName(col)
		if err != nil {
			return "", err
		}
		if typeSQL == "BIGINT" {
			sb.WriteString("BIGSERIAL")
		} else {
			sb.WriteString("SERIAL")
		}
		sb.WriteString(" PRIMARY KEY")
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
		return "", fmt.Errorf("postgres: column %q has unresolved type", col.Name)
	}
	switch col.SqlType.ResolvedType() {
	case adb.TypeBool:
		return "BOOLEAN", nil
	case adb.TypeInt:
		return "INTEGER", nil
	case adb.TypeBigInt:
		return "BIGINT", nil
	case adb.TypeReal:
		return "DOUBLE PRECISION", nil
	case adb.TypeText:
		return "TEXT", nil
	case adb.TypeBlob:
		return "BYTEA", nil
	case adb.TypeTimestamp:
		return "TIMESTAMP", nil
	case adb.TypeDate:
		return "DATE", nil
	case adb.TypeJSON:
		return "JSONB", nil
	case adb.TypeCustom:
		return "JSONB", nil
	default:
		return "", fmt.Errorf("postgres: unhandled SqlType for column %q", col.Name)
	}
}

// CreateMigrationSQL folds ops onto a working copy of current (spec §4.3).
// Postgres expresses ChangeColumn with ALTER TABLE ... ALTER COLUMN ... and
// ADD/DROP for constraint deltas, never the SQLite table-copy dance.
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
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;",
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
			changeStmts, err := b.changeColumnSQL(work, op)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, changeStmts...)
		}

		if err := adb.TransformWith(work, op, nil); err != nil {
			return "", err
		}
	}

	return strings.Join(stmts, "\n"), nil
}

func fkConstraintName(table, column string) string {
	return fmt.Sprintf("%s_%s_fkey", table, column)
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

// changeColumnSQL renders the column-change strategy for Postgres: a
// sequence of ALTER TABLE ... ALTER COLUMN statements (type, nullability,
// default) plus ADD/DROP for PK toggling (spec §8 property 7: toggling PK
// emits a DROP-then-ADD pair on Postgres).
func (b Backend) changeColumnSQL(work *adb.ADB, op adb.Operation) ([]string, error) {
	t, ok := work.Tables[op.OnTable]
	if !ok {
		return nil, adb.TableNotFoundError{Table: op.OnTable}
	}
	oldCol := t.Column(op.OldName)
	if oldCol == nil {
		return nil, adb.TableNotFoundError{Table: op.OnTable}
	}
	newCol := op.Column

	var stmts []string
	table := quote(op.OnTable)

	if oldCol.Name != newCol.Name {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", table, quote(oldCol.Name), quote(newCol.Name)))
	}

	if !oldCol.SqlType.Equal(newCol.SqlType) {
		typeSQL, err := sqlTypeName(newCol)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;",
			table, quote(newCol.Name), typeSQL, quote(newCol.Name), typeSQL))
	}

	if oldCol.Nullable != newCol.Nullable {
		if newCol.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", table, quote(newCol.Name)))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", table, quote(newCol.Name)))
		}
	}

	defaultChanged := (oldCol.Default == nil) != (newCol.Default == nil) ||
		(oldCol.Default != nil && newCol.Default != nil && !oldCol.Default.Equal(*newCol.Default))
	if defaultChanged {
		if newCol.Default == nil {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, quote(newCol.Name)))
		} else {
			lit, err := literalSQL(*newCol.Default)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, quote(newCol.Name), lit))
		}
	}

	if oldCol.IsPK != newCol.IsPK {
		if oldCol.IsPK {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", table, quote(op.OnTable+"_pkey")))
		}
		if newCol.IsPK {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s);", table, quote(newCol.Name)))
		}
	}

	if oldCol.Unique != newCol.Unique && !newCol.IsPK {
		if newCol.Unique {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);", table, quote(op.OnTable+"_"+newCol.Name+"_key"), quote(newCol.Name)))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", table, quote(op.OnTable+"_"+oldCol.Name+"_key")))
		}
	}

	return stmts, nil
}

func literalSQL(v value.SqlVal) (string, error) {
	switch v.Kind {
	case value.KindNull:
		return "NULL", nil
	case value.KindBool:
		if v.BoolVal {
			return "TRUE", nil
		}
		return "FALSE", nil
	case value.KindInt:
		return fmt.Sprintf("%d", v.IntVal), nil
	case value.KindBigInt:
		return fmt.Sprintf("%d", v.BigVal), nil
	case value.KindReal:
		return fmt.Sprintf("%v", v.RealVal), nil
	case value.KindText, value.KindJSON:
		return "'" + strings.ReplaceAll(v.TextVal, "'", "''") + "'", nil
	case value.KindBlob:
		return fmt.Sprintf("'\\x%x'", v.BlobVal), nil
	case value.KindDate:
		return "'" + v.DateVal.Format("2006-01-02") + "'", nil
	case value.KindTimestamp:
		return "'" + v.TimeVal.Format("2006-01-02 15:04:05.999999999") + "'", nil
	default:
		return "", fmt.Errorf("postgres: cannot render literal for kind %s", v.Kind)
	}
}
