// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

// Connection is the synchronous ConnectionMethods implementation shared by
// every backend: database/sql already gives Butane a single driver-neutral
// I/O surface (lib/pq, ncruces/go-sqlite3, libsql-client-go all register
// database/sql drivers), so there is one Connection type, parametrized by
// the Backend capability record rather than one per backend.
type Connection struct {
	be     backend.Backend
	db     *retryDB
	comp   *query.Compiler
	closed bool
}

// Open connects to connStr using be and wraps the resulting *sql.DB.
func Open(ctx context.Context, be backend.Backend, connStr string) (*Connection, error) {
	connector, err := be.Connect(ctx, connStr)
	if err != nil {
		return nil, err
	}
	sqlConn, ok := connector.(interface{ DB() *sql.DB })
	if !ok {
		return nil, fmt.Errorf("conn: backend %q's Connector does not expose *sql.DB", be.Name())
	}
	return &Connection{
		be:   be,
		db:   &retryDB{db: sqlConn.DB(), backend: be},
		comp: query.NewCompiler(be),
	}, nil
}

func (c *Connection) Backend() backend.Backend { return c.be }
func (c *Connection) BackendName() string       { return c.be.Name() }
func (c *Connection) IsClosed() bool            { return c.closed }

func (c *Connection) Close() error {
	c.closed = true
	return c.db.db.Close()
}

func (c *Connection) Execute(ctx context.Context, sqlStmt string) error {
	for _, stmt := range splitStatements(sqlStmt) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("conn: executing statement: %w", err)
		}
	}
	return nil
}

// splitStatements breaks a semicolon-joined batch (as produced by
// backend.Backend.CreateMigrationSQL) into individual statements. Butane's
// generators never emit semicolons inside string literals uses escaping
// that wouldn't confuse this split since literals render on a single
// logical line per statement.
func splitStatements(batch string) []string {
	var out []string
	for _, line := range strings.Split(batch, "\n") {
		for _, stmt := range strings.Split(line, ";") {
			out = append(out, stmt)
		}
	}
	return out
}

func (c *Connection) Query(ctx context.Context, q *query.Query) (RowIter, error) {
	compiled, err := c.comp.CompileSelect(q)
	if err != nil {
		return nil, err
	}
	args := toAnySlice(compiled.Args)
	rows, err := c.db.QueryContext(ctx, compiled.SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("conn: query: %w", err)
	}
	return &sqlRowIter{rows: rows, cols: q.Cols}, nil
}

func (c *Connection) DeleteWhere(ctx context.Context, q *query.Query) (int64, error) {
	compiled, err := c.comp.CompileDelete(q)
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, compiled.SQL, toAnySlice(compiled.Args)...)
	if err != nil {
		return 0, fmt.Errorf("conn: delete: %w", err)
	}
	return res.RowsAffected()
}

func (c *Connection) InsertOnly(ctx context.Context, table string, cols []string, vals []value.SqlVal) error {
	stmt, args := insertSQL(c.be, table, cols, vals)
	_, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("conn: insert into %s: %w", table, err)
	}
	return nil
}

func (c *Connection) InsertReturningPK(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) (value.SqlVal, error) {
	for i, col := range cols {
		if col == pkCol && !vals[i].IsNull() {
			// explicit PK supplied: plain insert, echo it back.
			if err := c.InsertOnly(ctx, table, cols, vals); err != nil {
				return value.SqlVal{}, err
			}
			return vals[i], nil
		}
	}

	if c.be.Name() == backend.NamePostgres {
		stmt, args := insertSQL(c.be, table, cols, vals)
		stmt = strings.TrimSuffix(strings.TrimSpace(stmt), ";") + fmt.Sprintf(" RETURNING %s;", backend.QuoteIdentifier(pkCol, c.be.QuoteChar()))
		row := c.db.db.QueryRowContext(ctx, stmt, args...)
		var pk int64
		if err := row.Scan(&pk); err != nil {
			return value.SqlVal{}, fmt.Errorf("conn: insert returning pk into %s: %w", table, err)
		}
		return value.BigInt(pk), nil
	}

	stmt, args := insertSQL(c.be, table, cols, vals)
	res, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return value.SqlVal{}, fmt.Errorf("conn: insert into %s: %w", table, err)
	}
	pk, err := res.LastInsertId()
	if err != nil {
		return value.SqlVal{}, fmt.Errorf("conn: reading last insert id for %s: %w", table, err)
	}
	return value.BigInt(pk), nil
}

func (c *Connection) InsertOrReplace(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) error {
	stmt, args := upsertSQL(c.be, table, cols, pkCol, vals)
	_, err := c.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("conn: upsert into %s: %w", table, err)
	}
	return nil
}

func (c *Connection) Update(ctx context.Context, table, pkCol string, pk value.SqlVal, cols []string, vals []value.SqlVal) error {
	return execUpdate(ctx, c.db.db, c.be, table, pkCol, pk, cols, vals)
}

func (c *Connection) HasTable(ctx context.Context, name string) (bool, error) {
	return execHasTable(ctx, c.db.db, c.be, name)
}

// execer is the subset of *sql.DB and *sql.Tx that Update/HasTable need;
// factored out so Connection and Transaction share one implementation.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execUpdate(ctx context.Context, ex execer, be backend.Backend, table, pkCol string, pk value.SqlVal, cols []string, vals []value.SqlVal) error {
	if len(cols) == 0 {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET ", backend.QuoteIdentifier(table, be.QuoteChar()))
	args := make([]any, 0, len(cols)+1)
	n := 0
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		n++
		fmt.Fprintf(&sb, "%s = %s", backend.QuoteIdentifier(col, be.QuoteChar()), backend.Placeholder(be.PlaceholderStyle(), n))
		args = append(args, sqlValToDriver(vals[i]))
	}
	n++
	fmt.Fprintf(&sb, " WHERE %s = %s;", backend.QuoteIdentifier(pkCol, be.QuoteChar()), backend.Placeholder(be.PlaceholderStyle(), n))
	args = append(args, sqlValToDriver(pk))

	if _, err := ex.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("conn: update %s: %w", table, err)
	}
	return nil
}

func execHasTable(ctx context.Context, ex execer, be backend.Backend, name string) (bool, error) {
	var stmt string
	switch be.Name() {
	case backend.NamePostgres:
		stmt = "SELECT 1 FROM information_schema.tables WHERE table_name = $1;"
	case backend.NameMySQL:
		stmt = "SELECT 1 FROM information_schema.tables WHERE table_name = ?;"
	default:
		stmt = "SELECT 1 FROM sqlite_master WHERE type='table' AND name = ?;"
	}
	row := ex.QueryRowContext(ctx, stmt, name)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("conn: has_table %s: %w", name, err)
	}
	return true, nil
}

func insertSQL(be backend.Backend, table string, cols []string, vals []value.SqlVal) (string, []any) {
	quotedCols := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quotedCols[i] = backend.QuoteIdentifier(col, be.QuoteChar())
		placeholders[i] = backend.Placeholder(be.PlaceholderStyle(), i+1)
		args[i] = sqlValToDriver(vals[i])
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		backend.QuoteIdentifier(table, be.QuoteChar()),
		strings.Join(quotedCols, ", "),
		strings.Join(placeholders, ", "))
	return stmt, args
}

func upsertSQL(be backend.Backend, table string, cols []string, pkCol string, vals []value.SqlVal) (string, []any) {
	switch be.Name() {
	case backend.NameSQLite, backend.NameTurso, backend.NameLibSQL:
		quotedCols := make([]string, len(cols))
		placeholders := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, col := range cols {
			quotedCols[i] = backend.QuoteIdentifier(col, be.QuoteChar())
			placeholders[i] = backend.Placeholder(be.PlaceholderStyle(), i+1)
			args[i] = sqlValToDriver(vals[i])
		}
		stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s);",
			backend.QuoteIdentifier(table, be.QuoteChar()), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
		return stmt, args
	case backend.NamePostgres:
		quotedCols := make([]string, len(cols))
		placeholders := make([]string, len(cols))
		args := make([]any, len(cols))
		var setClauses []string
		for i, col := range cols {
			quotedCols[i] = backend.QuoteIdentifier(col, be.QuoteChar())
			placeholders[i] = backend.Placeholder(be.PlaceholderStyle(), i+1)
			args[i] = sqlValToDriver(vals[i])
			if col != pkCol {
				setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", quotedCols[i], quotedCols[i]))
			}
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s;",
			backend.QuoteIdentifier(table, be.QuoteChar()), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "),
			backend.QuoteIdentifier(pkCol, be.QuoteChar()), strings.Join(setClauses, ", "))
		return stmt, args
	default:
		// MySQL: ON DUPLICATE KEY UPDATE, built here with the backend's own
		// quote character (backtick); every column, the PK included, is
		// listed in the update clause.
		quotedCols := make([]string, len(cols))
		placeholders := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, col := range cols {
			quotedCols[i] = backend.QuoteIdentifier(col, be.QuoteChar())
			placeholders[i] = "?"
			args[i] = sqlValToDriver(vals[i])
		}
		var setClauses []string
		for _, col := range quotedCols {
			setClauses = append(setClauses, fmt.Sprintf("%s = VALUES(%s)", col, col))
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s;",
			backend.QuoteIdentifier(table, be.QuoteChar()), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "),
			strings.Join(setClauses, ", "))
		return stmt, args
	}
}

func toAnySlice(vals []value.SqlVal) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = sqlValToDriver(v)
	}
	return out
}

// sqlValToDriver converts a SqlVal into a database/sql-compatible driver
// value; Date/Timestamp/JSON/Custom all reduce to types database/sql
// drivers natively accept.
func sqlValToDriver(v value.SqlVal) any {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.BoolVal
	case value.KindInt:
		return v.IntVal
	case value.KindBigInt:
		return v.BigVal
	case value.KindReal:
		return v.RealVal
	case value.KindText, value.KindJSON:
		return v.TextVal
	case value.KindBlob:
		return v.BlobVal
	case value.KindDate:
		return v.DateVal
	case value.KindTimestamp:
		return v.TimeVal
	case value.KindCustom:
		return fmt.Sprintf("%v", v.CustomVal)
	default:
		return nil
	}
}

type sqlRowIter struct {
	rows *sql.Rows
	cols []string
}

func (it *sqlRowIter) Next(ctx context.Context) (Row, bool, error) {
	if !it.rows.Next() {
		return nil, false, it.rows.Err()
	}
	raw := make([]any, len(it.cols))
	ptrs := make([]any, len(it.cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, false, fmt.Errorf("conn: scanning row: %w", err)
	}
	row := make(Row, len(it.cols))
	for i, col := range it.cols {
		row[col] = driverValueToRef(raw[i])
	}
	return row, true, nil
}

func (it *sqlRowIter) Close() error { return it.rows.Close() }

func driverValueToRef(raw any) value.SqlValRef {
	switch v := raw.(type) {
	case nil:
		return value.Null.Ref()
	case bool:
		return value.Bool(v).Ref()
	case int64:
		return value.BigInt(v).Ref()
	case float64:
		return value.Real(v).Ref()
	case string:
		return value.Text(v).Ref()
	case []byte:
		return value.Blob(v).Ref()
	default:
		return value.Text(fmt.Sprintf("%v", v)).Ref()
	}
}
