// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

// TxState is a Transaction's position in the Active -> Committed|RolledBack
// state machine (spec §4.6).
type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxRolledBack
)

// Transaction implements ConnectionMethods by routing every call through a
// single *sql.Tx; all calls after Commit or Rollback fail with
// InternalError{"transaction already consumed"} (spec §4.6).
type Transaction struct {
	parent *Connection
	tx     *sql.Tx
	state  TxState
}

// Transaction opens an Active transaction (spec §4.6
// "connection.transaction()").
func (c *Connection) Transaction(ctx context.Context) (*Transaction, error) {
	tx, err := c.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("conn: begin transaction: %w", err)
	}
	return &Transaction{parent: c, tx: tx, state: TxActive}, nil
}

func (t *Transaction) State() TxState { return t.state }

func (t *Transaction) checkActive() error {
	if t.state != TxActive {
		return InternalError{Message: "transaction already consumed"}
	}
	return nil
}

// Commit is terminal: further calls on t fail with InternalError.
func (t *Transaction) Commit() error {
	if err := t.checkActive(); err != nil {
		return err
	}
	t.state = TxCommitted
	return t.tx.Commit()
}

// Rollback is terminal: further calls on t fail with InternalError.
func (t *Transaction) Rollback() error {
	if err := t.checkActive(); err != nil {
		return err
	}
	t.state = TxRolledBack
	return t.tx.Rollback()
}

// Close rolls back an Active transaction left uncommitted (spec §4.6
// "Dropping an Active transaction rolls back"); it is a no-op once the
// transaction has reached a terminal state.
func (t *Transaction) Close() error {
	if t.state != TxActive {
		return nil
	}
	return t.Rollback()
}

func (t *Transaction) Execute(ctx context.Context, sqlStmt string) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	for _, stmt := range splitStatements(sqlStmt) {
		if trimEmpty(stmt) {
			continue
		}
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("conn: executing statement in transaction: %w", err)
		}
	}
	return nil
}

func trimEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return false
		}
	}
	return true
}

func (t *Transaction) Query(ctx context.Context, q *query.Query) (RowIter, error) {
	if err := t.checkActive(); err != nil {
		return nil, err
	}
	compiled, err := t.parent.comp.CompileSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, compiled.SQL, toAnySlice(compiled.Args)...)
	if err != nil {
		return nil, fmt.Errorf("conn: query in transaction: %w", err)
	}
	return &sqlRowIter{rows: rows, cols: q.Cols}, nil
}

func (t *Transaction) DeleteWhere(ctx context.Context, q *query.Query) (int64, error) {
	if err := t.checkActive(); err != nil {
		return 0, err
	}
	compiled, err := t.parent.comp.CompileDelete(q)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, compiled.SQL, toAnySlice(compiled.Args)...)
	if err != nil {
		return 0, fmt.Errorf("conn: delete in transaction: %w", err)
	}
	return res.RowsAffected()
}

func (t *Transaction) InsertOnly(ctx context.Context, table string, cols []string, vals []value.SqlVal) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	stmt, args := insertSQL(t.parent.be, table, cols, vals)
	_, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("conn: insert into %s in transaction: %w", table, err)
	}
	return nil
}

func (t *Transaction) InsertReturningPK(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) (value.SqlVal, error) {
	if err := t.checkActive(); err != nil {
		return value.SqlVal{}, err
	}
	for i, col := range cols {
		if col == pkCol && !vals[i].IsNull() {
			if err := t.InsertOnly(ctx, table, cols, vals); err != nil {
				return value.SqlVal{}, err
			}
			return vals[i], nil
		}
	}
	stmt, args := insertSQL(t.parent.be, table, cols, vals)
	res, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return value.SqlVal{}, fmt.Errorf("conn: insert into %s in transaction: %w", table, err)
	}
	pk, err := res.LastInsertId()
	if err != nil {
		return value.SqlVal{}, fmt.Errorf("conn: reading last insert id for %s in transaction: %w", table, err)
	}
	return value.BigInt(pk), nil
}

func (t *Transaction) InsertOrReplace(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	stmt, args := upsertSQL(t.parent.be, table, cols, pkCol, vals)
	_, err := t.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("conn: upsert into %s in transaction: %w", table, err)
	}
	return nil
}

func (t *Transaction) Update(ctx context.Context, table, pkCol string, pk value.SqlVal, cols []string, vals []value.SqlVal) error {
	if err := t.checkActive(); err != nil {
		return err
	}
	return execUpdate(ctx, t.tx, t.parent.be, table, pkCol, pk, cols, vals)
}

func (t *Transaction) HasTable(ctx context.Context, name string) (bool, error) {
	if err := t.checkActive(); err != nil {
		return false, err
	}
	return execHasTable(ctx, t.tx, t.parent.be, name)
}

func (t *Transaction) Backend() backend.Backend { return t.parent.be }
func (t *Transaction) BackendName() string      { return t.parent.be.Name() }
func (t *Transaction) IsClosed() bool            { return t.state != TxActive }
