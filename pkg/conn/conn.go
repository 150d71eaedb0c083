// SPDX-License-Identifier: Apache-2.0

// Package conn implements Butane's Connection/Transaction Abstraction: a
// uniform synchronous contract over all backends, a transaction state
// machine, and an async-over-sync bridge.
package conn

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"

	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

const (
	maxBackoffDuration = 1 * time.Minute
	backoffInterval     = 1 * time.Second
	lockNotAvailable    = pq.ErrorCode("55P03")
)

// Row is one decoded result row, column name to borrowed value.
type Row map[string]value.SqlValRef

// RowIter is a lazy row stream (spec §4.6 query() "returns a lazy row
// iterator"); callers must call Close when done, including after an error
// from Next.
type RowIter interface {
	Next(ctx context.Context) (Row, bool, error)
	Close() error
}

// ConnectionMethods is the uniform contract every backend satisfies
// (spec §4.6). Both the plain synchronous Connection and the
// AsyncConnection bridge implement it; AsyncConnection's methods suspend
// cooperatively by blocking on a channel round-trip to the owning worker.
type ConnectionMethods interface {
	Execute(ctx context.Context, sqlStmt string) error
	Query(ctx context.Context, q *query.Query) (RowIter, error)
	InsertReturningPK(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) (value.SqlVal, error)
	InsertOnly(ctx context.Context, table string, cols []string, vals []value.SqlVal) error
	InsertOrReplace(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) error
	Update(ctx context.Context, table, pkCol string, pk value.SqlVal, cols []string, vals []value.SqlVal) error
	DeleteWhere(ctx context.Context, q *query.Query) (int64, error)
	HasTable(ctx context.Context, name string) (bool, error)
	Backend() backend.Backend
	BackendName() string
	IsClosed() bool
	Close() error
}

// Transactor opens a transaction scoped to the connection (spec §4.6
// "Active is entered via connection.transaction()").
type Transactor interface {
	Transaction(ctx context.Context) (*Transaction, error)
}

// retryDB wraps a *sql.DB, retrying statements on a backend's
// lock-contention error, checking whichever backend is active.
type retryDB struct {
	db      *sql.DB
	backend backend.Backend
}

func (r *retryDB) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		res, err := r.db.ExecContext(ctx, q, args...)
		if err == nil {
			return res, nil
		}
		if !isLockContention(r.backend, err) {
			return nil, err
		}
		if err := sleepCtx(ctx, b.Duration()); err != nil {
			return nil, err
		}
	}
}

func (r *retryDB) QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		rows, err := r.db.QueryContext(ctx, q, args...)
		if err == nil {
			return rows, nil
		}
		if !isLockContention(r.backend, err) {
			return nil, err
		}
		if err := sleepCtx(ctx, b.Duration()); err != nil {
			return nil, err
		}
	}
}

func isLockContention(be backend.Backend, err error) bool {
	if be.Name() != backend.NamePostgres {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == lockNotAvailable
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// InternalError marks a state that should never be observable from correct
// use of the API, mirroring the spec's Internal("transaction already
// consumed") (spec §4.6).
type InternalError struct {
	Message string
}

func (e InternalError) Error() string { return "internal: " + e.Message }
