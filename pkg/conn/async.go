// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"
	"fmt"

	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

// AsyncConnection is the async-over-sync bridge (spec §4.6): a worker
// goroutine owns the underlying *Connection exclusively, and every
// ConnectionMethods call is dispatched as a command onto a channel the
// worker drains in order, so FIFO ordering from a single caller is
// preserved without sharing the connection across goroutines. This is
// Go's natural analogue of the spec's "async-over-sync" worker-thread
// bridge, since Go has no separate async runtime to drive a sync-over-
// async bridge against: goroutines already are the cooperative scheduler.
type AsyncConnection struct {
	inner  *Connection
	cmds   chan command
	done   chan struct{}
}

type command struct {
	run   func(ctx context.Context) (any, error)
	reply chan result
}

type result struct {
	val any
	err error
}

// NewAsyncConnection starts the worker goroutine over inner. Close stops
// the worker; calling any method after Close returns InternalError.
func NewAsyncConnection(inner *Connection) *AsyncConnection {
	a := &AsyncConnection{
		inner: inner,
		cmds:  make(chan command),
		done:  make(chan struct{}),
	}
	go a.worker()
	return a
}

func (a *AsyncConnection) worker() {
	for {
		select {
		case cmd, ok := <-a.cmds:
			if !ok {
				return
			}
			val, err := cmd.run(context.Background())
			cmd.reply <- result{val: val, err: err}
		case <-a.done:
			return
		}
	}
}

// dispatch sends run to the worker and blocks for its reply, or returns
// ctx.Err() if ctx is cancelled first — this is the "suspension point"
// where cooperative cancellation takes effect (spec §4.6, §5).
func (a *AsyncConnection) dispatch(ctx context.Context, run func(ctx context.Context) (any, error)) (any, error) {
	reply := make(chan result, 1)
	select {
	case a.cmds <- command{run: run, reply: reply}:
	case <-a.done:
		return nil, InternalError{Message: "async connection closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *AsyncConnection) Execute(ctx context.Context, sqlStmt string) error {
	_, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return nil, a.inner.Execute(ctx, sqlStmt)
	})
	return err
}

func (a *AsyncConnection) Query(ctx context.Context, q *query.Query) (RowIter, error) {
	v, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return a.inner.Query(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return v.(RowIter), nil
}

func (a *AsyncConnection) InsertReturningPK(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) (value.SqlVal, error) {
	v, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return a.inner.InsertReturningPK(ctx, table, cols, pkCol, vals)
	})
	if err != nil {
		return value.SqlVal{}, err
	}
	return v.(value.SqlVal), nil
}

func (a *AsyncConnection) InsertOnly(ctx context.Context, table string, cols []string, vals []value.SqlVal) error {
	_, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return nil, a.inner.InsertOnly(ctx, table, cols, vals)
	})
	return err
}

func (a *AsyncConnection) InsertOrReplace(ctx context.Context, table string, cols []string, pkCol string, vals []value.SqlVal) error {
	_, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return nil, a.inner.InsertOrReplace(ctx, table, cols, pkCol, vals)
	})
	return err
}

func (a *AsyncConnection) Update(ctx context.Context, table, pkCol string, pk value.SqlVal, cols []string, vals []value.SqlVal) error {
	_, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return nil, a.inner.Update(ctx, table, pkCol, pk, cols, vals)
	})
	return err
}

func (a *AsyncConnection) DeleteWhere(ctx context.Context, q *query.Query) (int64, error) {
	v, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return a.inner.DeleteWhere(ctx, q)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (a *AsyncConnection) HasTable(ctx context.Context, name string) (bool, error) {
	v, err := a.dispatch(ctx, func(ctx context.Context) (any, error) {
		return a.inner.HasTable(ctx, name)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (a *AsyncConnection) Backend() backend.Backend { return a.inner.Backend() }
func (a *AsyncConnection) BackendName() string       { return a.inner.BackendName() }
func (a *AsyncConnection) IsClosed() bool            { return a.inner.IsClosed() }

// Close stops the worker goroutine and closes the underlying connection.
// Any in-flight dispatch observes InternalError rather than a panic.
func (a *AsyncConnection) Close() error {
	select {
	case <-a.done:
		return fmt.Errorf("conn: async connection already closed")
	default:
		close(a.done)
	}
	return a.inner.Close()
}
