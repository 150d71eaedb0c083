// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/butaneorm/butane/cmd/flags"
	"github.com/butaneorm/butane/internal/connstr"
	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/backend/mysql"
	"github.com/butaneorm/butane/pkg/backend/postgres"
	"github.com/butaneorm/butane/pkg/backend/sqlite"
	"github.com/butaneorm/butane/pkg/backend/turso"
	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/migrations"
)

// migrationsDir returns <dir>/migrations, where FSStore keeps one file per
// migration plus the advisory lock (spec §4.5).
func migrationsDir(dir string) string {
	return filepath.Join(dir, "migrations")
}

// backendByName maps one of spec §6's fixed backend names to its
// capability record.
func backendByName(name string) (backend.Backend, error) {
	switch name {
	case backend.NameSQLite:
		return sqlite.New(), nil
	case backend.NamePostgres:
		return postgres.New(), nil
	case backend.NameTurso:
		return turso.NewTurso(), nil
	case backend.NameLibSQL:
		return turso.NewLibSQL(), nil
	case backend.NameMySQL:
		return mysql.New(), nil
	default:
		return nil, migrations.UnknownBackendError{Name: name}
	}
}

// openConnection reads <dir>/connection.json and opens a Connection
// against it, failing with errNotInitialized if it hasn't been written
// yet (spec §6 "Connection spec").
func openConnection(ctx context.Context, dir string) (*conn.Connection, error) {
	spec, err := connstr.Load(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errNotInitialized
		}
		return nil, err
	}
	be, err := backendByName(spec.BackendName)
	if err != nil {
		return nil, err
	}
	return conn.Open(ctx, be, spec.ConnStr)
}

// openStore opens the filesystem migration store at <dir>/migrations,
// creating the directory if it doesn't exist yet.
func openStore(dir string) (*migrations.FSStore, error) {
	d := migrationsDir(dir)
	if err := os.MkdirAll(d, 0o755); err != nil {
		return nil, fmt.Errorf("creating migrations directory: %w", err)
	}
	return migrations.NewFSStore(d), nil
}

// currentDir is a small indirection so tests can override flags.Dir().
var currentDir = flags.Dir
