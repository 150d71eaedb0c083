// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"context"
	"fmt"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/query"
	"github.com/butaneorm/butane/pkg/value"
)

// CreateMigration diffs from's snapshot (or an empty ADB if from is nil)
// against toADB, emits up_sql and down_sql for every backend in backends,
// and returns the new Migration plus whether any operation was produced
// (spec §4.5 create_migration). If from is nil, up_sql additionally
// includes AddTableIfNotExists(butane_migrations).
func CreateMigration(backends []backend.Backend, name string, from *Migration, toADB *adb.ADB) (*Migration, bool, error) {
	fromADB := adb.New()
	parentName := ""
	if from != nil {
		fromADB = from.ADBSnapshot
		parentName = from.Name
	}

	upOps := adb.Diff(fromADB, toADB)
	if from == nil {
		upOps = append(upOps, adb.AddTableIfNotExists(MarkerTable()))
	}
	if len(upOps) == 0 {
		return nil, false, nil
	}
	downOps := adb.Diff(toADB, fromADB)

	upSQL := make(map[string]string, len(backends))
	downSQL := make(map[string]string, len(backends))
	for _, be := range backends {
		u, err := be.CreateMigrationSQL(fromADB, upOps)
		if err != nil {
			return nil, false, fmt.Errorf("migrations: generating up SQL for backend %q: %w", be.Name(), err)
		}
		upSQL[be.Name()] = u

		d, err := be.CreateMigrationSQL(toADB, downOps)
		if err != nil {
			return nil, false, fmt.Errorf("migrations: generating down SQL for backend %q: %w", be.Name(), err)
		}
		downSQL[be.Name()] = d
	}

	return &Migration{
		Name:        name,
		Parent:      parentName,
		ADBSnapshot: toADB.Clone(),
		UpSQL:       upSQL,
		DownSQL:     downSQL,
	}, true, nil
}

// Apply opens a transaction, executes m's up SQL for c's backend, inserts
// the applied-marker row, and commits — all atomically (spec §4.5 apply,
// §5 "atomic apply/revert per migration").
func Apply(ctx context.Context, c *conn.Connection, m *Migration) error {
	sqlStmt, ok := m.UpSQL[c.BackendName()]
	if !ok {
		return UnknownBackendError{Name: c.BackendName()}
	}

	tx, err := c.Transaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := tx.Execute(ctx, sqlStmt); err != nil {
		return fmt.Errorf("migrations: applying %q: %w", m.Name, err)
	}
	if err := tx.InsertOnly(ctx, MarkerTableName, []string{"name"}, []value.SqlVal{value.Text(m.Name)}); err != nil {
		return fmt.Errorf("migrations: marking %q applied: %w", m.Name, err)
	}
	return tx.Commit()
}

// Downgrade executes m's down SQL, removes its marker row, and commits
// atomically (spec §4.5 downgrade).
func Downgrade(ctx context.Context, c *conn.Connection, m *Migration) error {
	sqlStmt, ok := m.DownSQL[c.BackendName()]
	if !ok {
		return UnknownBackendError{Name: c.BackendName()}
	}

	tx, err := c.Transaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := tx.Execute(ctx, sqlStmt); err != nil {
		return fmt.Errorf("migrations: downgrading %q: %w", m.Name, err)
	}
	markerQ := query.New(MarkerTableName, nil).Filter(query.Eq("name", query.Val(value.Text(m.Name))))
	if _, err := tx.DeleteWhere(ctx, markerQ); err != nil {
		return fmt.Errorf("migrations: unmarking %q: %w", m.Name, err)
	}
	return tx.Commit()
}

// ClearMigrations removes every persisted migration record and truncates
// butane_migrations, without altering schema (spec §4.5 clear_migrations).
func ClearMigrations(ctx context.Context, c *conn.Connection, store Store) error {
	names, err := store.List()
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := store.Delete(n); err != nil {
			return err
		}
	}
	_, err = c.DeleteWhere(ctx, query.New(MarkerTableName, nil).Filter(query.True()))
	return err
}

// LastAppliedMigration reads the applied-marker table and returns, from
// latest() backward, the first migration present in the marker set
// (spec §4.5). Returns nil, nil if no migration has ever been applied.
func LastAppliedMigration(ctx context.Context, c *conn.Connection, store Store) (*Migration, error) {
	applied, err := appliedNames(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}

	chain, err := AllMigrations(store)
	if err != nil {
		return nil, err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if applied[chain[i].Name] {
			return chain[i], nil
		}
	}
	return nil, nil
}

// UnappliedMigrations returns the migrations after last_applied(), or the
// entire chain if none has been applied (spec §4.5).
func UnappliedMigrations(ctx context.Context, c *conn.Connection, store Store) ([]*Migration, error) {
	last, err := LastAppliedMigration(ctx, c, store)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return AllMigrations(store)
	}
	return MigrationsSince(store, last.Name)
}

func appliedNames(ctx context.Context, c *conn.Connection) (map[string]bool, error) {
	has, err := c.HasTable(ctx, MarkerTableName)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	q := query.New(MarkerTableName, []string{"name"})
	iter, err := c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("migrations: reading applied markers: %w", err)
	}
	defer iter.Close()

	names := make(map[string]bool)
	for {
		row, ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if ref, ok := row["name"]; ok && ref.Text != nil {
			names[*ref.Text] = true
		}
	}
	return names, nil
}
