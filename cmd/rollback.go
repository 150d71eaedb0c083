// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/butaneorm/butane/pkg/butanelog"
	"github.com/butaneorm/butane/pkg/conn"
	"github.com/butaneorm/butane/pkg/migrations"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [to <name>]",
	Short: "Roll back the last applied migration, or everything after a named one",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := rollbackTarget(args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		dir := currentDir()

		c, err := openConnection(ctx, dir)
		if err != nil {
			return err
		}
		defer c.Close()

		store, err := openStore(dir)
		if err != nil {
			return err
		}
		unlock, err := store.RLock()
		if err != nil {
			return err
		}
		defer unlock.Unlock()

		toRollBack, err := rollbackList(ctx, c, store, target)
		if err != nil {
			return err
		}
		if len(toRollBack) == 0 {
			pterm.Success.Println("Nothing to roll back")
			return nil
		}

		log := butanelog.NewLogger()
		for _, m := range toRollBack {
			log.LogMigrationRollback(m.Name, 0)
			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Rolling back %s...", m.Name)).Start()
			if err := migrations.Downgrade(ctx, c, m); err != nil {
				sp.Fail(fmt.Sprintf("Failed to roll back %s: %s", m.Name, err))
				return err
			}
			sp.Success(fmt.Sprintf("Rolled back %s", m.Name))
			log.LogMigrationRollbackComplete(m.Name, 0)
		}
		return nil
	},
}

// rollbackTarget parses either no args (roll back one migration) or
// "to <name>" (roll back down to, and not including, name).
func rollbackTarget(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 2:
		if args[0] != "to" {
			return "", fmt.Errorf("expected 'rollback to <name>', got 'rollback %s %s'", args[0], args[1])
		}
		return args[1], nil
	default:
		return "", fmt.Errorf("expected 'rollback' or 'rollback to <name>'")
	}
}

// rollbackList returns the applied migrations to roll back, newest-first:
// just the last applied one if target is "", or everything applied after
// target otherwise.
func rollbackList(ctx context.Context, c *conn.Connection, store migrations.Store, target string) ([]*migrations.Migration, error) {
	last, err := migrations.LastAppliedMigration(ctx, c, store)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}

	var since []*migrations.Migration
	if target == "" {
		since = []*migrations.Migration{last}
	} else {
		since, err = migrations.MigrationsSince(store, target)
		if err != nil {
			return nil, err
		}
		// MigrationsSince walks the whole chain past target, oldest-first,
		// including migrations not yet applied; keep only up to last.
		for i, m := range since {
			if m.Name == last.Name {
				since = since[:i+1]
				break
			}
		}
	}

	for i, j := 0, len(since)-1; i < j; i, j = i+1, j-1 {
		since[i], since[j] = since[j], since[i]
	}
	return since, nil
}
