// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/butaneorm/butane/pkg/butanelog"
	"github.com/butaneorm/butane/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all unapplied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		pending, err := migrations.UnappliedMigrations(ctx, c, store)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			pterm.Success.Println("Already up to date")
			return nil
		}

		log := butanelog.NewLogger()
		for _, m := range pending {
			log.LogMigrationStart(m.Name, 0)
			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Applying %s...", m.Name)).Start()
			if err := migrations.Apply(ctx, c, m); err != nil {
				sp.Fail(fmt.Sprintf("Failed to apply %s: %s", m.Name, err))
				return err
			}
			sp.Success(fmt.Sprintf("Applied %s", m.Name))
			log.LogMigrationComplete(m.Name, 0)
		}
		return nil
	},
}
