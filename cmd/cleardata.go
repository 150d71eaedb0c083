// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/butaneorm/butane/pkg/migrations"
)

// clearCmd is the "clear" parent command; "clear data" is its only
// subcommand, mapping to the core's clear_migrations operation (spec §4.5).
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear persisted state",
}

var clearDataCmd = &cobra.Command{
	Use:   "data",
	Short: "Remove every persisted migration record and truncate butane_migrations, without altering schema",
	Args:  cobra.NoArgs,
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
		unlock, err := store.Lock()
		if err != nil {
			return err
		}
		defer unlock.Unlock()

		sp, _ := pterm.DefaultSpinner.WithText("Clearing migration history...").Start()
		if err := migrations.ClearMigrations(ctx, c, store); err != nil {
			sp.Fail(fmt.Sprintf("Failed to clear migration history: %s", err))
			return err
		}
		sp.Success("Cleared migration history; schema left untouched")
		return nil
	},
}

func init() {
	clearCmd.AddCommand(clearDataCmd)
}
