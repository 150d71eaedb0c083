// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/butaneorm/butane/pkg/migrations"
)

var collapseCmd = &cobra.Command{
	Use:   "collapse [name]",
	Short: "Squash the chain from its root through name (or the whole chain) into one migration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()

		store, err := openStore(dir)
		if err != nil {
			return err
		}
		unlock, err := store.Lock()
		if err != nil {
			return err
		}
		defer unlock.Unlock()

		chain, err := migrations.AllMigrations(store)
		if err != nil {
			return err
		}
		if len(chain) < 2 {
			pterm.Info.Println("Nothing to collapse")
			return nil
		}

		upTo := len(chain) - 1
		if len(args) == 1 {
			upTo = -1
			for i, m := range chain {
				if m.Name == args[0] {
					upTo = i
					break
				}
			}
			if upTo < 0 {
				return migrations.MigrationNotFoundError{Name: args[0]}
			}
		}
		if upTo == 0 {
			pterm.Info.Println("Nothing to collapse")
			return nil
		}

		collapsed, produced, err := migrations.CreateMigration(allGenerationBackends, chain[upTo].Name, nil, chain[upTo].ADBSnapshot)
		if err != nil {
			return fmt.Errorf("collapsing chain: %w", err)
		}
		if !produced {
			pterm.Info.Println("Nothing to collapse")
			return nil
		}

		sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Collapsing %d migration(s) into %q...", upTo+1, collapsed.Name)).Start()
		for i := 0; i < upTo; i++ {
			if err := store.Delete(chain[i].Name); err != nil {
				sp.Fail(fmt.Sprintf("Failed to collapse: %s", err))
				return err
			}
		}
		if err := store.Save(collapsed); err != nil {
			sp.Fail(fmt.Sprintf("Failed to collapse: %s", err))
			return err
		}
		sp.Success(fmt.Sprintf("Collapsed %d migration(s) into %q", upTo+1, collapsed.Name))
		return nil
	},
}
