// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/butaneorm/butane/pkg/migrations"
)

var deleteTableCmd = &cobra.Command{
	Use:   "delete-table <name>",
	Short: "Remove a table, and any many-to-many link tables owned by it, from the current schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := args[0]
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

		cur, err := store.Load(migrations.CurrentName)
		if err != nil {
			return fmt.Errorf("no current schema staged: %w", err)
		}

		if _, ok := cur.ADBSnapshot.Tables[table]; !ok {
			return fmt.Errorf("table %q is not in the current schema", table)
		}
		delete(cur.ADBSnapshot.Tables, table)

		prefix := table + "_"
		for name := range cur.ADBSnapshot.Tables {
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, "_Many") {
				delete(cur.ADBSnapshot.Tables, name)
			}
		}

		if err := store.Save(cur); err != nil {
			return fmt.Errorf("saving current schema: %w", err)
		}
		pterm.Success.Printfln("Removed table %q from the current schema", table)
		return nil
	},
}
