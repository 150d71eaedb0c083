// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"regexp"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/butaneorm/butane/pkg/migrations"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the migration chain, oldest first, marking what's applied",
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
		unlock, err := store.RLock()
		if err != nil {
			return err
		}
		defer unlock.Unlock()

		chain, err := migrations.AllMigrations(store)
		if err != nil {
			return err
		}
		if len(chain) == 0 {
			pterm.Info.Println("No migrations yet")
			return nil
		}

		last, err := migrations.LastAppliedMigration(ctx, c, store)
		if err != nil {
			return err
		}
		lastName := ""
		if last != nil {
			lastName = last.Name
		}

		warnOutOfOrderVersions(chain)

		applied := lastName != ""
		rows := [][]string{{"Migration", "Status"}}
		for _, m := range chain {
			status := "pending"
			if applied {
				status = "applied"
			}
			rows = append(rows, []string{m.Name, status})
			if m.Name == lastName {
				applied = false
			}
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var versionTagRe = regexp.MustCompile(`^(v\d+\.\d+\.\d+)`)

// warnOutOfOrderVersions flags migration names that embed a leading semver
// tag (e.g. "v1.2.0_add_posts") out of monotonic order with their
// predecessor in the chain. Migrations without a version tag are ignored.
func warnOutOfOrderVersions(chain []*migrations.Migration) {
	prevTag, prevName := "", ""
	for _, m := range chain {
		tag := versionTagRe.FindString(m.Name)
		if tag == "" {
			continue
		}
		if prevTag != "" && semver.Compare(tag, prevTag) < 0 {
			pterm.Warning.Printfln("migration %q (%s) is older than its predecessor %q (%s)",
				m.Name, tag, prevName, prevTag)
		}
		prevTag, prevName = tag, m.Name
	}
}
