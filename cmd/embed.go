// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/migrations"
)

// embedSchema is the YAML/JSON shape a human edits by hand: just the "db"
// half of a migration document (spec §6 wire format), never the generated
// SQL or a name — those are filled in once makemigration diffs it.
type embedSchema struct {
	Tables     map[string]*adb.ATable               `json:"tables"`
	ExtraTypes map[adb.TypeKey]adb.DeferredSqlType `json:"extra_types"`
}

var embedCmd = &cobra.Command{
	Use:   "embed <schema.yaml>",
	Short: "Stage a hand-authored schema file as the in-progress \"current\" schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading schema file: %w", err)
		}
		asJSON, err := yaml.YAMLToJSON(raw)
		if err != nil {
			return fmt.Errorf("parsing schema file: %w", err)
		}

		var doc embedSchema
		if err := json.Unmarshal(asJSON, &doc); err != nil {
			return fmt.Errorf("decoding schema file: %w", err)
		}

		target := adb.New()
		for name, t := range doc.Tables {
			target.Tables[name] = t
		}
		for k, v := range doc.ExtraTypes {
			target.ExtraTypes[k] = v
		}

		store, err := openStore(dir)
		if err != nil {
			return err
		}
		unlock, err := store.Lock()
		if err != nil {
			return err
		}
		defer unlock.Unlock()

		if err := store.Save(&migrations.Migration{
			Name:        migrations.CurrentName,
			ADBSnapshot: target,
		}); err != nil {
			return fmt.Errorf("staging current schema: %w", err)
		}

		pterm.Success.Printfln("Staged %d table(s) as the current schema", len(target.Tables))
		return nil
	},
}
