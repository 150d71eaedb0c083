// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/butaneorm/butane/pkg/adb"
	"github.com/butaneorm/butane/pkg/backend"
	"github.com/butaneorm/butane/pkg/backend/mysql"
	"github.com/butaneorm/butane/pkg/backend/postgres"
	"github.com/butaneorm/butane/pkg/backend/sqlite"
	"github.com/butaneorm/butane/pkg/backend/turso"
	"github.com/butaneorm/butane/pkg/migrations"
)

var allGenerationBackends = []backend.Backend{
	sqlite.New(),
	postgres.New(),
	turso.NewTurso(),
	turso.NewLibSQL(),
	mysql.New(),
}

var schemaFile string

var makeMigrationCmd = &cobra.Command{
	Use:   "makemigration [name]",
	Short: "Diff the current schema against the last migration and persist the result",
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

		toADB, err := loadTargetSchema(store)
		if err != nil {
			return err
		}

		from, err := migrations.Latest(store)
		if err != nil {
			return err
		}

		var name string
		if len(args) > 0 {
			name = args[0]
		}
		if name == "" {
			name, err = nextMigrationName(store)
			if err != nil {
				return err
			}
		}

		sp, _ := pterm.DefaultSpinner.WithText("Diffing schema...").Start()
		m, produced, err := migrations.CreateMigration(allGenerationBackends, name, from, toADB)
		if err != nil {
			sp.Fail(fmt.Sprintf("Failed to generate migration: %s", err))
			return err
		}
		if !produced {
			sp.Success("No changes detected, nothing to do")
			return nil
		}

		if err := store.Save(m); err != nil {
			sp.Fail(fmt.Sprintf("Failed to save migration: %s", err))
			return err
		}
		sp.Success(fmt.Sprintf("Created migration %q", m.Name))
		return nil
	},
}

func init() {
	makeMigrationCmd.Flags().StringVar(&schemaFile, "schema", "",
		"path to a JSON file describing the target ADB (tables + extra_types); "+
			"defaults to the store's staged \"current\" schema")
}

// loadTargetSchema reads the schema makemigration should diff against: a
// file if --schema was given, otherwise the store's staged CurrentName
// pseudo-migration (spec §3 "current" represents the in-progress schema).
func loadTargetSchema(store migrations.Store) (*adb.ADB, error) {
	if schemaFile != "" {
		raw, err := os.ReadFile(schemaFile)
		if err != nil {
			return nil, fmt.Errorf("reading --schema file: %w", err)
		}
		target := adb.New()
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("parsing --schema file: %w", err)
		}
		return target, nil
	}

	cur, err := store.Load(migrations.CurrentName)
	if err != nil {
		return nil, fmt.Errorf("no target schema: pass --schema or stage one under %q: %w", migrations.CurrentName, err)
	}
	return cur.ADBSnapshot, nil
}

func nextMigrationName(store migrations.Store) (string, error) {
	all, err := migrations.AllMigrations(store)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d_migration", len(all)+1), nil
}
