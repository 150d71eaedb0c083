// SPDX-License-Identifier: Apache-2.0

// Package cmd implements Butane's CLI (spec §6 "CLI (external
// collaborator)"): subcommands that drive the core's Migrations
// operations. Argument parsing choices here are not part of the spec;
// only the underlying operations (init, makemigration, migrate, rollback,
// list, embed, collapse, delete-table, clear data) are.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/butaneorm/butane/cmd/flags"
)

// Version is the butane CLI version.
var Version = "development"

func init() {
	viper.SetEnvPrefix("BUTANE")
	viper.AutomaticEnv()

	flags.ProjectFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "butane",
	Short:        "Butane is a compile-time ORM and schema-migration engine",
	SilenceUsage: true,
	Version:      Version,
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(makeMigrationCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(collapseCmd)
	rootCmd.AddCommand(deleteTableCmd)
	rootCmd.AddCommand(clearCmd)

	return rootCmd.Execute()
}
