// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/butaneorm/butane/internal/connstr"
)

var initCmd = &cobra.Command{
	Use:   "init <connection-uri>",
	Short: "Initialize a Butane project in the current directory, recording its connection spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := currentDir()

		if _, err := os.Stat(connstr.Path(dir)); err == nil {
			return errAlreadyInitialized
		}

		spec, err := connstr.Parse(args[0])
		if err != nil {
			return err
		}

		sp, _ := pterm.DefaultSpinner.WithText("Initializing Butane project...").Start()
		if err := connstr.Save(dir, spec); err != nil {
			sp.Fail(fmt.Sprintf("Failed to initialize: %s", err))
			return err
		}
		if _, err := openStore(dir); err != nil {
			sp.Fail(fmt.Sprintf("Failed to initialize: %s", err))
			return err
		}

		sp.Success(fmt.Sprintf("Initialized Butane project using backend %q", spec.BackendName))
		return nil
	},
}
