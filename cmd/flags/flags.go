// SPDX-License-Identifier: Apache-2.0

package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Dir returns the project base directory: where connection.json and the
// migrations/ directory live (spec §6).
func Dir() string {
	return viper.GetString("DIR")
}

func ProjectFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("dir", ".", "Project base directory (holds connection.json and migrations/)")
	viper.BindPFlag("DIR", cmd.PersistentFlags().Lookup("dir"))
}
