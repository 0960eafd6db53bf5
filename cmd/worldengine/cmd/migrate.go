package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// migrateCmd reserves the storage-migration entry point. No schema
// migration exists yet: Badger stores this tree's keys with a flat
// prefix scheme that hasn't changed shape since it was introduced, so
// there is nothing to migrate. It stays a registered subcommand so an
// operator's deploy scripts can call `worldengine migrate` unconditionally
// once one is needed, without a CLI surface change.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run storage migrations (currently a no-op)",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations registered; storage layout is current")
		return nil
	},
}
