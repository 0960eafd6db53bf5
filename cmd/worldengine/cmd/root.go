// Package cmd provides the worldengine CLI's commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "worldengine",
	Short: "worldengine - temporal-spatial world engine for a persistent multiplayer text game",
	Long: `worldengine runs the backend core of a persistent multiplayer text-based
game server: direction normalization, location graph traversal, world and
location clocks, description layers, the world event log, the move
pipeline, and area generation.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
