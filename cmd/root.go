package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// defaultStoreDir is where archives land when --store is not given.
const defaultStoreDir = "archives"

// indexFileName is the upload index inside the store directory.
const indexFileName = "uploads.db"

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "squeeze",
	Short: "Squeeze reversible byte-transform tool",
	Long: `Squeeze encodes arbitrary bytes through a reversible printable-text
pipeline and records every parameter needed to undo the transform in a
self-contained manifest.`,
}

// Execute executes the root command.
func Execute() error {
	return RootCmd.Execute()
}

// ExecuteWithContext executes the root command with the given context.
func ExecuteWithContext(ctx context.Context) error {
	RootCmd.SetContext(ctx)
	return RootCmd.Execute()
}
