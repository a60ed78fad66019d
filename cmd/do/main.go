package main

import (
	"context"
	"os"

	"github.com/templui/reelstore/cmd/do/cmd"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development and admin tools for reelstore",
		SilenceUsage: true,
	}

	// Local tooling
	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.BuildCmd())

	// Administration against DB_CONNECTION
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.UserCmd())
	rootCmd.AddCommand(cmd.FilmCmd())

	// Conversion backend
	rootCmd.AddCommand(cmd.ConvertCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
