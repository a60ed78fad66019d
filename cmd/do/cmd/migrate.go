package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templui/reelstore/internal/config"
	"github.com/templui/reelstore/internal/db"
	"github.com/templui/reelstore/internal/logger"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			fmt.Println("==> Database is up to date")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init("do", cfg.IsDevelopment(), "")

			database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close()

			err = db.MigrateDown(database.DB, cfg.DBDriver)
			if err != nil {
				return fmt.Errorf("failed to roll back: %w", err)
			}
			fmt.Println("==> Rolled back one migration")
			return nil
		},
	})

	return cmd
}
