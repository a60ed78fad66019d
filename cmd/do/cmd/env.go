package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/templui/reelstore/internal/config"
	"github.com/templui/reelstore/internal/db"
	"github.com/templui/reelstore/internal/logger"
)

// openDB loads the config from the environment and returns a migrated database
func openDB() (*sqlx.DB, *config.Config, error) {
	cfg := config.Load()
	logger.Init("do", cfg.IsDevelopment(), "")

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, cfg, nil
}
