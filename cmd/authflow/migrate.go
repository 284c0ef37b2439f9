package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-authflow/config"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run account store migrations",
		Long: `Apply pending SQL migrations for sqlite and postgres, or create the
collection indexes for mongo.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Store.Driver == config.DriverMemory {
		cmd.Println("memory store has nothing to migrate")
		return nil
	}

	cmd.Println("Running migrations...")
	_, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	if err := closeStore(cmd.Context()); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
