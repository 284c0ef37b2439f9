package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-authflow/config"
	"github.com/goliatone/go-authflow/logging"
)

const serviceName = "authflow"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authflow CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authflow",
		Short: "authflow - account registration, login and recovery service",
		Long: `authflow serves the account lifecycle API: registration with email
verification, cookie sessions and password reset by emailed code.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewMailWorkerCmd())

	return cmd
}

// loadConfig resolves and validates configuration for a subcommand
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.Options{
		File:  configFile,
		Flags: cmd.Flags(),
	})
	if err != nil {
		return nil, nil, err
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())

	if err := cfg.Validate(); err != nil {
		logging.LogError(logger, "invalid configuration", err)
		return nil, nil, err
	}

	return cfg, logger, nil
}
