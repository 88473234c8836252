package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nettoria/backend/internal/config"
	"nettoria/backend/internal/db"
)

var noColor bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nettoriactl",
		Short:         "Nettoria operator CLI",
		Long:          "nettoriactl manages the Nettoria database schema, bootstraps admin accounts and lists audit logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.AddCommand(newMigrateCmd(), newCreateAdminCmd(), newAuditCmd())
	return root
}

// loadConfig reads config and requires DATABASE_URL; every command works on Postgres.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return conn, nil
}
