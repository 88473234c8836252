package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"nettoria/backend/internal/db/migrate"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	var steps int
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, "up", steps)
		},
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all unless --steps is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, "down", steps)
		},
	}
	for _, c := range []*cobra.Command{up, down} {
		c.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply; 0 means all")
	}
	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, dirty, err := migrate.Version(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dirty {
				_, err = color.New(color.FgYellow).Fprintf(out, "version %d (dirty)\n", v)
				return err
			}
			_, err = color.New(color.FgGreen).Fprintf(out, "version %d\n", v)
			return err
		},
	}
	cmd.AddCommand(up, down, version)
	return cmd
}

func runMigrate(cmd *cobra.Command, direction string, steps int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := migrate.Run(cfg.DatabaseURL, direction, steps); err != nil {
		return err
	}
	_, err = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", direction)
	return err
}
