package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrapetoapi/scrapetoapi/pkg/config"
	"github.com/scrapetoapi/scrapetoapi/pkg/store"
)

func newMigrateCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres result store schema",
	}

	open := func(cmd *cobra.Command) (*store.Migrator, error) {
		cfg, err := loadConfig(cmd, f)
		if err != nil {
			return nil, err
		}
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("migrate requires a database URL (--database-url or DATABASE_URL) for the %s store", config.BackendPostgres)
		}
		m, err := store.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("error creating migrator: %w", err)
		}
		return m, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := open(cmd)
				if err != nil {
					return err
				}
				if err := m.Up(); err != nil {
					return fmt.Errorf("error applying migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := open(cmd)
				if err != nil {
					return err
				}
				if err := m.Down(); err != nil {
					return fmt.Errorf("error rolling back migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := open(cmd)
				if err != nil {
					return err
				}
				version, dirty, err := m.Version()
				if err != nil {
					return fmt.Errorf("error reading schema version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}
