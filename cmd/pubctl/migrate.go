package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/mikelady/showcase/internal/app"
	"github.com/mikelady/showcase/internal/config"
	"github.com/mikelady/showcase/internal/database"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withMigrator(cmd, func(m *migrate.Migrate) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration, or all of them with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withMigrator(cmd, func(m *migrate.Migrate) error {
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-1)
				}
				if err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withMigrator(cmd, func(m *migrate.Migrate) error {
				return printVersion(cmd, m)
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func (c *cli) withMigrator(cmd *cobra.Command, fn func(m *migrate.Migrate) error) error {
	cfg, _, err := c.setup(cmd)
	if err != nil {
		return err
	}
	dbConfig, err := migrationConfig(cmd, cfg)
	if err != nil {
		return err
	}

	m, err := database.NewMigrator(dbConfig)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func migrationConfig(cmd *cobra.Command, cfg *config.Config) (*database.Config, error) {
	dbConfig, err := app.DatabaseConfig(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if dbConfig == nil {
		return nil, errNoDatabase
	}
	return dbConfig, nil
}

func printVersion(cmd *cobra.Command, m *migrate.Migrate) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version %d", v)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
