package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sensor.sim/internal/db"
)

func newMigrateCmd(ro *rootOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the session database schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "sensorsim.db", "sqlite database path")

	withDB := func(fn func(*cobra.Command, *db.DB, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenDB(dbPath)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()
			return fn(cmd, database, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateUp(db.MigrationsFS()); err != nil {
				return err
			}
			return printStatus(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			if err := database.MigrateDown(db.MigrationsFS()); err != nil {
				return err
			}
			return printStatus(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, _ []string) error {
			return printStatus(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema version after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(cmd *cobra.Command, database *db.DB, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			if err := database.MigrateForce(db.MigrationsFS(), v); err != nil {
				return err
			}
			return printStatus(cmd, database)
		}),
	})

	return cmd
}

func printStatus(cmd *cobra.Command, database *db.DB) error {
	status, err := database.GetMigrationStatus(db.MigrationsFS())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "latest version:  %d\n", status.LatestVersion)
	fmt.Fprintf(out, "dirty:           %t\n", status.Dirty)
	if status.Pending() {
		fmt.Fprintln(out, "migrations pending")
	}
	return nil
}
