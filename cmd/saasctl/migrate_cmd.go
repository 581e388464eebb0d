package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iota-uz/saaskit/migrations"
	"github.com/iota-uz/saaskit/pkg/application"
	"github.com/iota-uz/saaskit/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, closeDB, err := migrationManager()
			if err != nil {
				return err
			}
			defer closeDB()
			if err := manager.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, closeDB, err := migrationManager()
			if err != nil {
				return err
			}
			defer closeDB()
			states, err := manager.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printMigrations(cmd, states)
		},
	})
	return cmd
}

func migrationManager() (application.MigrationManager, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	manager := application.NewMigrationManager(db.DB, migrations.FS, configuration.Use().Logger())
	return manager, func() { _ = db.Close() }, nil
}

func printMigrations(cmd *cobra.Command, states []application.MigrationState) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tFILE\tAPPLIED AT")
	for _, s := range states {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Path, applied)
	}
	return w.Flush()
}
