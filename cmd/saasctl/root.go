package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/saaskit/pkg/configuration"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "saasctl",
		Short:         "Database and access-control maintenance for the saaskit server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newAbilityCmd())
	return cmd
}

func Execute() {
	err := newRootCmd().Execute()
	configuration.Use().Unload()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// openDB connects with the settings the server uses.
func openDB() (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", configuration.Use().Database.Opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return db, nil
}
