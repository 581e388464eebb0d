package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/saaskit/pkg/configuration"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert users, organizations, members and products from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fh, err := os.Open(file)
			if err != nil {
				return errors.Wrap(err, "open fixtures")
			}
			defer fh.Close()

			fixtures, err := LoadFixtures(fh)
			if err != nil {
				return err
			}
			if err := fixtures.hashPasswords(configuration.Use().Session.BcryptCost); err != nil {
				return err
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := fixtures.Apply(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d organizations, %d members, %d products\n",
				res.Users, res.Organizations, res.Members, res.Products)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "fixtures.yaml", "fixtures file")
	return cmd
}
