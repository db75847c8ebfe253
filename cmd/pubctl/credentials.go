package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mikelady/showcase/internal/app"
)

func (c *cli) credentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-credentials",
		Short: "Verify the Instagram credentials of the automated path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.setup(cmd)
			if err != nil {
				return err
			}

			client := app.NewInstagramClient(cfg, logger)
			if client == nil {
				return errors.New("instagram is not configured: set INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_USER_ID")
			}

			status, err := client.ValidateCredentials(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if !status.Valid {
				return errors.New("credentials are not valid")
			}
			return nil
		},
	}
}
