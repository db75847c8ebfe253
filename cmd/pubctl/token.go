package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikelady/showcase/internal/auth"
)

func (c *cli) tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.setup(cmd)
			if err != nil {
				return err
			}
			if userID == "" {
				return errors.New("--user is required")
			}

			tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer)
			if err != nil {
				return fmt.Errorf("JWT_SECRET: %w", err)
			}
			token, err := tokens.GenerateToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "staff user id to embed")
	cmd.Flags().StringVar(&role, "role", "staff", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.TokenExpiration, "token lifetime")
	return cmd
}
