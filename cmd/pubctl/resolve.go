package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mikelady/showcase/internal/app"
)

func (c *cli) resolveCmd() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "resolve <file-handle>...",
		Short: "Resolve Drive file handles to public image URLs",
		Long: `Resolve runs each handle through the link resolver and prints
"<handle>\t<url>" per line. Handles may be file ids, share URLs or
image CDN URLs. Resolution never fails; the last resort is the generic
download URL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.setup(cmd)
			if err != nil {
				return err
			}

			var rdb redis.Cmdable
			if !noCache && cfg.RedisAddr != "" {
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.RedisAddr,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				})
				defer client.Close()
				rdb = client
			}

			resolver := app.NewLinkResolver(cfg, app.NewDriveClient(cfg), rdb, logger)
			for _, handle := range args {
				resolved := resolver.Resolve(cmd.Context(), handle)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", handle, resolved)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the Redis link cache")
	return cmd
}
