package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikelady/showcase/internal/app"
	"github.com/mikelady/showcase/internal/jobs"
)

var errNoDatabase = errors.New("no database configured: set DATABASE_URL or DB_SECRET_NAME")

// reconcileReport is the printed form of jobs.ReconcileResult.
type reconcileReport struct {
	Checked   int      `json:"checked"`
	Gone      int      `json:"gone"`
	Retried   int      `json:"retried"`
	Survived  int      `json:"survived"`
	Skipped   int      `json:"skipped"`
	Survivors []string `json:"survivors,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Duration  string   `json:"duration"`
}

func (c *cli) reconcileCmd() *cobra.Command {
	var (
		dryRun   bool
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-delete taken-down posts that are still live on Instagram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.setup(cmd)
			if err != nil {
				return err
			}
			if cfg.InstagramSimulate {
				return errors.New("reconcile needs live instagram access: set INSTAGRAM_SIMULATE=false")
			}
			client := app.NewInstagramClient(cfg, logger)
			if client == nil {
				return errors.New("instagram is not configured: set INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_USER_ID")
			}

			store, release, err := c.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release()

			job := jobs.NewReconcileJob(store, client, jobs.ReconcileConfig{
				DryRun:   dryRun,
				PageSize: pageSize,
				Logger:   logger,
			})
			result, err := job.Run(cmd.Context())
			if err != nil {
				return err
			}

			report := reconcileReport{
				Checked:   result.Checked,
				Gone:      result.Gone,
				Retried:   result.Retried,
				Survived:  result.Survived,
				Skipped:   result.Skipped,
				Survivors: result.Survivors,
				Duration:  result.Duration.String(),
			}
			for _, e := range result.Errors {
				report.Errors = append(report.Errors, e.Error())
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d publications could not be reconciled", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report live posts without deleting them")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "records per store query (default 200)")
	return cmd
}
