// Command pubctl is the operator tool for the publication pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mikelady/showcase/internal/app"
	"github.com/mikelady/showcase/internal/config"
	"github.com/mikelady/showcase/internal/database"
	"github.com/mikelady/showcase/internal/jobs"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newCLI()).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries dependencies that tests replace.
type cli struct {
	loadConfig func() (*config.Config, error)

	// openStore returns the publication store used by reconcile and a release func.
	openStore func(ctx context.Context, cfg *config.Config) (jobs.ReconcileStore, func(), error)

	verbose bool
}

func newCLI() *cli {
	return &cli{loadConfig: config.Load, openStore: openDatabaseStore}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "pubctl",
		Short:         "Operate the order showcase publication pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(c.resolveCmd())
	root.AddCommand(c.credentialsCmd())
	root.AddCommand(c.reconcileCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.tokenCmd())
	return root
}

// setup loads configuration and a stderr logger for one command.
func (c *cli) setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	level := zapcore.WarnLevel
	if c.verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(cmd.ErrOrStderr()),
		level,
	)
	return cfg, zap.New(core), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func openDatabaseStore(ctx context.Context, cfg *config.Config) (jobs.ReconcileStore, func(), error) {
	dbConfig, err := app.DatabaseConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if dbConfig == nil {
		return nil, nil, errNoDatabase
	}
	pool, err := database.NewPool(ctx, dbConfig)
	if err != nil {
		return nil, nil, err
	}
	return database.NewPublicationStore(pool), pool.Close, nil
}
