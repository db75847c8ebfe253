package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/mikelady/showcase/internal/app"
	"github.com/mikelady/showcase/internal/auth"
	"github.com/mikelady/showcase/internal/config"
	"github.com/mikelady/showcase/internal/handlers"
	"github.com/mikelady/showcase/internal/logging"
	"github.com/mikelady/showcase/internal/metrics"
	"github.com/mikelady/showcase/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	router, err := newRouter(a)
	if err != nil {
		return err
	}

	if cfg.Lambda {
		// Lambda freezes the process between invocations; the pool and cache are reused.
		logger.Info("starting lambda handler")
		lambda.Start(httpadapter.New(router).ProxyWithContext)
		return nil
	}

	server := web.NewServer(cfg.Addr, router, web.ServerConfig{
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       web.DefaultServerConfig().IdleTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		MaxHeaderBytes:    web.DefaultServerConfig().MaxHeaderBytes,
	}, logger)
	return server.Run(ctx)
}

// validateServerConfig checks settings the API needs but the CLI does not.
func validateServerConfig(cfg *config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

// newRouter builds the HTTP API on top of the wired services.
func newRouter(a *app.App) (http.Handler, error) {
	tokens, err := auth.NewTokenService([]byte(a.Config.JWTSecret), a.Config.JWTIssuer)
	if err != nil {
		return nil, err
	}

	rc := web.RouterConfig{
		Publications: handlers.NewPublicationsHandler(a.Publications, a.Logger),
		Tokens:       tokens,
		Health:       a,
		Logger:       a.Logger,
	}
	if a.Photos != nil {
		rc.Photos = handlers.NewPhotosHandler(a.Photos, a.Logger)
	}
	return web.NewRouter(rc), nil
}
