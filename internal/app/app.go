// Package app assembles the publication pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikelady/showcase/internal/cache"
	"github.com/mikelady/showcase/internal/clients"
	"github.com/mikelady/showcase/internal/config"
	"github.com/mikelady/showcase/internal/database"
	"github.com/mikelady/showcase/internal/database/memory"
	"github.com/mikelady/showcase/internal/services"
)

// App holds the wired dependencies of one process.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	// Pool is nil when running on the in-memory store.
	Pool  *database.Pool
	Redis *redis.Client

	Store  services.PublicationStore
	Orders services.OrderLookup

	// Instagram is nil when automated publishing is not configured.
	Instagram *clients.InstagramClient
	Drive     *clients.DriveClient
	Resolver  services.LinkResolver

	Publications *services.PublicationService

	// Photos is nil when photo storage is not configured.
	Photos *services.PhotoService
}

// DatabaseConfig resolves database settings from DATABASE_URL or Secrets Manager.
// It returns nil when neither is configured.
func DatabaseConfig(ctx context.Context, cfg *config.Config) (*database.Config, error) {
	var (
		dbConfig *database.Config
		err      error
	)
	switch {
	case cfg.DatabaseURL != "":
		dbConfig, err = database.ParseConfigURL(cfg.DatabaseURL)
	case cfg.DBSecretName != "":
		dbConfig, err = database.LoadConfigFromSecretsManager(ctx, cfg.DBSecretName)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dbConfig.MaxConns = int32(cfg.DBMaxConns)
	return dbConfig, nil
}

// New connects to the configured backends and builds the services.
// Callers must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.initRedis(ctx)
	a.initClients()

	var automated services.AutomatedPublisher
	if a.Instagram != nil {
		automated = a.Instagram
	}
	a.Publications = services.NewPublicationService(a.Store, a.Orders, automated, services.NewManualPublisher(), logger)

	if a.Drive != nil {
		a.Photos = services.NewPhotoService(a.Drive, a.Resolver, logger)
	}
	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	dbConfig, err := DatabaseConfig(ctx, a.Config)
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	if dbConfig == nil {
		a.Logger.Warn("no database configured, using in-memory store")
		a.Store = memory.NewPublicationStore()
		a.Orders = memory.NewOrderLookup()
		return nil
	}

	if a.Config.RunMigrations {
		a.Logger.Info("running database migrations", zap.String("database", dbConfig.Database))
		if err := database.RunMigrations(dbConfig); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, dbConfig)
	if err != nil {
		return err
	}
	a.Pool = pool
	a.Store = database.NewPublicationStore(pool)
	a.Orders = database.NewOrderStore(pool)
	a.Logger.Info("database connection pool initialized",
		zap.String("host", dbConfig.Host),
		zap.String("database", dbConfig.Database),
	)
	return nil
}

// initRedis connects the link cache. An unreachable Redis disables caching.
func (a *App) initRedis(ctx context.Context) {
	if a.Config.RedisAddr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.Logger.Warn("redis unreachable, link cache disabled", zap.String("addr", a.Config.RedisAddr), zap.Error(err))
		_ = client.Close()
		return
	}
	a.Redis = client
}

func (a *App) initClients() {
	cfg := a.Config

	a.Instagram = NewInstagramClient(cfg, a.Logger)
	if a.Instagram != nil {
		a.Logger.Info("automated publishing enabled", zap.Bool("simulate", cfg.InstagramSimulate))
	} else {
		a.Logger.Warn("instagram credentials missing, only the manual path is available")
	}

	a.Drive = NewDriveClient(cfg)

	var rdb redis.Cmdable
	if a.Redis != nil {
		rdb = a.Redis
	}
	a.Resolver = NewLinkResolver(cfg, a.Drive, rdb, a.Logger)
}

// NewInstagramClient builds the automated adapter, or returns nil when it is not configured.
func NewInstagramClient(cfg *config.Config, logger *zap.Logger) *clients.InstagramClient {
	if !cfg.AutomatedPublishingEnabled() {
		return nil
	}
	return clients.NewInstagramClient(clients.InstagramConfig{
		AccessToken:      cfg.InstagramAccessToken,
		UserID:           cfg.InstagramUserID,
		BaseURL:          cfg.InstagramBaseURL,
		Simulate:         cfg.InstagramSimulate,
		SimulateMinDelay: cfg.SimulateMinDelay,
		SimulateMaxDelay: cfg.SimulateMaxDelay,
	}, logger)
}

// NewDriveClient builds the photo storage client, or returns nil when it is not configured.
func NewDriveClient(cfg *config.Config) *clients.DriveClient {
	if !cfg.PhotoStorageEnabled() {
		return nil
	}
	return clients.NewDriveClient(clients.DriveConfig{
		AccessToken:   cfg.DriveAccessToken,
		FolderID:      cfg.DriveFolderID,
		APIBaseURL:    cfg.DriveAPIBaseURL,
		UploadBaseURL: cfg.DriveUploadBaseURL,
	})
}

// NewLinkResolver builds the Drive link resolver. drive enables the metadata strategy
// and rdb the result cache; both may be nil.
func NewLinkResolver(cfg *config.Config, drive *clients.DriveClient, rdb redis.Cmdable, logger *zap.Logger) services.LinkResolver {
	resolverConfig := clients.DriveLinkResolverConfig{
		DriveBaseURL: cfg.DriveBaseURL,
		StepTimeout:  cfg.ResolveStepTimeout,
		HTTPClient:   &http.Client{Timeout: cfg.ResolveStepTimeout},
	}
	if drive != nil {
		resolverConfig.Metadata = drive
	}

	var resolver services.LinkResolver = clients.NewDriveLinkResolver(resolverConfig, logger)
	if rdb != nil {
		resolver = cache.NewCachingResolver(resolver, rdb, cfg.LinkCacheTTL, clients.IsFallbackURL, logger)
	}
	return resolver
}

// Ping checks the database when one is configured.
func (a *App) Ping(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	return a.Pool.Ping(ctx)
}

// Close releases connections. Safe on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	a.Pool.Close()
	return errors.Join(errs...)
}
