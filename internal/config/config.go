package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration for the server and the CLI.
type Config struct {
	Addr              string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	// Lambda is true when running inside AWS Lambda.
	Lambda bool

	LogLevel  string
	LogFormat string
	LogFile   string

	JWTSecret string
	JWTIssuer string

	// DatabaseURL takes precedence over DBSecretName. With neither set the
	// in-memory store is used.
	DatabaseURL   string
	DBSecretName  string
	DBMaxConns    int
	RunMigrations bool

	// RedisAddr enables the resolved link cache when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LinkCacheTTL  time.Duration

	InstagramAccessToken string
	InstagramUserID      string
	InstagramBaseURL     string
	InstagramSimulate    bool
	SimulateMinDelay     time.Duration
	SimulateMaxDelay     time.Duration

	DriveAccessToken   string
	DriveFolderID      string
	DriveBaseURL       string
	DriveAPIBaseURL    string
	DriveUploadBaseURL string
	ResolveStepTimeout time.Duration
}

// Defaults returns the configuration used when no environment is set.
func Defaults() Config {
	return Config{
		Addr:              ":8080",
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,

		LogLevel:  "info",
		LogFormat: "json",

		JWTIssuer: "showcase",

		DBMaxConns:    10,
		RunMigrations: true,

		LinkCacheTTL: 24 * time.Hour,

		InstagramBaseURL:  "https://graph.facebook.com/v19.0",
		InstagramSimulate: true,
		SimulateMinDelay:  150 * time.Millisecond,
		SimulateMaxDelay:  600 * time.Millisecond,

		DriveBaseURL:       "https://drive.google.com",
		DriveAPIBaseURL:    "https://www.googleapis.com",
		DriveUploadBaseURL: "https://www.googleapis.com/upload",
		ResolveStepTimeout: 5 * time.Second,
	}
}

// Load reads defaults, then a .env file if present, then the environment, and validates.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a validated Config from lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()
	env := envReader{lookup: lookup}

	env.str("ADDR", &cfg.Addr)
	if port, ok := env.get("PORT"); ok {
		cfg.Addr = ":" + port
	}
	env.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	env.duration("READ_HEADER_TIMEOUT", &cfg.ReadHeaderTimeout)
	env.duration("READ_TIMEOUT", &cfg.ReadTimeout)
	env.duration("WRITE_TIMEOUT", &cfg.WriteTimeout)
	_, cfg.Lambda = env.get("AWS_LAMBDA_FUNCTION_NAME")

	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.str("LOG_FORMAT", &cfg.LogFormat)
	env.str("LOG_FILE", &cfg.LogFile)

	env.str("JWT_SECRET", &cfg.JWTSecret)
	env.str("JWT_ISSUER", &cfg.JWTIssuer)

	env.str("DATABASE_URL", &cfg.DatabaseURL)
	env.str("DB_SECRET_NAME", &cfg.DBSecretName)
	env.integer("DB_MAX_CONNS", &cfg.DBMaxConns)
	env.boolean("RUN_MIGRATIONS", &cfg.RunMigrations)

	env.str("REDIS_ADDR", &cfg.RedisAddr)
	env.str("REDIS_PASSWORD", &cfg.RedisPassword)
	env.integer("REDIS_DB", &cfg.RedisDB)
	env.duration("LINK_CACHE_TTL", &cfg.LinkCacheTTL)

	env.str("INSTAGRAM_ACCESS_TOKEN", &cfg.InstagramAccessToken)
	env.str("INSTAGRAM_USER_ID", &cfg.InstagramUserID)
	env.str("INSTAGRAM_BASE_URL", &cfg.InstagramBaseURL)
	env.boolean("INSTAGRAM_SIMULATE", &cfg.InstagramSimulate)
	env.duration("SIMULATE_MIN_DELAY", &cfg.SimulateMinDelay)
	env.duration("SIMULATE_MAX_DELAY", &cfg.SimulateMaxDelay)

	env.str("DRIVE_ACCESS_TOKEN", &cfg.DriveAccessToken)
	env.str("DRIVE_FOLDER_ID", &cfg.DriveFolderID)
	env.str("DRIVE_BASE_URL", &cfg.DriveBaseURL)
	env.str("DRIVE_API_BASE_URL", &cfg.DriveAPIBaseURL)
	env.str("DRIVE_UPLOAD_BASE_URL", &cfg.DriveUploadBaseURL)
	env.duration("RESOLVE_STEP_TIMEOUT", &cfg.ResolveStepTimeout)

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
	}
	if c.ResolveStepTimeout <= 0 {
		errs = append(errs, errors.New("RESOLVE_STEP_TIMEOUT must be positive"))
	}
	if c.LinkCacheTTL <= 0 {
		errs = append(errs, errors.New("LINK_CACHE_TTL must be positive"))
	}
	if c.SimulateMinDelay < 0 || c.SimulateMaxDelay < c.SimulateMinDelay {
		errs = append(errs, errors.New("SIMULATE_MAX_DELAY must not be below SIMULATE_MIN_DELAY"))
	}
	if !c.InstagramSimulate && (c.InstagramAccessToken == "") != (c.InstagramUserID == "") {
		errs = append(errs, errors.New("INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_USER_ID must be set together"))
	}
	if (c.DriveAccessToken == "") != (c.DriveFolderID == "") {
		errs = append(errs, errors.New("DRIVE_ACCESS_TOKEN and DRIVE_FOLDER_ID must be set together"))
	}

	return errors.Join(errs...)
}

// AutomatedPublishingEnabled reports whether an automated adapter can be built.
func (c *Config) AutomatedPublishingEnabled() bool {
	return c.InstagramSimulate || (c.InstagramAccessToken != "" && c.InstagramUserID != "")
}

// PhotoStorageEnabled reports whether order photo uploads can be served.
func (c *Config) PhotoStorageEnabled() bool {
	return c.DriveAccessToken != "" && c.DriveFolderID != ""
}

// envReader applies environment overrides and collects parse errors.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
