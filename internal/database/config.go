package database

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Config holds database connection configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string

	// MaxConns overrides the pool size when positive.
	MaxConns int32
}

// ConnectionString returns a PostgreSQL keyword/value connection string.
// Values are quoted so passwords with spaces or quotes survive parsing.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		quoteConnValue(c.Host), quoteConnValue(c.Port), quoteConnValue(c.User),
		quoteConnValue(c.Password), quoteConnValue(c.Database), quoteConnValue(c.SSLMode),
	)
}

// MigrationURL returns the pgx5:// URL golang-migrate expects.
func (c *Config) MigrationURL() string {
	return c.url("pgx5")
}

// URL returns a postgres:// URL for drivers that take one (lib/pq, psql).
func (c *Config) URL() string {
	return c.url("postgres")
}

func (c *Config) url(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Validate checks if all required fields are set
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port == "" {
		return fmt.Errorf("database port is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Password == "" {
		return fmt.Errorf("database password is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.SSLMode == "" {
		c.SSLMode = "require" // Default to require SSL
	}
	return nil
}

// ParseConfigURL builds a Config from a postgres:// or postgresql:// URL such as DATABASE_URL.
func ParseConfigURL(raw string) (*Config, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}

	cfg := &Config{
		Host:     u.Hostname(),
		Port:     u.Port(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
