package config

import (
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Addr != ":8080" || !cfg.InstagramSimulate || cfg.Lambda {
		t.Errorf("defaults = %+v", cfg)
	}
	if !cfg.AutomatedPublishingEnabled() {
		t.Error("simulation mode should enable automated publishing")
	}
	if cfg.PhotoStorageEnabled() {
		t.Error("photo storage needs drive credentials")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"PORT":                     "9000",
		"AWS_LAMBDA_FUNCTION_NAME": "showcase-api",
		"LOG_FORMAT":               "console",
		"JWT_SECRET":               "s3cret",
		"DATABASE_URL":             "postgres://u:p@localhost/showcase",
		"DB_MAX_CONNS":             "4",
		"REDIS_ADDR":               "localhost:6379",
		"LINK_CACHE_TTL":           "1h",
		"INSTAGRAM_SIMULATE":       "false",
		"INSTAGRAM_ACCESS_TOKEN":   "tok",
		"INSTAGRAM_USER_ID":        "1784",
		"DRIVE_ACCESS_TOKEN":       "drive",
		"DRIVE_FOLDER_ID":          "folder",
		"RESOLVE_STEP_TIMEOUT":     "2s",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.Addr != ":9000" || !cfg.Lambda || cfg.LogFormat != "console" || cfg.JWTSecret != "s3cret" {
		t.Errorf("server settings = %+v", cfg)
	}
	if cfg.DBMaxConns != 4 || cfg.LinkCacheTTL != time.Hour || cfg.ResolveStepTimeout != 2*time.Second {
		t.Errorf("numeric settings = %+v", cfg)
	}
	if cfg.InstagramSimulate || !cfg.AutomatedPublishingEnabled() || !cfg.PhotoStorageEnabled() {
		t.Errorf("adapter settings = %+v", cfg)
	}
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"READ_TIMEOUT": "soon"}, "READ_TIMEOUT"},
		{"bad bool", map[string]string{"INSTAGRAM_SIMULATE": "perhaps"}, "INSTAGRAM_SIMULATE"},
		{"bad int", map[string]string{"REDIS_DB": "one"}, "REDIS_DB"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"half instagram", map[string]string{"INSTAGRAM_SIMULATE": "false", "INSTAGRAM_USER_ID": "1"}, "INSTAGRAM_ACCESS_TOKEN"},
		{"half drive", map[string]string{"DRIVE_FOLDER_ID": "f"}, "DRIVE_ACCESS_TOKEN"},
		{"delays", map[string]string{"SIMULATE_MIN_DELAY": "1s", "SIMULATE_MAX_DELAY": "10ms"}, "SIMULATE_MAX_DELAY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(lookupFrom(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestAutomatedPublishingDisabledWithoutCredentials(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{"INSTAGRAM_SIMULATE": "false"}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.AutomatedPublishingEnabled() {
		t.Error("live mode without credentials must not enable automated publishing")
	}
}
