package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestRunMigrations_NilConfig(t *testing.T) {
	err := RunMigrations(nil)
	if err == nil || err.Error() != "database config is nil" {
		t.Errorf("RunMigrations(nil) error = %v", err)
	}
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	if _, err := NewMigrator(&Config{Host: "localhost"}); err == nil {
		t.Error("Expected error for incomplete config, got nil")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}

	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for name := range ups {
		if !downs[name] {
			t.Errorf("migration %s has no down file", name)
		}
	}
	for name := range downs {
		if !ups[name] {
			t.Errorf("migration %s has no up file", name)
		}
	}
}

func TestPublicationsMigrationHasActiveOrderIndex(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_create_publications.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	sql := string(data)
	if !strings.Contains(sql, "CREATE UNIQUE INDEX IF NOT EXISTS uniq_publications_active_order") ||
		!strings.Contains(sql, "WHERE NOT deleted") {
		t.Error("publications migration must enforce one active publication per order")
	}
}
