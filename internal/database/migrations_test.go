package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListMigrationsSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_second.sql", "001_first.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("listMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].version != "001_first.sql" || got[1].version != "002_second.sql" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestListMigrationsEmptyDir(t *testing.T) {
	got, err := listMigrations(t.TempDir())
	if err != nil {
		t.Fatalf("listMigrations() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no migrations, got %d", len(got))
	}
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	got, err := listMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("listMigrations() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected at least one migration in the repository")
	}
}
