package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const versionTable = "schema_migrations"

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

type Migrator struct {
	db *DB
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

// Run applies every embedded migration not yet recorded in
// schema_migrations, in lexical order. Each file and its version row are
// written in one transaction.
func (m *Migrator) Run(ctx context.Context) error {
	log := logger.WithComponent("migrator")

	exists, err := m.db.TableExists(ctx, versionTable)
	if err != nil {
		return err
	}
	if !exists {
		log.Infof("Creating %s", versionTable)
		if _, err := m.db.ExecContext(ctx, createVersionTable); err != nil {
			return fmt.Errorf("failed to create %s: %w", versionTable, err)
		}
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	files, err := MigrationFiles()
	if err != nil {
		return fmt.Errorf("failed to get migration files: %w", err)
	}

	for _, file := range Pending(files, applied) {
		if err := m.executeMigration(ctx, file); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}
	return nil
}

// MigrationFiles lists the embedded migration names.
func MigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}

// Pending returns the files whose version is not in applied, keeping order.
func Pending(files []string, applied map[string]bool) []string {
	var out []string
	for _, f := range files {
		if !applied[strings.TrimSuffix(f, ".sql")] {
			out = append(out, f)
		}
	}
	return out
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM "+versionTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) executeMigration(ctx context.Context, filename string) error {
	content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	logger.WithComponent("migrator").Infof("Executing migration: %s", filename)

	return m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO "+versionTable+" (version) VALUES ($1)", strings.TrimSuffix(filename, ".sql"))
		return err
	})
}
