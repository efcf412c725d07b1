package gormstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/metadata/gormstore/migrations"
)

const migrationsTable = "schema_migrations"

// PendingMigration describes one migration that has not been applied yet.
type PendingMigration struct {
	Version uint
	Name    string
}

// Migrate applies all pending schema migrations. It runs over the store's
// own connection, so in-memory SQLite databases migrate correctly too.
func (s *GORMStore) Migrate(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := s.migrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("database schema is up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	logger.Info("database migrated", "schema_version", version, "dirty", dirty)
	if dirty {
		logger.Warn("database schema is dirty, manual intervention may be required")
	}
	return nil
}

// MigrationVersion returns the current schema version and whether a failed
// migration left it dirty. Version zero means no migration has run.
func (s *GORMStore) MigrationVersion() (uint, bool, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// PendingMigrations lists the embedded migrations newer than the current
// schema version, in apply order.
func (s *GORMStore) PendingMigrations() ([]PendingMigration, error) {
	current, _, err := s.MigrationVersion()
	if err != nil {
		return nil, err
	}

	src, dir := s.migrationSource()
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var pending []PendingMigration
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version, title, ok := parseMigrationName(name)
		if !ok {
			continue
		}
		if version > current {
			pending = append(pending, PendingMigration{Version: version, Name: title})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending, nil
}

func (s *GORMStore) migrator() (*migrate.Migrate, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}

	var driver database.Driver
	var dbName string
	switch s.config.Type {
	case DatabaseTypeSQLite:
		driver, err = newSQLiteMigrationDriver(sqlDB, migrationsTable)
		dbName = "sqlite"
	case DatabaseTypePostgres:
		driver, err = migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{
			MigrationsTable: migrationsTable,
		})
		dbName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database type: %s", s.config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, dir := s.migrationSource()
	sourceDriver, err := iofs.New(src, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func (s *GORMStore) migrationSource() (fs.FS, string) {
	if s.config.Type == DatabaseTypePostgres {
		return migrations.Postgres, "postgres"
	}
	return migrations.SQLite, "sqlite"
}

// parseMigrationName splits "000002_add_nlink.up.sql" into (2, "add_nlink").
func parseMigrationName(name string) (uint, string, bool) {
	base := strings.TrimSuffix(name, ".up.sql")
	idx := strings.Index(base, "_")
	if idx <= 0 {
		return 0, "", false
	}
	version, err := strconv.ParseUint(base[:idx], 10, 32)
	if err != nil {
		return 0, "", false
	}
	return uint(version), base[idx+1:], true
}
