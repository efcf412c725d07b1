package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/driftfs/driftfs/pkg/metadata"
)

// GORMStore implements metadata.Store on SQLite or PostgreSQL.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

var _ metadata.Store = (*GORMStore)(nil)

// Open connects to the database without touching the schema. The migrate
// command uses it to inspect and apply migrations explicitly.
func Open(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL keeps concurrent readers off the writer's back; the busy
		// timeout rides out short lock contention.
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	return &GORMStore{db: db, config: config}, nil
}

// New connects to the database and applies any pending schema migrations.
func New(config *Config) (*GORMStore, error) {
	s, err := Open(config)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// DB returns the underlying GORM handle, useful for advanced queries and
// tests.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// SQLitePath returns the database file path when the backend is SQLite.
func (s *GORMStore) SQLitePath() (string, bool) {
	if s.config.Type != DatabaseTypeSQLite {
		return "", false
	}
	return s.config.SQLite.Path, true
}

// CheckpointWAL flushes the SQLite write-ahead log back into the main
// database file and truncates it, leaving a single-file artifact.
func (s *GORMStore) CheckpointWAL(ctx context.Context) error {
	if s.config.Type != DatabaseTypeSQLite {
		return fmt.Errorf("wal checkpoint only applies to sqlite")
	}
	return s.db.WithContext(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error
}

func (s *GORMStore) EnsureRoot(ctx context.Context, uid, gid uint32) error {
	_, err := s.GetInode(ctx, metadata.RootIno)
	if err == nil {
		return nil
	}
	if !errors.Is(err, metadata.ErrNotFound) {
		return err
	}

	now := time.Now()
	root := &metadata.Inode{
		Ino:   metadata.RootIno,
		Mode:  0o040755,
		Nlink: 2,
		UID:   uid,
		GID:   gid,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
	return s.CreateInode(ctx, root)
}

func (s *GORMStore) CreateInode(ctx context.Context, inode *metadata.Inode) error {
	row := rowFromInode(inode)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create inode: %w", err)
	}
	inode.Ino = row.Ino
	return nil
}

func (s *GORMStore) GetInode(ctx context.Context, ino uint64) (*metadata.Inode, error) {
	var row inodeRow
	if err := s.db.WithContext(ctx).First(&row, "ino = ?", ino).Error; err != nil {
		return nil, convertNotFoundError(err)
	}
	return row.toInode(), nil
}

func (s *GORMStore) UpdateInode(ctx context.Context, inode *metadata.Inode) error {
	res := s.db.WithContext(ctx).
		Model(&inodeRow{}).
		Where("ino = ?", inode.Ino).
		Select("*").Omit("ino").
		Updates(rowFromInode(inode))
	if res.Error != nil {
		return fmt.Errorf("failed to update inode %d: %w", inode.Ino, res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata.ErrNotFound
	}
	return nil
}

func (s *GORMStore) DeleteInode(ctx context.Context, ino uint64) error {
	res := s.db.WithContext(ctx).Delete(&inodeRow{}, "ino = ?", ino)
	if res.Error != nil {
		return fmt.Errorf("failed to delete inode %d: %w", ino, res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata.ErrNotFound
	}
	return nil
}

func (s *GORMStore) CreateDentry(ctx context.Context, dentry *metadata.Dentry) error {
	row := &dentryRow{ParentIno: dentry.ParentIno, Name: dentry.Name, Ino: dentry.Ino}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return metadata.ErrExists
		}
		return fmt.Errorf("failed to create dentry %q: %w", dentry.Name, err)
	}
	return nil
}

func (s *GORMStore) GetDentry(ctx context.Context, parentIno uint64, name string) (*metadata.Dentry, error) {
	var row dentryRow
	err := s.db.WithContext(ctx).
		First(&row, "parent_ino = ? AND name = ?", parentIno, name).Error
	if err != nil {
		return nil, convertNotFoundError(err)
	}
	return &metadata.Dentry{ParentIno: row.ParentIno, Name: row.Name, Ino: row.Ino}, nil
}

func (s *GORMStore) ListDentries(ctx context.Context, parentIno uint64) ([]metadata.Dentry, error) {
	var rows []dentryRow
	err := s.db.WithContext(ctx).
		Where("parent_ino = ?", parentIno).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dentries of %d: %w", parentIno, err)
	}
	dentries := make([]metadata.Dentry, 0, len(rows))
	for _, row := range rows {
		dentries = append(dentries, metadata.Dentry{
			ParentIno: row.ParentIno, Name: row.Name, Ino: row.Ino,
		})
	}
	return dentries, nil
}

func (s *GORMStore) DeleteDentry(ctx context.Context, parentIno uint64, name string) error {
	res := s.db.WithContext(ctx).
		Delete(&dentryRow{}, "parent_ino = ? AND name = ?", parentIno, name)
	if res.Error != nil {
		return fmt.Errorf("failed to delete dentry %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata.ErrNotFound
	}
	return nil
}

func (s *GORMStore) CountDentries(ctx context.Context, parentIno uint64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&dentryRow{}).
		Where("parent_ino = ?", parentIno).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count dentries of %d: %w", parentIno, err)
	}
	return count, nil
}

func (s *GORMStore) ReadData(ctx context.Context, ino uint64) ([]byte, error) {
	var row dataRow
	err := s.db.WithContext(ctx).First(&row, "ino = ?", ino).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data of %d: %w", ino, err)
	}
	return row.Data, nil
}

func (s *GORMStore) WriteData(ctx context.Context, ino uint64, data []byte) error {
	row := &dataRow{Ino: ino, Data: data}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ino"}},
			DoUpdates: clause.AssignmentColumns([]string{"data"}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to write data of %d: %w", ino, err)
	}
	return nil
}

func (s *GORMStore) DeleteData(ctx context.Context, ino uint64) error {
	// Idempotent: deleting data that was never written is fine.
	if err := s.db.WithContext(ctx).Delete(&dataRow{}, "ino = ?", ino).Error; err != nil {
		return fmt.Errorf("failed to delete data of %d: %w", ino, err)
	}
	return nil
}

func (s *GORMStore) GetSymlink(ctx context.Context, ino uint64) (string, error) {
	var row symlinkRow
	if err := s.db.WithContext(ctx).First(&row, "ino = ?", ino).Error; err != nil {
		return "", convertNotFoundError(err)
	}
	return row.Target, nil
}

func (s *GORMStore) SetSymlink(ctx context.Context, ino uint64, target string) error {
	row := &symlinkRow{Ino: ino, Target: target}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ino"}},
			DoUpdates: clause.AssignmentColumns([]string{"target"}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to set symlink of %d: %w", ino, err)
	}
	return nil
}

func (s *GORMStore) DeleteSymlink(ctx context.Context, ino uint64) error {
	if err := s.db.WithContext(ctx).Delete(&symlinkRow{}, "ino = ?", ino).Error; err != nil {
		return fmt.Errorf("failed to delete symlink of %d: %w", ino, err)
	}
	return nil
}

func (s *GORMStore) GetConfig(ctx context.Context, key string) (string, error) {
	var row configRow
	if err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		return "", convertNotFoundError(err)
	}
	return row.Value, nil
}

func (s *GORMStore) SetConfig(ctx context.Context, key, value string) error {
	row := &configRow{Key: key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to set config %q: %w", key, err)
	}
	return nil
}

func (s *GORMStore) Stats(ctx context.Context) (*metadata.Stats, error) {
	stats := &metadata.Stats{}

	var inodes, dentries int64
	if err := s.db.WithContext(ctx).Model(&inodeRow{}).Count(&inodes).Error; err != nil {
		return nil, fmt.Errorf("failed to count inodes: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&dentryRow{}).Count(&dentries).Error; err != nil {
		return nil, fmt.Errorf("failed to count dentries: %w", err)
	}

	var dataBytes int64
	err := s.db.WithContext(ctx).
		Model(&dataRow{}).
		Select("COALESCE(SUM(LENGTH(data)), 0)").
		Scan(&dataBytes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum data bytes: %w", err)
	}

	stats.Inodes = uint64(inodes)
	stats.Dentries = uint64(dentries)
	stats.DataBytes = uint64(dataBytes)
	return stats, nil
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueConstraintError checks if the error is a unique constraint
// violation, for both SQLite and PostgreSQL wording.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// convertNotFoundError maps gorm.ErrRecordNotFound to the domain error.
func convertNotFoundError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metadata.ErrNotFound
	}
	return err
}
