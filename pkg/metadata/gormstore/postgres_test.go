//go:build integration

package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/driftfs/driftfs/pkg/metadata"
)

// newPostgresStore starts a disposable PostgreSQL container and migrates a
// fresh store against it. Postgres outputs the readiness line twice during
// startup, once for bootstrap and once when actually ready.
func newPostgresStore(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("driftfs_test"),
		tcpostgres.WithUsername("driftfs_test"),
		tcpostgres.WithPassword("driftfs_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	store, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "driftfs_test",
			User:     "driftfs_test",
			Password: "driftfs_test",
			SSLMode:  "disable",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresStore(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	t.Run("migrations applied", func(t *testing.T) {
		version, dirty, err := store.MigrationVersion()
		require.NoError(t, err)
		assert.Equal(t, uint(3), version)
		assert.False(t, dirty)

		pending, err := store.PendingMigrations()
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("root and inodes", func(t *testing.T) {
		require.NoError(t, store.EnsureRoot(ctx, 1000, 1000))

		root, err := store.GetInode(ctx, metadata.RootIno)
		require.NoError(t, err)
		assert.True(t, root.IsDir())

		now := time.Now()
		inode := &metadata.Inode{
			Mode: 0o100644, Nlink: 1, UID: 1000, GID: 1000, Size: 7,
			Atime: now, Mtime: now, Ctime: now,
		}
		require.NoError(t, store.CreateInode(ctx, inode))
		assert.Greater(t, inode.Ino, uint64(metadata.RootIno))
	})

	t.Run("dentry uniqueness uses postgres wording", func(t *testing.T) {
		require.NoError(t, store.CreateDentry(ctx, &metadata.Dentry{
			ParentIno: metadata.RootIno, Name: "unique.txt", Ino: 2,
		}))
		err := store.CreateDentry(ctx, &metadata.Dentry{
			ParentIno: metadata.RootIno, Name: "unique.txt", Ino: 3,
		})
		assert.ErrorIs(t, err, metadata.ErrExists)
	})

	t.Run("data and stats", func(t *testing.T) {
		require.NoError(t, store.WriteData(ctx, 2, []byte("content")))
		data, err := store.ReadData(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []byte("content"), data)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.NotZero(t, stats.Inodes)
		assert.NotZero(t, stats.DataBytes)
	})

	t.Run("wal checkpoint is sqlite-only", func(t *testing.T) {
		assert.Error(t, store.CheckpointWAL(ctx))
		_, ok := store.SQLitePath()
		assert.False(t, ok)
	})
}
