package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internai/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file:open_memory?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
	require.Error(t, Ping(context.Background(), nil))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrateCreatesTables(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file:migrate_tables?mode=memory&cache=shared", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))

	for _, model := range []any{&models.User{}, &models.PendingUser{}, &models.PasswordResetToken{}, &models.CacheEntry{}} {
		require.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestMigrateEnforcesUniqueEmail(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file:migrate_unique?mode=memory&cache=shared", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&models.User{Email: "a@x.com", Name: "Ann"}).Error)
	require.Error(t, db.Create(&models.User{Email: "A@X.com", Name: "Other"}).Error)
}

func TestMigrateNilHandle(t *testing.T) {
	require.Error(t, Migrate(nil))
}

func TestBuildSQLiteDSNCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.db")
	dsn, err := buildSQLiteDSN(Config{Path: path})
	require.NoError(t, err)
	require.Contains(t, dsn, filepath.ToSlash(path))
	require.DirExists(t, filepath.Dir(path))

	dsn, err = buildSQLiteDSN(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.Contains(t, dsn, "memory")
}
