package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLiteAppliesOnce(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	var applied int
	require.NoError(t, db.GetContext(ctx, &applied, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, applied)

	for _, table := range []string{"classes", "class_sessions", "enrollments", "vouchers"} {
		var n int
		require.NoError(t, db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table), table)
		assert.Zero(t, n, table)
	}
}

func TestApplyMigrationsRollsBackFailedFile(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "broken.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrations := fstest.MapFS{
		"0001_ok.sql":     {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
		"0002_broken.sql": {Data: []byte("CREATE TABLE other (id TEXT);\nINSERT INTO missing_table VALUES (1);")},
	}

	err = ApplyMigrations(ctx, db, migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_broken.sql")

	var names []string
	require.NoError(t, db.SelectContext(ctx, &names, "SELECT name FROM schema_migrations ORDER BY name"))
	assert.Equal(t, []string{"0001_ok.sql"}, names)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'other'"))
	assert.Zero(t, count)
}

func TestSplitStatementsSkipsComments(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n  -- note\nCREATE INDEX i ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX i ON a (id)"}, stmts)
}

func TestNewSQLiteRequiresPath(t *testing.T) {
	_, err := NewSQLite(context.Background(), "  ")
	assert.Error(t, err)
}
