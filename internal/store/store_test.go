package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitxp/internal/db"
)

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Save(ctx, []byte(`{"xp":{"level":1}}`)))
	raw, err := b.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"xp":{"level":1}}`, string(raw))

	require.NoError(t, b.Save(ctx, []byte(`{"xp":{"level":2}}`)))
	raw, err = b.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"xp":{"level":2}}`, string(raw))
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	f, err := NewFile(path)
	require.NoError(t, err)
	defer f.Close()

	exerciseBackend(t, f)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileBackendEmptyFileIsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	f, err := NewFile(path)
	require.NoError(t, err)

	_, err = f.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewFileRequiresPath(t *testing.T) {
	_, err := NewFile("")
	require.Error(t, err)
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hxp.db")
	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	exerciseBackend(t, s)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	raw, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"xp":{"level":2}}`, string(raw))
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(ctx, Options{StatePath: filepath.Join(dir, "state.json")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, b)
	require.NoError(t, b.Close())

	b, err = Open(ctx, Options{Driver: "SQLite", SQLitePath: filepath.Join(dir, "hxp.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, b)
	require.NoError(t, b.Close())

	_, err = Open(ctx, Options{Driver: "mongo"})
	require.Error(t, err)
}

func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("HXP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HXP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, url)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS hxp_documents`)
	require.NoError(t, err)

	pg, err := NewPostgres(ctx, pool)
	require.NoError(t, err)
	defer pg.Close()

	exerciseBackend(t, pg)
}
