package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) *StateRepository {
	t.Helper()
	db, err := Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStateRepository(db)
}

func TestStateRepository_LoadMissing(t *testing.T) {
	repo := setupTestRepo(t)
	value, err := repo.Load(context.Background(), "customWords")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestStateRepository_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	require.NoError(t, repo.Save(ctx, "theme", []byte(`"light"`)))
	require.NoError(t, repo.Save(ctx, "theme", []byte(`"dark"`)))

	value, err := repo.Load(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, string(value))

	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"theme"}, keys)
}

func TestStateRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	require.NoError(t, repo.Save(ctx, "wordStats", []byte(`{}`)))
	require.NoError(t, repo.Delete(ctx, "wordStats"))
	require.NoError(t, repo.Delete(ctx, "wordStats"))

	value, err := repo.Load(ctx, "wordStats")
	require.NoError(t, err)
	assert.Nil(t, value)
}
