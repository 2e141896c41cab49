package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/spotmap-go/internal/database"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "user_email", "a@x.io"))
	v, ok, err := s.Get(ctx, "user_email")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@x.io", v)

	require.NoError(t, s.Set(ctx, "user_email", "b@x.io"))
	v, _, err = s.Get(ctx, "user_email")
	require.NoError(t, err)
	assert.Equal(t, "b@x.io", v)

	require.NoError(t, s.Delete(ctx, "user_email"))
	require.NoError(t, s.Delete(ctx, "user_email"))
	_, ok, err = s.Get(ctx, "user_email")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.db")
	ctx := context.Background()

	s, err := OpenSQLite(database.Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "private_spots", `{"version":1,"spots":[]}`))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(database.Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "private_spots")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"version":1,"spots":[]}`, v)
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, NewMemoryStore().Set(ctx, "k", "v"))
}
