package perks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/db/sqlite"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := store.HasEntitlement(ctx, 1, "lucky_charm")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Grant(ctx, 1, "lucky_charm", true))
	require.NoError(t, store.Grant(ctx, 1, "golden_avatar", false))

	ok, err = store.HasEntitlement(ctx, 1, "lucky_charm")
	require.NoError(t, err)
	require.True(t, ok)

	// Не надетый перк не действует
	ok, err = store.HasEntitlement(ctx, 1, "golden_avatar")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.HasEntitlement(ctx, 2, "lucky_charm")
	require.NoError(t, err)
	require.False(t, ok)

	list, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "golden_avatar", list[0].Key)

	require.NoError(t, store.Grant(ctx, 1, "golden_avatar", true))
	ok, err = store.HasEntitlement(ctx, 1, "golden_avatar")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Revoke(ctx, 1, "lucky_charm"))
	ok, err = store.HasEntitlement(ctx, 1, "lucky_charm")
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, store.Grant(ctx, 1, "Bad Key", true))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "perks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exerciseStore(t, NewSQLiteStore(db))
}
