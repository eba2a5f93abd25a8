package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs the same Get/Set/Delete contract against any backend.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, WalletsKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, WalletsKey, `[{"id":"a"}]`))
	require.NoError(t, s.Set(ctx, ViewModeKey, "individual"))

	v, err := s.Get(ctx, WalletsKey)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, v)

	v, err = s.Get(ctx, ViewModeKey)
	require.NoError(t, err)
	assert.Equal(t, "individual", v)

	require.NoError(t, s.Delete(ctx, WalletsKey))
	_, err = s.Get(ctx, WalletsKey)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, s.Delete(ctx, WalletsKey))
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "walletfolio.json")
	s := NewFileStore(path)
	exercise(t, s)

	// a fresh store on the same file sees the persisted view mode
	reopened := NewFileStore(path)
	v, err := reopened.Get(context.Background(), ViewModeKey)
	require.NoError(t, err)
	assert.Equal(t, "individual", v)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file should be renamed away")
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{ "portfolio_wallets": `), 0o644))

	s := NewFileStore(path)
	_, err := s.Get(context.Background(), WalletsKey)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_PermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	defer func() { _ = os.Chmod(dir, 0o700) }()

	s := NewFileStore(filepath.Join(dir, "state.json"))
	err := s.Set(context.Background(), ViewModeKey, "combined")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisOptions{Addr: mr.Addr(), Namespace: "test"})
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Ping(context.Background()))
	exercise(t, s)

	require.NoError(t, s.Set(context.Background(), ViewModeKey, "combined"))
	got, err := mr.Get("test:" + ViewModeKey)
	require.NoError(t, err)
	assert.Equal(t, "combined", got)
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&PersistenceError{Op: "write", Key: WalletsKey, Err: cause})

	assert.ErrorIs(t, err, cause)
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "write", pe.Op)
	assert.Contains(t, err.Error(), WalletsKey)
}
