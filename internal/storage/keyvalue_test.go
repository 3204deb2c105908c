package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.Empty(t, store.Get("user_auth_token"))
	require.NoError(t, store.Set("user_auth_token", "tok-1"))
	require.Equal(t, "tok-1", store.Get("user_auth_token"))

	require.NoError(t, store.Set("user_auth_token", "tok-2"))
	require.Equal(t, "tok-2", store.Get("user_auth_token"))

	require.NoError(t, store.Delete("user_auth_token"))
	require.Empty(t, store.Get("user_auth_token"))
}

func TestFileStoreDeleteMissingKey(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Delete("never_set"))
}

func TestFileStorePermissions(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "state")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("user_auth_token", "tok-1"))

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	fileInfo, err := os.Stat(filepath.Join(dir, "user_auth_token"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fileInfo.Mode().Perm())
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("a/b", "v"))
	require.Equal(t, "v", store.Get("a/b"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a_b", entries[0].Name())
}

func TestFileStoreRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewFileStore("   ")
	require.Error(t, err)
}

func TestMemStore(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	require.Empty(t, store.Get("k"))
	require.NoError(t, store.Set("k", "v"))
	require.Equal(t, "v", store.Get("k"))
	require.NoError(t, store.Delete("k"))
	require.Empty(t, store.Get("k"))
}
