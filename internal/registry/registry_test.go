package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/patent-collector/internal/registry"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	r := registry.Load(filepath.Join(t.TempDir(), registry.FileName), zap.NewNop())
	assert.Empty(t, r.List())
	assert.False(t, r.Contains("US1"))
}

func TestLoadMalformedFileIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), registry.FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	r := registry.Load(path, nil)
	assert.Empty(t, r.List())
}

func TestAddRemovePersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), registry.FileName)
	require.NoError(t, os.WriteFile(path, []byte(`["US2","US1"]`), 0o600))

	r := registry.Load(path, zap.NewNop())
	require.Equal(t, []string{"US1", "US2"}, r.List())

	require.True(t, r.Add("US3"))
	require.False(t, r.Add("US3"))
	require.True(t, r.Remove("US1"))
	require.False(t, r.Remove("missing"))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `["US2","US3"]`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	reloaded := registry.Load(path, zap.NewNop())
	require.Equal(t, []string{"US2", "US3"}, reloaded.List())
}

func TestWriteFailureKeepsMemoryAuthoritative(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// The parent of the registry path is a regular file, so every save fails.
	r := registry.Load(filepath.Join(blocker, registry.FileName), zap.NewNop())
	require.True(t, r.Add("US9"))
	require.True(t, r.Contains("US9"))
	require.True(t, r.Remove("US9"))
	require.False(t, r.Contains("US9"))
}
