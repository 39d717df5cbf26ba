package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
)

func TestCollectKeysFromLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("key-a\n\n# comment\nkey-b\n  key-c  \n"), 0o644))

	keys, err := collectKeys(context.Background(), path, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"key-a", "key-b", "key-c"}, keys)
}

func TestCollectKeysFromSDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.sdf")
	require.NoError(t, os.WriteFile(path, []byte(aceticAcidSDF), 0o644))

	keys, err := collectKeys(context.Background(), path, logging.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotEmpty(t, keys[0])
}

func TestCollectKeysMissingFile(t *testing.T) {
	_, err := collectKeys(context.Background(), "/nonexistent/keys.txt", logging.NewNopLogger())
	assert.Error(t, err)
}
