package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSecretManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt"), []byte("from-file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank"), []byte("\n"), 0o600))
	m := NewFileSecretManager(dir)
	ctx := context.Background()

	value, err := m.GetSecret(ctx, "jwt")
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)

	value, err = m.GetSecret(ctx, filepath.Join(dir, "jwt"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)

	_, err = m.GetSecret(ctx, "blank")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = m.GetSecret(ctx, "nope")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}
