package emit

import (
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBundle(t *testing.T) {
	t.Run("chain file holds leaf first, CA second", func(t *testing.T) {
		certPath, keyPath, caPath := writeFixtures(t)
		dir := filepath.Join(t.TempDir(), "bundle")

		chainPath, keyOutPath, err := WriteBundle(dir, certPath, keyPath, caPath)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, ChainFile), chainPath)
		assert.Equal(t, filepath.Join(dir, KeyFile), keyOutPath)

		chain, err := os.ReadFile(chainPath)
		require.NoError(t, err)

		first, rest := pem.Decode(chain)
		require.NotNil(t, first)
		assert.Equal(t, "leaf-data", string(first.Bytes))

		second, rest := pem.Decode(rest)
		require.NotNil(t, second)
		assert.Equal(t, "ca-data", string(second.Bytes))
		assert.Empty(t, rest)
	})

	t.Run("key file is a copy of the leaf key with 0600", func(t *testing.T) {
		certPath, keyPath, caPath := writeFixtures(t)
		dir := filepath.Join(t.TempDir(), "bundle")

		_, keyOutPath, err := WriteBundle(dir, certPath, keyPath, caPath)
		require.NoError(t, err)

		want, err := os.ReadFile(keyPath)
		require.NoError(t, err)
		got, err := os.ReadFile(keyOutPath)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		info, err := os.Stat(keyOutPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("creates the target directory", func(t *testing.T) {
		certPath, keyPath, caPath := writeFixtures(t)
		dir := filepath.Join(t.TempDir(), "nested", "bundle")

		_, _, err := WriteBundle(dir, certPath, keyPath, caPath)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("fails before writing when an input is missing", func(t *testing.T) {
		certPath, keyPath, _ := writeFixtures(t)
		dir := filepath.Join(t.TempDir(), "bundle")

		_, _, err := WriteBundle(dir, certPath, keyPath, filepath.Join(t.TempDir(), "missing.pem"))
		require.Error(t, err)

		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})
}
