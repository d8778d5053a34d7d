package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestPathFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	writeFile(t, path, "hello")

	sum, err := Path(path)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", *sum)
}

func TestPathMissing(t *testing.T) {
	sum, err := Path(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestPathDirectoryIsDigestOfConcatenatedContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hel")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "lo")

	sum, err := Path(dir)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", *sum)
}

func TestPathDirectoryIgnoresCreationOrder(t *testing.T) {
	first := t.TempDir()
	writeFile(t, filepath.Join(first, "a.txt"), "alpha")
	writeFile(t, filepath.Join(first, "b.txt"), "beta")
	writeFile(t, filepath.Join(first, "c", "d.txt"), "delta")

	second := t.TempDir()
	writeFile(t, filepath.Join(second, "c", "d.txt"), "delta")
	writeFile(t, filepath.Join(second, "b.txt"), "beta")
	writeFile(t, filepath.Join(second, "a.txt"), "alpha")

	s1, err := Path(first)
	require.NoError(t, err)
	s2, err := Path(second)
	require.NoError(t, err)
	assert.Equal(t, *s1, *s2)
}

func TestPathDirectoryChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "b.txt"), "beta")

	before, err := Path(dir)
	require.NoError(t, err)

	t.Run("content change", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "b.txt"), "betA")
		after, err := Path(dir)
		require.NoError(t, err)
		assert.NotEqual(t, *before, *after)
		writeFile(t, filepath.Join(dir, "b.txt"), "beta")
	})

	t.Run("file removed", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "a.txt")))
		after, err := Path(dir)
		require.NoError(t, err)
		assert.NotEqual(t, *before, *after)
		writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	})

	t.Run("file added", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "z.txt"), "zeta")
		after, err := Path(dir)
		require.NoError(t, err)
		assert.NotEqual(t, *before, *after)
	})
}

func TestPathEmptyDirectory(t *testing.T) {
	sum, err := Path(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", *sum)
}

func TestCanonical(t *testing.T) {
	a, err := Canonical(map[string]any{"b": 1, "a": []string{"x"}})
	require.NoError(t, err)
	b, err := Canonical(map[string]any{"a": []string{"x"}, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Canonical(map[string]any{"a": []string{"y"}, "b": 1})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = Canonical(func() {})
	assert.Error(t, err)
}
