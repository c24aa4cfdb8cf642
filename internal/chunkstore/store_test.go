package chunkstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendLoad(t *testing.T) {
	t.Run("ShouldRoundTripChunksInOrder", func(t *testing.T) {
		s := New(afero.NewMemMapFs(), "db")
		chunks := []string{"first chunk", "second\nwith newline", "  padded  "}
		require.NoError(t, s.Append(chunks))

		got, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, chunks, got)
	})

	t.Run("ShouldPreservePriorContentOnAppend", func(t *testing.T) {
		s := New(afero.NewMemMapFs(), "db")
		require.NoError(t, s.Append([]string{"a", "b"}))
		require.NoError(t, s.Append([]string{"c"}))

		got, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("ShouldTreatMissingFileAsEmpty", func(t *testing.T) {
		s := New(afero.NewMemMapFs(), "db")
		got, err := s.Load()
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ShouldWriteDelimiterAfterEachChunk", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		s := New(fsys, "db")
		require.NoError(t, s.Append([]string{"x", "y"}))

		data, err := afero.ReadFile(fsys, s.Path())
		require.NoError(t, err)
		assert.Equal(t, "x"+Delimiter+"y"+Delimiter, string(data))
	})

	t.Run("ShouldDropEmptySegments", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		s := New(fsys, "db")
		raw := Delimiter + "one" + Delimiter + Delimiter + "two"
		require.NoError(t, afero.WriteFile(fsys, s.Path(), []byte(raw), 0o644))

		got, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, got)
	})

	t.Run("ShouldIgnoreEmptyAppend", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		s := New(fsys, "db")
		require.NoError(t, s.Append(nil))
		exists, err := afero.Exists(fsys, s.Path())
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestStore_Clear(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := New(fsys, "db")
	require.NoError(t, s.Append([]string{"a"}))
	require.NoError(t, s.WriteManifest(Manifest{Model: "hashing-v1", Dimension: 384}))

	require.NoError(t, s.Clear())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
	m, err := s.ReadManifest()
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, s.Clear(), "clearing an empty store is not an error")
}

func TestStore_Manifest(t *testing.T) {
	s := New(afero.NewMemMapFs(), "db")

	m, err := s.ReadManifest()
	require.NoError(t, err)
	assert.Nil(t, m)

	want := Manifest{Model: "openai/text-embedding-3-small", Dimension: 1536}
	require.NoError(t, s.WriteManifest(want))
	m, err = s.ReadManifest()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, want, *m)
}

func TestStore_FileLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s := New(afero.NewOsFs(), dir, WithFileLock())

	require.NoError(t, s.Append([]string{"locked"}))
	require.NoError(t, s.Append([]string{"again"}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"locked", "again"}, got)

	_, err = os.Stat(filepath.Join(dir, lockName))
	assert.NoError(t, err)
}
