package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

// TestResolveImage verifies extension scanning over the search dirs.
func TestResolveImage(t *testing.T) {
	t.Parallel()

	t.Run("finds png", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := touch(t, dir, "poster.png")
		r := NewResolver([]string{dir})

		src, err := r.ResolveImage("poster")
		require.NoError(t, err)
		assert.Equal(t, SourceLocal, src.Kind)
		assert.Equal(t, path, src.Path)
	})

	t.Run("finds jpeg when no png", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := touch(t, dir, "poster.jpg")
		r := NewResolver([]string{dir})

		src, err := r.ResolveImage("poster")
		require.NoError(t, err)
		assert.Equal(t, path, src.Path)
	})

	t.Run("earlier dir wins", func(t *testing.T) {
		t.Parallel()
		dir1 := t.TempDir()
		dir2 := t.TempDir()
		first := touch(t, dir1, "poster.png")
		touch(t, dir2, "poster.png")
		r := NewResolver([]string{dir1, dir2})

		src, err := r.ResolveImage("poster")
		require.NoError(t, err)
		assert.Equal(t, first, src.Path)
	})

	t.Run("missing is ErrNotFound", func(t *testing.T) {
		t.Parallel()
		r := NewResolver([]string{t.TempDir()})
		_, err := r.ResolveImage("nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// TestResolveVideo verifies the video extension set is separate from
// images.
func TestResolveVideo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	touch(t, dir, "clip.mp4")
	touch(t, dir, "clip.png")
	r := NewResolver([]string{dir})

	src, err := r.ResolveVideo("clip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.mp4"), src.Path)

	_, err = r.ResolveVideo("poster")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoization verifies results, including negative ones, are cached.
func TestMemoization(t *testing.T) {
	t.Parallel()

	t.Run("positive result survives file removal", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := touch(t, dir, "poster.png")
		r := NewResolver([]string{dir})

		_, err := r.ResolveImage("poster")
		require.NoError(t, err)
		require.NoError(t, os.Remove(path))

		src, err := r.ResolveImage("poster")
		require.NoError(t, err)
		assert.Equal(t, path, src.Path)
	})

	t.Run("negative result survives file creation", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		r := NewResolver([]string{dir})

		_, err := r.ResolveImage("poster")
		require.ErrorIs(t, err, ErrNotFound)
		touch(t, dir, "poster.png")

		_, err = r.ResolveImage("poster")
		assert.ErrorIs(t, err, ErrNotFound, "negative lookups are memoized too")
	})

	t.Run("image and video caches are independent", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		touch(t, dir, "clip.mp4")
		r := NewResolver([]string{dir})

		_, err := r.ResolveImage("clip")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = r.ResolveVideo("clip")
		assert.NoError(t, err)
	})
}
