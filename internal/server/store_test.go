package server

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weedbot/console/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func writeImage(t *testing.T, store *Store, name string, size int, age time.Duration) {
	t.Helper()
	path := filepath.Join(store.Dir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xff}, size), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	writeImage(t, store, "img_old.jpg", 100, 2*time.Hour)
	writeImage(t, store, "img_new.jpg", 200, 0)
	writeImage(t, store, "notes.txt", 50, 0) // not an image

	images, totalSize, err := store.List()
	require.NoError(t, err)

	require.Len(t, images, 2)
	assert.Equal(t, "img_new.jpg", images[0].Filename, "newest first")
	assert.Equal(t, "img_old.jpg", images[1].Filename)
	assert.Equal(t, int64(300), totalSize)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	writeImage(t, store, "img_001.jpg", 10, 0)

	require.NoError(t, store.Delete("img_001.jpg"))
	assert.False(t, store.Exists("img_001.jpg"))

	err := store.Delete("img_001.jpg")
	assert.ErrorIs(t, err, models.ErrImageNotFound)
}

func TestStore_DeleteMany(t *testing.T) {
	store := newTestStore(t)
	writeImage(t, store, "a.jpg", 10, 0)
	writeImage(t, store, "b.jpg", 10, 0)

	deleted, failures := store.DeleteMany([]string{"a.jpg", "ghost.jpg", "b.jpg"})

	assert.Equal(t, []string{"a.jpg", "b.jpg"}, deleted)
	assert.Equal(t, []string{"ghost.jpg"}, failures)
}

func TestStore_PathRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"../etc/passwd", "a/../../b.jpg", "..", "", "script.sh"} {
		_, err := store.Path(name)
		assert.Error(t, err, "name %q must be rejected", name)
	}

	_, err := store.Path("img_001.jpg")
	assert.NoError(t, err)
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)
	writeImage(t, store, "a.jpg", 10, 0)
	writeImage(t, store, "b.jpg", 10, 0)

	removed, err := store.Clear()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, removed)
	images, _, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestStore_WriteZip(t *testing.T) {
	store := newTestStore(t)
	writeImage(t, store, "a.jpg", 10, 0)
	writeImage(t, store, "b.jpg", 20, 0)

	t.Run("named files", func(t *testing.T) {
		var buf bytes.Buffer
		added, err := store.WriteZip(&buf, []string{"a.jpg", "ghost.jpg"})
		require.NoError(t, err)
		assert.Equal(t, 1, added, "missing files are skipped")

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		require.Len(t, zr.File, 1)
		assert.Equal(t, "a.jpg", zr.File[0].Name)
	})

	t.Run("empty request archives everything", func(t *testing.T) {
		var buf bytes.Buffer
		added, err := store.WriteZip(&buf, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, added)

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		names := []string{zr.File[0].Name, zr.File[1].Name}
		assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)
	})
}
