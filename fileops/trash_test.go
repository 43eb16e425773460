package fileops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrash_Put(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(t.TempDir(), "Trash")
	tr := NewTrash(afero.NewOsFs(), root)
	tr.now = func() time.Time { return time.Date(2024, 3, 9, 8, 7, 6, 0, time.Local) }

	f := write(t, filepath.Join(dir, "my photo.jpg"), "delete me")

	trashPath, err := tr.Put(f)
	require.NoError(t, err)

	// Original should be gone
	_, err = os.Stat(f)
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, filepath.Join(root, "files", "my photo.jpg"), trashPath)
	assert.Equal(t, "delete me", read(t, trashPath))

	info := read(t, filepath.Join(root, "info", "my photo.jpg.trashinfo"))
	assert.True(t, strings.HasPrefix(info, "[Trash Info]\n"))
	assert.Contains(t, info, "my%20photo.jpg")
	assert.Contains(t, info, "DeletionDate=2024-03-09T08:07:06")
}

func TestTrash_NameCollision(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(t.TempDir(), "Trash")
	tr := NewTrash(afero.NewOsFs(), root)

	for i := 0; i < 3; i++ {
		f := write(t, filepath.Join(dir, "file.jpg"), "v"+string(rune('0'+i)))
		_, err := tr.Put(f)
		require.NoError(t, err)
	}

	// file.jpg, file_1.jpg, file_2.jpg
	entries, err := os.ReadDir(filepath.Join(root, "files"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "v2", read(t, filepath.Join(root, "files", "file_2.jpg")))

	list, err := tr.List()
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for _, e := range list {
		assert.Equal(t, filepath.Join(dir, "file.jpg"), e.OriginalPath)
	}
}

func TestTrash_Restore(t *testing.T) {
	dir := t.TempDir()
	tr := NewTrash(afero.NewOsFs(), filepath.Join(t.TempDir(), "Trash"))
	f := write(t, filepath.Join(dir, "sub", "a.jpg"), "a")

	_, err := tr.Put(f)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "sub")))

	restored, err := tr.Restore("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, f, restored)
	assert.Equal(t, "a", read(t, f))

	list, err := tr.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = tr.Restore("a.jpg")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestTrash_RestoreOccupied(t *testing.T) {
	dir := t.TempDir()
	tr := NewTrash(afero.NewOsFs(), filepath.Join(t.TempDir(), "Trash"))
	f := write(t, filepath.Join(dir, "a.jpg"), "a")

	_, err := tr.Put(f)
	require.NoError(t, err)
	write(t, f, "replacement")

	_, err = tr.Restore("a.jpg")
	assert.ErrorIs(t, err, ErrDestinationExists)
}

func TestTrash_Directory(t *testing.T) {
	ops, dir := newOps(t)
	sub := filepath.Join(dir, "album")
	write(t, filepath.Join(sub, "a.jpg"), "a")

	require.NoError(t, ops.RemoveDir(sub, true, false))
	assert.False(t, ops.Exists(sub))
	assert.Equal(t, "a", read(t, filepath.Join(ops.Trash().Root(), "files", "album", "a.jpg")))
}

func TestTrash_HomeExpansion(t *testing.T) {
	tr := NewTrash(afero.NewMemMapFs(), "~/.local/share/Trash")
	assert.False(t, strings.HasPrefix(tr.Root(), "~"))
}

func TestTrash_NotConfigured(t *testing.T) {
	ops := New(afero.NewMemMapFs(), "")
	require.NoError(t, afero.WriteFile(ops.Fs(), "/a.jpg", []byte("a"), 0644))
	assert.Error(t, ops.Remove("/a.jpg", true))
	assert.True(t, ops.Exists("/a.jpg"))
}
