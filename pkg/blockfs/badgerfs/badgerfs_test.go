package badgerfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuba23c/ftp-server/pkg/blockfs"
)

func newFS(t *testing.T) *FS {
	t.Helper()
	fs, err := Open(t.TempDir(), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func put(t *testing.T, fs *FS, path string, data []byte) {
	t.Helper()
	f, err := fs.Open(path, blockfs.OpenCreateWrite)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func get(t *testing.T, fs *FS, path string) []byte {
	t.Helper()
	f, err := fs.Open(path, blockfs.OpenRead)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestPutStatGet(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	put(t, fs, "/f.bin", []byte("abc"))

	info, err := fs.Stat("/f.bin")
	require.NoError(t, err)
	assert.Equal(t, "f.bin", info.Name)
	assert.Equal(t, int64(3), info.Size)
	assert.NotZero(t, info.Date)

	assert.Equal(t, []byte("abc"), get(t, fs, "/f.bin"))
}

func TestRootAlwaysExists(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	info, err := fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir)
}

func TestMkdirAndListing(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	require.NoError(t, fs.Mkdir("/sub"))
	put(t, fs, "/sub/deep.txt", []byte("d"))
	put(t, fs, "/top.txt", []byte("t"))

	dir, err := fs.OpenDir("/")
	require.NoError(t, err)
	defer dir.Close()

	var names []string
	for {
		info, err := dir.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, info.Name)
	}
	// direct children only; /sub/deep.txt is not listed at the root
	assert.Equal(t, []string{"sub", "top.txt"}, names)
}

func TestMkdirRequiresParent(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	assert.ErrorIs(t, fs.Mkdir("/no/parent"), blockfs.ErrNotFound)
	require.NoError(t, fs.Mkdir("/no"))
	require.NoError(t, fs.Mkdir("/no/parent"))
	assert.ErrorIs(t, fs.Mkdir("/no"), blockfs.ErrExists)
}

func TestUnlinkSemantics(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	put(t, fs, "/f", []byte("x"))
	require.NoError(t, fs.Unlink("/f"))
	_, err := fs.Stat("/f")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)

	require.NoError(t, fs.Mkdir("/d"))
	put(t, fs, "/d/x", []byte("y"))
	assert.ErrorIs(t, fs.Unlink("/d"), blockfs.ErrNotEmpty)
	require.NoError(t, fs.Unlink("/d/x"))
	require.NoError(t, fs.Unlink("/d"))
}

func TestRenameMovesBody(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	put(t, fs, "/a", []byte("body"))
	require.NoError(t, fs.Rename("/a", "/b"))

	_, err := fs.Stat("/a")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)
	assert.Equal(t, []byte("body"), get(t, fs, "/b"))
}

func TestUtime(t *testing.T) {
	t.Parallel()

	fs := newFS(t)
	put(t, fs, "/f", []byte("x"))
	require.NoError(t, fs.Utime("/f", blockfs.FileInfo{Date: 0x0102, Time: 0x0304}))

	info, err := fs.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), info.Date)
	assert.Equal(t, uint16(0x0304), info.Time)
}

func TestCapacityQuota(t *testing.T) {
	t.Parallel()

	fs, err := Open(t.TempDir(), 1024)
	require.NoError(t, err)
	defer fs.Close()

	f, err := fs.Open("/big", blockfs.OpenCreateWrite)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 4096))
	assert.ErrorIs(t, err, blockfs.ErrNoSpace)
}

func TestUsedSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := Open(dir, 1<<20)
	require.NoError(t, err)
	put(t, fs, "/f", make([]byte, 8192))
	require.NoError(t, fs.Close())

	fs, err = Open(dir, 1<<20)
	require.NoError(t, err)
	defer fs.Close()

	free, err := fs.GetFree()
	require.NoError(t, err)
	assert.Equal(t, free.TotalClusters-2, free.FreeClusters)
}
