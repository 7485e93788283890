package memfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuba23c/ftp-server/pkg/blockfs"
)

func writeFile(t *testing.T, fs *FS, path string, data []byte) {
	t.Helper()
	f, err := fs.Open(path, blockfs.OpenCreateWrite)
	require.NoError(t, err)
	n, err := f.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, f.Close())
}

func readFile(t *testing.T, fs *FS, path string) []byte {
	t.Helper()
	f, err := fs.Open(path, blockfs.OpenRead)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestCreateStatRead(t *testing.T) {
	t.Parallel()

	fs := New(0)
	writeFile(t, fs, "/f.bin", []byte("hello"))

	info, err := fs.Stat("/f.bin")
	require.NoError(t, err)
	assert.Equal(t, "f.bin", info.Name)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
	assert.NotZero(t, info.Date)

	assert.Equal(t, []byte("hello"), readFile(t, fs, "/f.bin"))
}

func TestStatMissing(t *testing.T) {
	t.Parallel()

	fs := New(0)
	_, err := fs.Stat("/nope")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)
}

func TestOpenCreateTruncates(t *testing.T) {
	t.Parallel()

	fs := New(0)
	writeFile(t, fs, "/f", []byte("long content"))
	writeFile(t, fs, "/f", []byte("x"))

	info, err := fs.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size)
}

func TestMkdirAndReaddir(t *testing.T) {
	t.Parallel()

	fs := New(0)
	require.NoError(t, fs.Mkdir("/sub"))
	writeFile(t, fs, "/file.bin", make([]byte, 100))

	dir, err := fs.OpenDir("/")
	require.NoError(t, err)
	defer dir.Close()

	var names []string
	var dirs []bool
	for {
		info, err := dir.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, info.Name)
		dirs = append(dirs, info.IsDir)
	}
	assert.Equal(t, []string{"file.bin", "sub"}, names)
	assert.Equal(t, []bool{false, true}, dirs)
}

func TestMkdirExisting(t *testing.T) {
	t.Parallel()

	fs := New(0)
	require.NoError(t, fs.Mkdir("/d"))
	assert.ErrorIs(t, fs.Mkdir("/d"), blockfs.ErrExists)
}

func TestUnlink(t *testing.T) {
	t.Parallel()

	fs := New(0)
	writeFile(t, fs, "/f", []byte("x"))
	require.NoError(t, fs.Unlink("/f"))
	_, err := fs.Stat("/f")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)

	// Empty directories unlink; populated ones refuse.
	require.NoError(t, fs.Mkdir("/d"))
	writeFile(t, fs, "/d/inner", []byte("y"))
	assert.ErrorIs(t, fs.Unlink("/d"), blockfs.ErrNotEmpty)
	require.NoError(t, fs.Unlink("/d/inner"))
	require.NoError(t, fs.Unlink("/d"))
}

func TestRename(t *testing.T) {
	t.Parallel()

	fs := New(0)
	writeFile(t, fs, "/a.txt", []byte("data"))
	require.NoError(t, fs.Rename("/a.txt", "/b.txt"))

	_, err := fs.Stat("/a.txt")
	assert.ErrorIs(t, err, blockfs.ErrNotFound)
	info, err := fs.Stat("/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", info.Name)
	assert.Equal(t, []byte("data"), readFile(t, fs, "/b.txt"))
}

func TestUtime(t *testing.T) {
	t.Parallel()

	fs := New(0)
	writeFile(t, fs, "/f", []byte("x"))
	require.NoError(t, fs.Utime("/f", blockfs.FileInfo{Date: 0x5555, Time: 0x1234}))

	info, err := fs.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5555), info.Date)
	assert.Equal(t, uint16(0x1234), info.Time)
}

func TestCapacity(t *testing.T) {
	t.Parallel()

	fs := New(1024)
	f, err := fs.Open("/big", blockfs.OpenCreateWrite)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 2048))
	assert.ErrorIs(t, err, blockfs.ErrNoSpace)
	require.NoError(t, f.Close())
}

func TestWriteSizesRecorded(t *testing.T) {
	t.Parallel()

	fs := New(0)
	f, err := fs.Open("/f", blockfs.OpenCreateWrite)
	require.NoError(t, err)
	for _, n := range []int{32768, 1024} {
		_, err := f.Write(make([]byte, n))
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	assert.Equal(t, []int{32768, 1024}, fs.WriteSizes())
}

func TestGetFree(t *testing.T) {
	t.Parallel()

	fs := New(1 << 20)
	free, err := fs.GetFree()
	require.NoError(t, err)
	assert.Equal(t, uint32(clusterSectors), free.ClusterSectors)
	assert.Equal(t, free.TotalClusters, free.FreeClusters)

	writeFile(t, fs, "/f", make([]byte, 8192))
	free, err = fs.GetFree()
	require.NoError(t, err)
	assert.Equal(t, free.TotalClusters-2, free.FreeClusters)
}
