// Package osfs maps the blockfs contract onto a directory of the host
// filesystem. Every FTP path is resolved strictly under the configured root.
package osfs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuba23c/ftp-server/pkg/blockfs"
	"github.com/kuba23c/ftp-server/pkg/fattime"
)

// clusterSectors mirrors a common FAT32 format: 8 sectors (4 KiB) per cluster.
// Host filesystems do not expose cluster geometry, so free-space accounting is
// synthesized from the configured capacity and the bytes in use under root.
const clusterSectors = 8

// FS serves a host directory.
type FS struct {
	root     string
	capacity int64
}

// New creates a filesystem rooted at dir. The directory must already exist.
// capacity bounds the volume reported by GetFree; 0 means 1 GiB.
func New(dir string, capacity int64) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, errors.New("osfs: root is not a directory")
	}
	if capacity <= 0 {
		capacity = 1 << 30
	}
	return &FS{root: abs, capacity: capacity}, nil
}

// resolve maps an FTP path onto the host tree, refusing escapes above root.
func (o *FS) resolve(p string) string {
	clean := filepath.Clean("/" + strings.TrimPrefix(p, "/"))
	return filepath.Join(o.root, filepath.FromSlash(clean))
}

func infoFromEntry(name string, st fs.FileInfo) blockfs.FileInfo {
	date, tm := fattime.Pack(st.ModTime())
	return blockfs.FileInfo{
		Name:  name,
		Size:  st.Size(),
		Date:  date,
		Time:  tm,
		IsDir: st.IsDir(),
	}
}

func (o *FS) Stat(p string) (blockfs.FileInfo, error) {
	st, err := os.Stat(o.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return blockfs.FileInfo{}, blockfs.ErrNotFound
		}
		return blockfs.FileInfo{}, err
	}
	return infoFromEntry(filepath.Base(o.resolve(p)), st), nil
}

func (o *FS) OpenDir(p string) (blockfs.Dir, error) {
	entries, err := os.ReadDir(o.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, blockfs.ErrNotFound
		}
		return nil, err
	}
	return &dir{entries: entries}, nil
}

type dir struct {
	entries []os.DirEntry
	pos     int
}

func (d *dir) Read() (blockfs.FileInfo, error) {
	if d.pos >= len(d.entries) {
		return blockfs.FileInfo{}, io.EOF
	}
	e := d.entries[d.pos]
	d.pos++
	st, err := e.Info()
	if err != nil {
		return blockfs.FileInfo{}, err
	}
	return infoFromEntry(e.Name(), st), nil
}

func (d *dir) Close() error { return nil }

func (o *FS) Open(p string, mode blockfs.OpenMode) (blockfs.File, error) {
	var f *os.File
	var err error
	switch mode {
	case blockfs.OpenRead:
		f, err = os.Open(o.resolve(p))
	case blockfs.OpenCreateWrite:
		f, err = os.OpenFile(o.resolve(p), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	default:
		return nil, blockfs.ErrNotFound
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, blockfs.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (o *FS) Unlink(p string) error {
	err := os.Remove(o.resolve(p))
	if os.IsNotExist(err) {
		return blockfs.ErrNotFound
	}
	return err
}

func (o *FS) Mkdir(p string) error {
	err := os.Mkdir(o.resolve(p), 0755)
	if os.IsExist(err) {
		return blockfs.ErrExists
	}
	return err
}

func (o *FS) Rename(oldPath, newPath string) error {
	err := os.Rename(o.resolve(oldPath), o.resolve(newPath))
	if os.IsNotExist(err) {
		return blockfs.ErrNotFound
	}
	return err
}

func (o *FS) Utime(p string, info blockfs.FileInfo) error {
	t := fattime.Unpack(info.Date, info.Time)
	err := os.Chtimes(o.resolve(p), t, t)
	if os.IsNotExist(err) {
		return blockfs.ErrNotFound
	}
	return err
}

func (o *FS) GetFree() (blockfs.FreeInfo, error) {
	var used int64
	err := filepath.WalkDir(o.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries do not fail accounting
		}
		if !d.IsDir() {
			if st, err := d.Info(); err == nil {
				used += st.Size()
			}
		}
		return nil
	})
	if err != nil {
		return blockfs.FreeInfo{}, err
	}
	clusterBytes := int64(clusterSectors * blockfs.SectorSize)
	total := o.capacity / clusterBytes
	usedClusters := (used + clusterBytes - 1) / clusterBytes
	free := total - usedClusters
	if free < 0 {
		free = 0
	}
	return blockfs.FreeInfo{
		FreeClusters:   uint32(free),
		ClusterSectors: clusterSectors,
		TotalClusters:  uint32(total),
	}, nil
}

func (o *FS) SectorSize() int { return blockfs.SectorSize }
