// Package memfs provides an in-memory blockfs.Filesystem. It backs tests and
// RAM-disk style deployments where the FTP tree does not outlive the process.
package memfs

import (
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kuba23c/ftp-server/pkg/blockfs"
	"github.com/kuba23c/ftp-server/pkg/fattime"
)

// DefaultCapacity bounds the volume when no capacity is configured (16 MiB).
const DefaultCapacity = 16 << 20

// clusterSectors is the fixed cluster size reported by GetFree: 8 sectors of
// 512 bytes, i.e. 4 KiB clusters.
const clusterSectors = 8

type node struct {
	info     blockfs.FileInfo
	data     []byte
	children map[string]*node // nil for files
}

// FS is an in-memory filesystem rooted at "/".
//
// Write sizes are recorded in a single log across all files so tests can
// assert the server's sector-aligned flushing behavior.
type FS struct {
	mu       sync.Mutex
	root     *node
	capacity int64
	used     int64

	// writeLog records the size of every File.Write, in order, across all
	// files. Guarded by mu.
	writeLog []int
}

// New creates an empty in-memory filesystem with the given capacity in bytes.
// A capacity of 0 uses DefaultCapacity.
func New(capacity int64) *FS {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	date, tm := fattime.Pack(time.Now())
	return &FS{
		root: &node{
			info:     blockfs.FileInfo{Name: "/", IsDir: true, Date: date, Time: tm},
			children: map[string]*node{},
		},
		capacity: capacity,
	}
}

// WriteSizes returns a copy of the sizes of all writes performed so far.
func (m *FS) WriteSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.writeLog))
	copy(out, m.writeLog)
	return out
}

// lookup walks to the node at p. Caller holds mu.
func (m *FS) lookup(p string) *node {
	p = path.Clean(p)
	if p == "/" || p == "." {
		return m.root
	}
	cur := m.root
	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if cur.children == nil {
			return nil
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// lookupParent returns the parent directory node and the leaf name.
// Caller holds mu.
func (m *FS) lookupParent(p string) (*node, string) {
	p = path.Clean(p)
	dir, leaf := path.Split(p)
	parent := m.lookup(strings.TrimSuffix(dir, "/"))
	if parent == nil || parent.children == nil {
		return nil, ""
	}
	return parent, leaf
}

func (m *FS) Stat(p string) (blockfs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.lookup(p)
	if n == nil {
		return blockfs.FileInfo{}, blockfs.ErrNotFound
	}
	return n.info, nil
}

func (m *FS) OpenDir(p string) (blockfs.Dir, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.lookup(p)
	if n == nil || n.children == nil {
		return nil, blockfs.ErrNotFound
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]blockfs.FileInfo, 0, len(names))
	for _, name := range names {
		entries = append(entries, n.children[name].info)
	}
	return &dir{entries: entries}, nil
}

type dir struct {
	entries []blockfs.FileInfo
	pos     int
}

func (d *dir) Read() (blockfs.FileInfo, error) {
	if d.pos >= len(d.entries) {
		return blockfs.FileInfo{}, io.EOF
	}
	e := d.entries[d.pos]
	d.pos++
	return e, nil
}

func (d *dir) Close() error { return nil }

func (m *FS) Open(p string, mode blockfs.OpenMode) (blockfs.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch mode {
	case blockfs.OpenRead:
		n := m.lookup(p)
		if n == nil || n.children != nil {
			return nil, blockfs.ErrNotFound
		}
		return &file{fs: m, node: n, reading: true}, nil

	case blockfs.OpenCreateWrite:
		parent, leaf := m.lookupParent(p)
		if parent == nil || leaf == "" {
			return nil, blockfs.ErrNotFound
		}
		n, ok := parent.children[leaf]
		if ok {
			if n.children != nil {
				return nil, blockfs.ErrNotFound
			}
			m.used -= int64(len(n.data))
			n.data = nil
			n.info.Size = 0
		} else {
			date, tm := fattime.Pack(time.Now())
			n = &node{info: blockfs.FileInfo{Name: leaf, Date: date, Time: tm}}
			parent.children[leaf] = n
		}
		return &file{fs: m, node: n}, nil
	}
	return nil, blockfs.ErrNotFound
}

type file struct {
	fs      *FS
	node    *node
	reading bool
	off     int
}

func (f *file) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.off >= len(f.node.data) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[f.off:])
	f.off += n
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.fs.used+int64(len(p)) > f.fs.capacity {
		return 0, blockfs.ErrNoSpace
	}
	f.node.data = append(f.node.data, p...)
	f.node.info.Size = int64(len(f.node.data))
	f.fs.used += int64(len(p))
	f.fs.writeLog = append(f.fs.writeLog, len(p))
	return len(p), nil
}

func (f *file) Close() error {
	if !f.reading {
		f.fs.mu.Lock()
		date, tm := fattime.Pack(time.Now())
		f.node.info.Date, f.node.info.Time = date, tm
		f.fs.mu.Unlock()
	}
	return nil
}

func (m *FS) Unlink(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, leaf := m.lookupParent(p)
	if parent == nil {
		return blockfs.ErrNotFound
	}
	n, ok := parent.children[leaf]
	if !ok {
		return blockfs.ErrNotFound
	}
	if n.children != nil && len(n.children) > 0 {
		return blockfs.ErrNotEmpty
	}
	m.used -= int64(len(n.data))
	delete(parent.children, leaf)
	return nil
}

func (m *FS) Mkdir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, leaf := m.lookupParent(p)
	if parent == nil || leaf == "" {
		return blockfs.ErrNotFound
	}
	if _, ok := parent.children[leaf]; ok {
		return blockfs.ErrExists
	}
	date, tm := fattime.Pack(time.Now())
	parent.children[leaf] = &node{
		info:     blockfs.FileInfo{Name: leaf, IsDir: true, Date: date, Time: tm},
		children: map[string]*node{},
	}
	return nil
}

func (m *FS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldParent, oldLeaf := m.lookupParent(oldPath)
	if oldParent == nil {
		return blockfs.ErrNotFound
	}
	n, ok := oldParent.children[oldLeaf]
	if !ok {
		return blockfs.ErrNotFound
	}
	newParent, newLeaf := m.lookupParent(newPath)
	if newParent == nil || newLeaf == "" {
		return blockfs.ErrNotFound
	}
	delete(oldParent.children, oldLeaf)
	n.info.Name = newLeaf
	newParent.children[newLeaf] = n
	return nil
}

func (m *FS) Utime(p string, info blockfs.FileInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.lookup(p)
	if n == nil {
		return blockfs.ErrNotFound
	}
	n.info.Date, n.info.Time = info.Date, info.Time
	return nil
}

func (m *FS) GetFree() (blockfs.FreeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clusterBytes := int64(clusterSectors * blockfs.SectorSize)
	total := m.capacity / clusterBytes
	usedClusters := (m.used + clusterBytes - 1) / clusterBytes
	return blockfs.FreeInfo{
		FreeClusters:   uint32(total - usedClusters),
		ClusterSectors: clusterSectors,
		TotalClusters:  uint32(total),
	}, nil
}

func (m *FS) SectorSize() int { return blockfs.SectorSize }
