// Package badgerfs stores the FTP tree in a BadgerDB key-value database.
//
// Layout: metadata lives under "m" + path, file bodies under "d" + path. Both
// keys carry the absolute POSIX path the FTP session built, so directory
// listings are prefix scans over the metadata keyspace.
//
// Files are materialized in memory while a handle is open and persisted in a
// single transaction on Close. That matches the server's usage pattern (one
// transfer per session at a time, embedded-scale file sizes): body and
// metadata are written together. Close persists whatever was written, so a
// handle closed after a failed upload stores the bytes received so far.
package badgerfs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kuba23c/ftp-server/pkg/blockfs"
	"github.com/kuba23c/ftp-server/pkg/fattime"
)

const clusterSectors = 8

// meta is the persisted form of a blockfs.FileInfo.
type meta struct {
	Size  int64  `json:"size"`
	Date  uint16 `json:"date"`
	Time  uint16 `json:"time"`
	IsDir bool   `json:"dir"`
}

// FS is a Badger-backed blockfs.Filesystem.
type FS struct {
	db       *badger.DB
	capacity int64

	mu   sync.Mutex
	used int64
}

// Open opens (or creates) the database at dir. capacity bounds the volume
// reported by GetFree; 0 means 1 GiB.
func Open(dir string, capacity int64) (*FS, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerfs: open %s: %w", dir, err)
	}
	if capacity <= 0 {
		capacity = 1 << 30
	}
	f := &FS{db: db, capacity: capacity}
	if err := f.recountUsed(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return f, nil
}

// Close releases the underlying database.
func (b *FS) Close() error { return b.db.Close() }

func metaKey(p string) []byte { return append([]byte("m"), normalize(p)...) }
func dataKey(p string) []byte { return append([]byte("d"), normalize(p)...) }

func normalize(p string) string {
	clean := path.Clean("/" + strings.TrimPrefix(p, "/"))
	return clean
}

// recountUsed sums the stored file sizes once at startup.
func (b *FS) recountUsed() error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte("m")})
		defer it.Close()
		var used int64
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var m meta
				if err := json.Unmarshal(val, &m); err != nil {
					return err
				}
				used += m.Size
				return nil
			})
			if err != nil {
				return err
			}
		}
		b.mu.Lock()
		b.used = used
		b.mu.Unlock()
		return nil
	})
}

func (b *FS) getMeta(txn *badger.Txn, p string) (meta, error) {
	item, err := txn.Get(metaKey(p))
	if err == badger.ErrKeyNotFound {
		return meta{}, blockfs.ErrNotFound
	}
	if err != nil {
		return meta{}, err
	}
	var m meta
	err = item.Value(func(val []byte) error { return json.Unmarshal(val, &m) })
	return m, err
}

func putMeta(txn *badger.Txn, p string, m meta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(p), data)
}

func (b *FS) Stat(p string) (blockfs.FileInfo, error) {
	p = normalize(p)
	if p == "/" {
		return blockfs.FileInfo{Name: "/", IsDir: true}, nil
	}
	var m meta
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = b.getMeta(txn, p)
		return err
	})
	if err != nil {
		return blockfs.FileInfo{}, err
	}
	return blockfs.FileInfo{Name: path.Base(p), Size: m.Size, Date: m.Date, Time: m.Time, IsDir: m.IsDir}, nil
}

func (b *FS) OpenDir(p string) (blockfs.Dir, error) {
	p = normalize(p)
	if p != "/" {
		if info, err := b.Stat(p); err != nil {
			return nil, err
		} else if !info.IsDir {
			return nil, blockfs.ErrNotFound
		}
	}
	var entries []blockfs.FileInfo
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte("m" + strings.TrimSuffix(p, "/") + "/")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key()[1:])
			// direct children only
			if strings.ContainsRune(key[len(prefix)-1:], '/') {
				continue
			}
			var m meta
			err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &m) })
			if err != nil {
				return err
			}
			entries = append(entries, blockfs.FileInfo{
				Name: path.Base(key), Size: m.Size, Date: m.Date, Time: m.Time, IsDir: m.IsDir,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
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

func (b *FS) Open(p string, mode blockfs.OpenMode) (blockfs.File, error) {
	p = normalize(p)
	switch mode {
	case blockfs.OpenRead:
		var body []byte
		err := b.db.View(func(txn *badger.Txn) error {
			m, err := b.getMeta(txn, p)
			if err != nil {
				return err
			}
			if m.IsDir {
				return blockfs.ErrNotFound
			}
			item, err := txn.Get(dataKey(p))
			if err == badger.ErrKeyNotFound {
				body = nil
				return nil
			}
			if err != nil {
				return err
			}
			body, err = item.ValueCopy(nil)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &readFile{r: bytes.NewReader(body)}, nil

	case blockfs.OpenCreateWrite:
		parent := path.Dir(p)
		if parent != "/" {
			info, err := b.Stat(parent)
			if err != nil || !info.IsDir {
				return nil, blockfs.ErrNotFound
			}
		}
		// Truncate semantics: the previous size is released up front.
		err := b.db.Update(func(txn *badger.Txn) error {
			m, err := b.getMeta(txn, p)
			if err == nil {
				if m.IsDir {
					return blockfs.ErrNotFound
				}
				b.mu.Lock()
				b.used -= m.Size
				b.mu.Unlock()
			} else if err != blockfs.ErrNotFound {
				return err
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &writeFile{fs: b, path: p}, nil
	}
	return nil, blockfs.ErrNotFound
}

type readFile struct {
	r *bytes.Reader
}

func (f *readFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *readFile) Write([]byte) (int, error)  { return 0, blockfs.ErrNotFound }
func (f *readFile) Close() error               { return nil }

type writeFile struct {
	fs   *FS
	path string
	buf  []byte
}

func (f *writeFile) Read([]byte) (int, error) { return 0, io.EOF }

func (f *writeFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	over := f.fs.used+int64(len(f.buf)+len(p)) > f.fs.capacity
	f.fs.mu.Unlock()
	if over {
		return 0, blockfs.ErrNoSpace
	}
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func (f *writeFile) Close() error {
	date, tm := fattime.Pack(time.Now())
	err := f.fs.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(f.path), f.buf); err != nil {
			return err
		}
		return putMeta(txn, f.path, meta{Size: int64(len(f.buf)), Date: date, Time: tm})
	})
	if err != nil {
		return err
	}
	f.fs.mu.Lock()
	f.fs.used += int64(len(f.buf))
	f.fs.mu.Unlock()
	return nil
}

func (b *FS) Unlink(p string) error {
	p = normalize(p)
	return b.db.Update(func(txn *badger.Txn) error {
		m, err := b.getMeta(txn, p)
		if err != nil {
			return err
		}
		if m.IsDir {
			// refuse to drop non-empty directories
			prefix := []byte("m" + p + "/")
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
			empty := true
			it.Rewind()
			if it.Valid() {
				empty = false
			}
			it.Close()
			if !empty {
				return blockfs.ErrNotEmpty
			}
		}
		if err := txn.Delete(dataKey(p)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(metaKey(p)); err != nil {
			return err
		}
		b.mu.Lock()
		b.used -= m.Size
		b.mu.Unlock()
		return nil
	})
}

func (b *FS) Mkdir(p string) error {
	p = normalize(p)
	date, tm := fattime.Pack(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := b.getMeta(txn, p); err == nil {
			return blockfs.ErrExists
		} else if err != blockfs.ErrNotFound {
			return err
		}
		if parent := path.Dir(p); parent != "/" {
			m, err := b.getMeta(txn, parent)
			if err != nil || !m.IsDir {
				return blockfs.ErrNotFound
			}
		}
		return putMeta(txn, p, meta{IsDir: true, Date: date, Time: tm})
	})
}

func (b *FS) Rename(oldPath, newPath string) error {
	oldPath, newPath = normalize(oldPath), normalize(newPath)
	return b.db.Update(func(txn *badger.Txn) error {
		m, err := b.getMeta(txn, oldPath)
		if err != nil {
			return err
		}
		var body []byte
		if item, err := txn.Get(dataKey(oldPath)); err == nil {
			if body, err = item.ValueCopy(nil); err != nil {
				return err
			}
			if err := txn.Delete(dataKey(oldPath)); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(metaKey(oldPath)); err != nil {
			return err
		}
		if body != nil {
			if err := txn.Set(dataKey(newPath), body); err != nil {
				return err
			}
		}
		return putMeta(txn, newPath, m)
	})
}

func (b *FS) Utime(p string, info blockfs.FileInfo) error {
	p = normalize(p)
	return b.db.Update(func(txn *badger.Txn) error {
		m, err := b.getMeta(txn, p)
		if err != nil {
			return err
		}
		m.Date, m.Time = info.Date, info.Time
		return putMeta(txn, p, m)
	})
}

func (b *FS) GetFree() (blockfs.FreeInfo, error) {
	b.mu.Lock()
	used := b.used
	b.mu.Unlock()
	clusterBytes := int64(clusterSectors * blockfs.SectorSize)
	total := b.capacity / clusterBytes
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

func (b *FS) SectorSize() int { return blockfs.SectorSize }
