// Package bufpool provides reusable, alignment-guaranteed transfer buffers.
//
// Each FTP session owns one contiguous buffer for the whole of its lifetime:
// replies are formatted into it and file payloads stream through it. The
// buffer start address is aligned for DMA-style block I/O and its size is a
// multiple of the filesystem sector size, so STOR can hand the filesystem
// full sector-aligned writes.
//
// Buffers are recycled through a sync.Pool keyed to one fixed size class; a
// server's sessions all share the same class, so recycling never allocates
// once the pool is warm.
package bufpool

import (
	"sync"
	"unsafe"
)

// Alignment is the guaranteed alignment of the first byte of every buffer.
const Alignment = 32

// Aligned allocates a buffer of exactly size bytes whose backing array starts
// on an Alignment-byte boundary. It over-allocates and slices to the aligned
// offset, so the returned slice must be kept alive as-is (never re-sliced
// from index 0 of the backing array).
func Aligned(size int) []byte {
	raw := make([]byte, size+Alignment)
	off := int(uintptr(unsafe.Pointer(&raw[0])) & (Alignment - 1))
	if off != 0 {
		off = Alignment - off
	}
	return raw[off : off+size : off+size]
}

// Pool recycles aligned buffers of one fixed size.
type Pool struct {
	size int
	pool sync.Pool
}

// NewPool creates a pool handing out buffers of the given size.
func NewPool(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := Aligned(size)
		return &buf
	}
	return p
}

// Size returns the fixed buffer size of this pool.
func (p *Pool) Size() int {
	return p.size
}

// Get returns an aligned buffer of the pool's size. The content is not
// zeroed; callers treat it as scratch.
func (p *Pool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool. Buffers of a different size are dropped
// rather than poisoning the pool.
func (p *Pool) Put(buf []byte) {
	if len(buf) != p.size {
		return
	}
	p.pool.Put(&buf)
}
