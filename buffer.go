package npy

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Buffer is the payload storage of an Array: either heap-owned bytes or a
// read-only memory-mapped window over a file region. The returned slice stays
// valid until Close.
type Buffer interface {
	Data() []byte
	Close() error
}

// InMemoryBuffer owns a contiguous heap allocation.
type InMemoryBuffer struct {
	buf []byte
}

var _ Buffer = (*InMemoryBuffer)(nil)

func NewInMemoryBuffer(n int) *InMemoryBuffer {
	return &InMemoryBuffer{buf: make([]byte, n)}
}

func (b *InMemoryBuffer) Data() []byte { return b.buf }
func (b *InMemoryBuffer) Close() error { return nil }

// MappedBuffer is a read-only memory-mapped window over a file region. The
// mapping offset is rounded down to the page size; the sub-page remainder is
// stored so Data can recover the true start.
type MappedBuffer struct {
	mm     []byte // whole mapping, page-aligned
	sub    int    // offset of the requested region within mm
	length int
}

var _ Buffer = (*MappedBuffer)(nil)

// NewMappedBuffer maps length bytes of path starting at offset. The region
// must lie within the file; mapping failures are fatal and propagated.
func NewMappedBuffer(path string, offset, length int) (*MappedBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	if int64(offset)+int64(length) > fi.Size() {
		return nil, fmt.Errorf("mmap %s: region %d+%d exceeds file size %d", path, offset, length, fi.Size())
	}

	page := unix.Getpagesize()
	sub := offset % page
	mm, err := unix.Mmap(int(f.Fd()), int64(offset-sub), length+sub, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &MappedBuffer{mm: mm, sub: sub, length: length}, nil
}

func (b *MappedBuffer) Data() []byte {
	return b.mm[b.sub : b.sub+b.length]
}

func (b *MappedBuffer) Close() error {
	if b.mm == nil {
		return nil
	}
	err := unix.Munmap(b.mm)
	b.mm = nil
	return err
}
