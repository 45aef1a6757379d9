// Package pbuffer implements a pool-backed growable byte buffer with both
// stream semantics (read/write/seek) and a free-region view for zero-copy
// fills from a socket or a DEFLATE stream.
package pbuffer

import (
	"errors"
	"io"

	"github.com/vitalvas/wsendpoint/internal/bufpool"
)

// ErrReleased is returned by any operation on a Buffer after Release has
// been called.
var ErrReleased = errors.New("pbuffer: use after release")

// ErrInvalidArgument is returned when a non-positive size is requested from
// GetFreeRegion.
var ErrInvalidArgument = errors.New("pbuffer: invalid argument")

// Buffer is a growable byte buffer backed by a buffer rented from bufpool.
// 0 <= pos <= length <= cap(backing) is maintained at all times.
type Buffer struct {
	backing  []byte
	length   int
	pos      int
	released bool
}

// New acquires a Buffer with an initial capacity of at least minCap from
// the pool.
func New(minCap int) *Buffer {
	if minCap <= 0 {
		minCap = 64
	}
	return &Buffer{backing: bufpool.Rent(minCap)}
}

// Release returns the backing array to the pool. After Release, every
// operation that returns an error (SetLength, Used, GetFreeRegion, Advance,
// Read, Write, Seek) fails with ErrReleased; Len, Cap, Pos and Reset do not
// fail.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	bufpool.Return(b.backing)
	b.backing = nil
	b.released = true
}

// Len returns the logical length of the used region.
func (b *Buffer) Len() int {
	return b.length
}

// Cap returns the capacity of the backing array.
func (b *Buffer) Cap() int {
	return cap(b.backing)
}

// Pos returns the current read/write position.
func (b *Buffer) Pos() int {
	return b.pos
}

// SetLength truncates or extends the logical length. Extending beyond the
// current capacity grows the backing array; newly exposed bytes are zeroed.
func (b *Buffer) SetLength(n int) error {
	if b.released {
		return ErrReleased
	}
	if n < 0 {
		return ErrInvalidArgument
	}
	if n > cap(b.backing) {
		b.grow(n)
	}
	if n > b.length {
		for i := b.length; i < n; i++ {
			b.backing[i] = 0
		}
	}
	b.length = n
	if b.pos > b.length {
		b.pos = b.length
	}
	return nil
}

// Used returns the used-data view: backing[0:length].
func (b *Buffer) Used() ([]byte, error) {
	if b.released {
		return nil, ErrReleased
	}
	return b.backing[:b.length], nil
}

// GetFreeRegion returns a slice of at least minSize bytes starting at the
// current logical length, growing the backing array (doubling strategy) if
// necessary. Callers write into the returned region and then call Advance
// to commit the bytes written.
func (b *Buffer) GetFreeRegion(minSize int) ([]byte, error) {
	if b.released {
		return nil, ErrReleased
	}
	if minSize <= 0 {
		return nil, ErrInvalidArgument
	}
	need := b.length + minSize
	if need > cap(b.backing) {
		b.grow(need)
	}
	return b.backing[b.length:need], nil
}

// Advance commits n bytes written into the region returned by the most
// recent GetFreeRegion call, extending the logical length.
func (b *Buffer) Advance(n int) error {
	if b.released {
		return ErrReleased
	}
	if n < 0 || b.length+n > cap(b.backing) {
		return ErrInvalidArgument
	}
	b.length += n
	return nil
}

func (b *Buffer) grow(need int) {
	newCap := cap(b.backing)
	if newCap == 0 {
		newCap = 64
	}
	for newCap < need {
		newCap *= 2
	}
	fresh := bufpool.Rent(newCap)
	copy(fresh, b.backing[:b.length])
	bufpool.Return(b.backing)
	b.backing = fresh
}

// Read implements io.Reader, reading from the current position forward.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.released {
		return 0, ErrReleased
	}
	if b.pos >= b.length {
		return 0, io.EOF
	}
	n := copy(p, b.backing[b.pos:b.length])
	b.pos += n
	return n, nil
}

// Write implements io.Writer, writing at the current position and
// extending the logical length as needed (growing the backing array if the
// write runs past capacity).
func (b *Buffer) Write(p []byte) (int, error) {
	if b.released {
		return 0, ErrReleased
	}
	end := b.pos + len(p)
	if end > cap(b.backing) {
		b.grow(end)
	}
	copy(b.backing[b.pos:end], p)
	if end > b.length {
		b.length = end
	}
	b.pos = end
	return len(p), nil
}

// Seek implements io.Seeker relative to the logical length (whence values
// match io.SeekStart/Current/End).
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	if b.released {
		return 0, ErrReleased
	}
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = b.pos
	case io.SeekEnd:
		base = b.length
	default:
		return 0, ErrInvalidArgument
	}
	newPos := base + int(offset)
	if newPos < 0 || newPos > b.length {
		return 0, ErrInvalidArgument
	}
	b.pos = newPos
	return int64(newPos), nil
}

// Reset rewinds the buffer to an empty state without releasing it back to
// the pool, so it can be reused for the next message.
func (b *Buffer) Reset() {
	b.length = 0
	b.pos = 0
}
