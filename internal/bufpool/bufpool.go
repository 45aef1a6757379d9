// Package bufpool implements a process-wide pool of power-of-two sized byte
// buffers. Frame writes, whole-message reads and pooled growable buffers
// rent their scratch storage from here instead of allocating, per the
// connection's hot-path allocation budget.
package bufpool

import (
	"math/bits"
	"sync"
)

const (
	minShift = 6  // smallest bucket is 64 bytes
	maxShift = 24 // largest bucket is 16 MiB
)

var pools [maxShift - minShift + 1]sync.Pool

func init() {
	for i := range pools {
		shift := minShift + i
		size := 1 << uint(shift)
		pools[i].New = func() any {
			return make([]byte, size)
		}
	}
}

func bucketFor(n int) int {
	if n <= 1<<minShift {
		return 0
	}
	// May return an index past the largest bucket; Rent and Return treat
	// that as "not pooled".
	return bits.Len(uint(n-1)) - minShift
}

// Rent returns a buffer of length >= minSize. The returned slice's length
// equals the bucket's power-of-two size, never less than minSize; a request
// above the largest bucket gets an unpooled slice of exactly minSize.
func Rent(minSize int) []byte {
	if minSize <= 0 {
		minSize = 1
	}
	idx := bucketFor(minSize)
	if idx >= len(pools) {
		// Larger than the largest pooled bucket: allocate directly, do not pool it.
		return make([]byte, minSize)
	}
	buf, _ := pools[idx].Get().([]byte)
	if buf == nil || len(buf) < minSize {
		buf = make([]byte, 1<<uint(minShift+idx))
	}
	return buf
}

// Return releases buf back to the pool it was rented from. Calling Return
// twice on the same backing array is a programming error: it will not
// corrupt the pool, but the buffer may be handed out to two renters at once.
func Return(buf []byte) {
	if buf == nil {
		return
	}
	idx := bucketFor(len(buf))
	if idx >= len(pools) || len(buf) != 1<<uint(minShift+idx) {
		// Not an exact bucket size: came from the overflow path in Rent, drop it.
		return
	}
	pools[idx].Put(buf) //nolint:staticcheck // intentional: reusing a rented slice
}
