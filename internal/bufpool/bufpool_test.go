package bufpool

import "testing"

func TestRentReturnsAtLeastRequestedSize(t *testing.T) {
	for _, n := range []int{1, 63, 64, 65, 1000, 1 << 20} {
		buf := Rent(n)
		if len(buf) < n {
			t.Fatalf("Rent(%d): got len %d, want >= %d", n, len(buf), n)
		}
		Return(buf)
	}
}

func TestRentReusesReturnedBuffer(t *testing.T) {
	buf := Rent(128)
	addr := &buf[0]
	Return(buf)

	buf2 := Rent(128)
	if len(buf2) == 0 || &buf2[0] != addr {
		t.Skip("pool may have been drained by GC between Return and Rent; not a correctness failure")
	}
}

func TestDoubleReturnDoesNotPanic(t *testing.T) {
	buf := Rent(64)
	Return(buf)
	Return(buf) // programming error, but must not corrupt the pool or panic
}

func TestOverflowBucketIsNotPooled(t *testing.T) {
	huge := Rent(1 << 30)
	if len(huge) < 1<<30 {
		t.Fatalf("expected huge buffer, got %d", len(huge))
	}
	Return(huge) // must be a no-op, not a crash
}
