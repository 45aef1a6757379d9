package wireio

import (
	"bytes"
	"testing"
)

func TestReadFixedBufferTooSmall(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2, 3, 4})
	buf := make([]byte, 2)
	if err := ReadFixed(r, 4, buf); err != ErrBufferTooSmall {
		t.Fatalf("got %v, want ErrBufferTooSmall", err)
	}
}

func TestReadFixedUnexpectedEOF(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2})
	buf := make([]byte, 4)
	if err := ReadFixed(r, 4, buf); err != ErrUnexpectedEndOfStream {
		t.Fatalf("got %v, want ErrUnexpectedEndOfStream", err)
	}
}

func TestU16RoundTrip(t *testing.T) {
	for _, order := range []ByteOrder{BigEndian, LittleEndian} {
		for _, v := range []uint16{0, 1, 0x1234, 0xffff} {
			var buf bytes.Buffer
			if err := WriteU16(&buf, v, order); err != nil {
				t.Fatal(err)
			}
			got, err := ReadU16(&buf, order)
			if err != nil {
				t.Fatal(err)
			}
			if got != v {
				t.Fatalf("order=%v: got %d, want %d", order, got, v)
			}
		}
	}
}

func TestU64RoundTrip(t *testing.T) {
	for _, order := range []ByteOrder{BigEndian, LittleEndian} {
		for _, v := range []uint64{0, 1, 0x0102030405060708, ^uint64(0)} {
			var buf bytes.Buffer
			if err := WriteU64(&buf, v, order); err != nil {
				t.Fatal(err)
			}
			got, err := ReadU64(&buf, order)
			if err != nil {
				t.Fatal(err)
			}
			if got != v {
				t.Fatalf("order=%v: got %d, want %d", order, got, v)
			}
		}
	}
}
