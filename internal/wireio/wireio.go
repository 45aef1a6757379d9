// Package wireio implements the fixed-length and fixed-width binary I/O
// helpers used pervasively by the frame codec: reading exactly n bytes with
// precise end-of-stream errors, and u16/u64 reads and writes in a chosen
// byte order.
package wireio

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrBufferTooSmall is returned when the caller's buffer cannot hold the
// number of bytes requested.
var ErrBufferTooSmall = errors.New("wireio: buffer too small")

// ErrUnexpectedEndOfStream is returned when the stream ends before n bytes
// have arrived.
var ErrUnexpectedEndOfStream = errors.New("wireio: unexpected end of stream")

// ByteOrder selects the wire endianness for u16/u64 helpers. WebSocket
// frame headers are always big-endian; the flag exists because the same
// helpers are exercised by both orderings in tests.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) impl() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ReadFixed fills buf[:n] from r. buf must have length >= n or
// ErrBufferTooSmall is returned without reading. If the stream ends before
// n bytes arrive, ErrUnexpectedEndOfStream is returned. Context
// cancellation surfaces unchanged through r, since r is expected to be
// cancellation-aware at the caller's boundary.
func ReadFixed(r io.Reader, n int, buf []byte) error {
	if len(buf) < n {
		return ErrBufferTooSmall
	}
	_, err := io.ReadFull(r, buf[:n])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrUnexpectedEndOfStream
		}
		return err
	}
	return nil
}

// ReadU16 reads a 2-byte unsigned integer in the given order.
func ReadU16(r io.Reader, order ByteOrder) (uint16, error) {
	var buf [2]byte
	if err := ReadFixed(r, 2, buf[:]); err != nil {
		return 0, err
	}
	return order.impl().Uint16(buf[:]), nil
}

// ReadU64 reads an 8-byte unsigned integer in the given order.
func ReadU64(r io.Reader, order ByteOrder) (uint64, error) {
	var buf [8]byte
	if err := ReadFixed(r, 8, buf[:]); err != nil {
		return 0, err
	}
	return order.impl().Uint64(buf[:]), nil
}

// WriteU16 writes a 2-byte unsigned integer in the given order.
func WriteU16(w io.Writer, v uint16, order ByteOrder) error {
	var buf [2]byte
	order.impl().PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteU64 writes an 8-byte unsigned integer in the given order.
func WriteU64(w io.Writer, v uint64, order ByteOrder) error {
	var buf [8]byte
	order.impl().PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
