package websocket

import (
	"crypto/rand"
	"io"

	"github.com/vitalvas/wsendpoint/internal/bufpool"
)

var randReader io.Reader = rand.Reader

// WriteFrame serializes one RFC 6455 frame to out, per §4.7. isCompressed
// sets RSV1 only when isFirstFragment is also true — RFC 7692 marks
// compression on the first frame of a message, not on every frame. When
// isClient, the frame is masked with a freshly generated random key;
// masking happens in a scratch buffer rented from the pool so payload is
// never mutated. The header and (masked or plain) payload are assembled
// and written to out in one contiguous write.
func WriteFrame(out io.Writer, opcode Opcode, payload []byte, fin, isClient, isCompressed, isFirstFragment bool) error {
	b0 := byte(opcode)
	if fin {
		b0 |= finalBit
	}
	if isCompressed && isFirstFragment {
		b0 |= rsv1Bit
	}

	payloadLen := len(payload)
	scratch := bufpool.Rent(maxFrameHeaderSize + payloadLen)
	defer bufpool.Return(scratch)

	scratch[0] = b0
	headerLen := 2

	switch {
	case payloadLen <= 125:
		scratch[1] = byte(payloadLen)
	case payloadLen <= 65535:
		scratch[1] = payloadLen16
		scratch[2] = byte(payloadLen >> 8)
		scratch[3] = byte(payloadLen)
		headerLen = 4
	default:
		scratch[1] = payloadLen64
		scratch[2] = byte(payloadLen >> 56)
		scratch[3] = byte(payloadLen >> 48)
		scratch[4] = byte(payloadLen >> 40)
		scratch[5] = byte(payloadLen >> 32)
		scratch[6] = byte(payloadLen >> 24)
		scratch[7] = byte(payloadLen >> 16)
		scratch[8] = byte(payloadLen >> 8)
		scratch[9] = byte(payloadLen)
		headerLen = 10
	}

	if isClient {
		scratch[1] |= maskBit
		var mask [4]byte
		if _, err := io.ReadFull(randReader, mask[:]); err != nil {
			return err
		}
		copy(scratch[headerLen:headerLen+4], mask[:])
		headerLen += 4

		copy(scratch[headerLen:headerLen+payloadLen], payload)
		maskXORCycle(mask, 0, scratch[headerLen:headerLen+payloadLen])
	} else {
		copy(scratch[headerLen:headerLen+payloadLen], payload)
	}

	_, err := out.Write(scratch[:headerLen+payloadLen])
	return err
}

// WriteControlFrame is a convenience wrapper for Ping/Pong/Close frames,
// enforcing RFC 6455 §5.5's <=125 byte control-frame payload limit.
func WriteControlFrame(out io.Writer, opcode Opcode, payload []byte, isClient bool) error {
	if !opcode.isControl() {
		return ErrInvalidOperation
	}
	if len(payload) > maxControlFramePayloadSize {
		return ErrControlFramePayloadTooBig
	}
	return WriteFrame(out, opcode, payload, true, isClient, false, false)
}
