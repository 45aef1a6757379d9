package websocket

import (
	"bytes"
	"sync"
)

// PreparedMessage caches the on-the-wire representation of a payload so it
// can be sent to many connections without re-serializing (and, when
// compressed, re-deflating) it each time.
type PreparedMessage struct {
	messageType int
	data        []byte
	mu          sync.Mutex
	frames      map[prepareKey][]byte
}

type prepareKey struct {
	isServer bool
	compress bool
}

// NewPreparedMessage returns an initialized PreparedMessage.
func NewPreparedMessage(messageType int, data []byte) (*PreparedMessage, error) {
	if messageType != TextMessage && messageType != BinaryMessage {
		return nil, ErrInvalidMessageType
	}
	return &PreparedMessage{
		messageType: messageType,
		data:        data,
		frames:      make(map[prepareKey][]byte),
	}, nil
}

func (pm *PreparedMessage) frame(key prepareKey, level int) ([]byte, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if f, ok := pm.frames[key]; ok {
		return f, nil
	}

	payload := pm.data
	if key.compress {
		enc := newDeflateEncoder(level, true)
		if err := enc.Write(payload); err != nil {
			return nil, err
		}
		compressed, err := enc.Finish()
		if err != nil {
			return nil, err
		}
		payload = compressed
	}

	var out bytes.Buffer
	if err := WriteFrame(&out, Opcode(pm.messageType), payload, true, !key.isServer, key.compress, true); err != nil {
		return nil, err
	}

	framed := out.Bytes()
	pm.frames[key] = framed
	return framed, nil
}

// WritePreparedMessage writes pm to the connection, reusing a cached frame
// for this connection's (side, compression) combination.
func (c *Conn) WritePreparedMessage(pm *PreparedMessage) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.State() != StateOpen {
		return ErrWriteToClosedConnection
	}

	key := prepareKey{isServer: c.IsServer, compress: c.deflateEnabled}
	level := defaultCompressionLevel
	if c.cfg != nil {
		level = c.cfg.PerMessageDeflate.CompressionLevel
	}

	framed, err := pm.frame(key, level)
	if err != nil {
		return err
	}

	_, err = c.stream.Write(framed)
	return err
}

const defaultCompressionLevel = 1
