// The Connection State Machine: the component that owns the duplex stream,
// the send mutex, the ping loop, and the deflate contexts for both
// directions, and turns the frame codec into the receive/send/close API
// applications use.
package websocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vitalvas/wsendpoint/internal/bufpool"
	"github.com/vitalvas/wsendpoint/internal/httpmsg"
	"github.com/vitalvas/wsendpoint/internal/pbuffer"
)

// ConnState is one of the five states a Conn moves through.
type ConnState int32

const (
	StateOpen ConnState = iota
	StateCloseSent
	StateCloseReceived
	StateClosed
	StateAborted
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCloseSent:
		return "close_sent"
	case StateCloseReceived:
		return "close_received"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Context is the post-handshake handle: request metadata, the negotiated
// subprotocol, which side of the connection this is, and a connection
// identifier. The duplex byte stream is held by the Conn that embeds it.
type Context struct {
	ID          uuid.UUID
	Request     *httpmsg.Request
	Subprotocol string
	IsServer    bool
}

// Message is one complete (or partial, see EndOfMessage) application-level
// delivery from Receive.
type Message struct {
	Type             int
	Data             []byte
	EndOfMessage     bool
	CloseStatus      int
	CloseDescription string
}

// Conn is a single negotiated WebSocket connection: the Context plus
// everything the connection state machine owns exclusively — the
// stream, the optional per-direction deflate contexts, the send mutex, the
// ping loop, and the current read cursor.
type Conn struct {
	Context

	stream  netReadWriteCloser
	netConn net.Conn

	cfg  *Config
	sink EventSink

	state atomic.Int32

	sendMu sync.Mutex

	// Deflate is negotiated once at handshake time and never renegotiated.
	deflateEnabled     bool
	outboundNoContext  bool // this side's write direction
	inboundNoContext   bool // this side's read direction
	encoder            *deflateEncoder
	decoder            *deflateDecoder
	sendIsContinuation bool

	// Read-side state carried across Receive calls.
	pendingCursor       *ReadCursor
	pendingMsgType      int
	pendingCompressed   bool
	pendingCompressBuf  []byte // accumulates compressed fragments until fin
	pendingInflated     []byte // decompressed bytes not yet delivered to the caller
	pendingInflatedUsed int

	pingPending  atomic.Bool
	pingTick     atomic.Uint64
	missedPongs  atomic.Int32
	cancelPing   context.CancelFunc
	pingLoopDone chan struct{}
}

// netReadWriteCloser is the minimal stream surface Conn needs; net.Conn and
// plain io.ReadWriteCloser both satisfy it.
type netReadWriteCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// newConn assembles a Conn from a negotiated handshake. ctx.IsServer selects
// which negotiated no-context-takeover flag governs this side's writes vs.
// reads: a server's outbound direction is server_no_context_takeover, a
// client's outbound direction is client_no_context_takeover.
func newConn(ctx Context, stream netReadWriteCloser, cfg *Config, sink EventSink, deflate deflateNegotiationResult) *Conn {
	if cfg == nil {
		cfg = NewConfig()
	}
	if sink == nil {
		sink = nopSink{}
	}

	c := &Conn{
		Context: ctx,
		stream:  stream,
		cfg:     cfg,
		sink:    sink,
	}
	if nc, ok := stream.(net.Conn); ok {
		c.netConn = nc
	}
	c.state.Store(int32(StateOpen))

	c.deflateEnabled = deflate.enabled
	if deflate.enabled {
		if ctx.IsServer {
			c.outboundNoContext = deflate.serverNoContextTakeover
			c.inboundNoContext = deflate.clientNoContextTakeover
		} else {
			c.outboundNoContext = deflate.clientNoContextTakeover
			c.inboundNoContext = deflate.serverNoContextTakeover
		}
		c.encoder = newDeflateEncoder(cfg.PerMessageDeflate.CompressionLevel, c.outboundNoContext)
		c.decoder = newDeflateDecoder(c.inboundNoContext)
	}

	return c
}

// StartPingLoop launches the background keep-alive task. It only starts
// if KeepAliveInterval > 0; callers own the passed context's lifetime, and
// the loop also stops when the connection leaves Open.
func (c *Conn) StartPingLoop(ctx context.Context) {
	if c.cfg.KeepAliveInterval <= 0 {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancelPing = cancel
	c.pingLoopDone = make(chan struct{})
	go c.pingLoop(loopCtx)
}

func (c *Conn) pingLoop(ctx context.Context) {
	defer close(c.pingLoopDone)

	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() != StateOpen {
				return
			}
			if c.pingPending.Load() {
				if int(c.missedPongs.Add(1)) >= c.cfg.MissedPongThreshold {
					c.sink.Warnf("conn %s: missed %d pong(s), closing", c.ID, c.missedPongs.Load())
					_ = c.Close(CloseNormalClosure, "ping timeout")
					return
				}
			}
			tick := c.pingTick.Add(1)
			payload := encodePingTick(tick)
			if err := c.SendControl(PingMessage, payload); err != nil {
				return
			}
			c.pingPending.Store(true)
		}
	}
}

func encodePingTick(tick uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(tick >> (8 * i))
	}
	return b
}

// State returns the connection's current state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Conn) transition(to ConnState) {
	c.state.Store(int32(to))
}

// Send serializes one frame under the send mutex. The first fragment of a
// message carries Text or Binary; subsequent fragments carry Continuation,
// tracked by sendIsContinuation. On the compressed path, each call feeds
// the deflater; only endOfMessage emits a frame to the wire.
func (c *Conn) Send(messageType int, data []byte, endOfMessage bool) error {
	if messageType != TextMessage && messageType != BinaryMessage {
		return ErrInvalidMessageType
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.State() != StateOpen {
		return ErrWriteToClosedConnection
	}

	opcode := Opcode(messageType)
	if c.sendIsContinuation {
		opcode = OpContinuation
	}
	isFirstFragment := !c.sendIsContinuation

	var err error
	if c.deflateEnabled {
		err = c.sendCompressedLocked(opcode, data, endOfMessage, isFirstFragment)
	} else {
		err = WriteFrame(c.stream, opcode, data, endOfMessage, !c.IsServer, false, isFirstFragment)
	}

	if err != nil {
		c.sendMu.Unlock()
		_ = c.Close(CloseInternalServerErr, "write error")
		c.sendMu.Lock()
		return err
	}

	if endOfMessage {
		c.sendIsContinuation = false
	} else if !c.deflateEnabled {
		// On the compressed path nothing has reached the wire yet, so the
		// single frame written at endOfMessage keeps the message's opcode.
		c.sendIsContinuation = true
	}
	return nil
}

func (c *Conn) sendCompressedLocked(opcode Opcode, data []byte, endOfMessage, isFirstFragment bool) error {
	if err := c.encoder.Write(data); err != nil {
		return err
	}
	if !endOfMessage {
		return nil
	}
	compressed, err := c.encoder.Finish()
	if err != nil {
		return err
	}
	return WriteFrame(c.stream, opcode, compressed, true, !c.IsServer, true, isFirstFragment)
}

// SendControl writes a Ping, Pong, or Close control frame immediately,
// bypassing the fragmentation state tracked by Send.
func (c *Conn) SendControl(messageType int, data []byte) error {
	if messageType != PingMessage && messageType != PongMessage && messageType != CloseMessage {
		return ErrInvalidMessageType
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.sendControlLocked(Opcode(messageType), data)
}

func (c *Conn) sendControlLocked(opcode Opcode, data []byte) error {
	return WriteControlFrame(c.stream, opcode, data, !c.IsServer)
}

// Receive consumes frames until a data message or Close is ready for the
// caller, transparently answering Ping/Pong and driving the close
// handshake. buf sizes how much of a large payload is copied per call;
// remaining bytes survive across calls via the pending cursor / pending
// inflate buffer.
func (c *Conn) Receive(buf []byte) (Message, error) {
	if c.pendingInflated != nil && c.pendingInflatedUsed < len(c.pendingInflated) {
		return c.drainPendingInflated(buf), nil
	}

	for {
		var (
			msg     Message
			handled bool
			err     error
		)

		if c.pendingCursor != nil {
			msg, handled, err = c.resumeCursor(buf)
		} else {
			cur, rerr := ReadFrame(c.stream, buf)
			if rerr != nil {
				return Message{}, c.abortWithStatus(rerr)
			}
			msg, handled, err = c.handleFrame(cur, buf)
		}

		if err != nil {
			return Message{}, err
		}
		if handled {
			return msg, nil
		}
		// Ping/Pong answered internally, or a compressed frame/message still
		// needs more chunks before a Message can be produced: loop.
	}
}

// abortWithStatus maps a read error to a close status, attempts a polite
// close, and returns the original error to the caller.
func (c *Conn) abortWithStatus(err error) error {
	status := closeStatusForError(err)
	desc := "read error"
	if c.cfg.IncludeExceptionInClose {
		desc += "\r\n\r\n" + err.Error()
	}
	_ = c.Close(status, desc)
	return err
}

func (c *Conn) drainPendingInflated(buf []byte) Message {
	n := copy(buf, c.pendingInflated[c.pendingInflatedUsed:])
	c.pendingInflatedUsed += n
	done := c.pendingInflatedUsed >= len(c.pendingInflated)
	if done {
		c.pendingInflated = nil
		c.pendingInflatedUsed = 0
	}
	return Message{Type: c.pendingMsgType, Data: buf[:n], EndOfMessage: done}
}

// resumeCursor continues a frame read left incomplete by a previous
// ReadFrame/ReadFrameCursor call and feeds the result through the same
// uncompressed/compressed dispatch handleDataFrame uses, so a compressed
// frame spanning several calls accumulates and inflates exactly once
// instead of handing still-compressed bytes to the caller.
func (c *Conn) resumeCursor(buf []byte) (Message, bool, error) {
	cur, err := ReadFrameCursor(c.stream, buf, *c.pendingCursor)
	if err != nil {
		return Message{}, false, c.abortWithStatus(err)
	}
	return c.processFrameChunk(cur, buf)
}

// handleFrame processes one parsed frame. It returns handled=true when a
// Message is ready to return to the caller.
func (c *Conn) handleFrame(cur ReadCursor, buf []byte) (Message, bool, error) {
	f := cur.Frame

	switch f.Opcode {
	case OpPing:
		if err := c.SendControl(PongMessage, buf[:cur.BytesRead]); err != nil {
			return Message{}, false, err
		}
		return Message{}, false, nil

	case OpPong:
		c.pingPending.Store(false)
		c.missedPongs.Store(0)
		return Message{}, false, nil

	case OpClose:
		return c.handleCloseFrame(f)

	case OpText, OpBinary:
		return c.handleDataFrame(cur, buf, true)

	case OpContinuation:
		return c.handleDataFrame(cur, buf, false)

	default:
		_ = c.Close(CloseProtocolError, "unknown opcode")
		return Message{}, false, &NotSupportedError{Opcode: f.Opcode}
	}
}

func (c *Conn) handleDataFrame(cur ReadCursor, buf []byte, isFirst bool) (Message, bool, error) {
	f := cur.Frame

	if isFirst {
		c.pendingMsgType = int(f.Opcode)
		c.pendingCompressed = f.RSV1
		c.pendingCompressBuf = c.pendingCompressBuf[:0]
	} else if c.pendingMsgType == 0 {
		return Message{}, false, c.abortWithStatus(ErrExpectedContinuation)
	}

	return c.processFrameChunk(cur, buf)
}

// processFrameChunk dispatches the payload bytes a ReadFrame or
// ReadFrameCursor call just produced for the current frame. It is shared
// between the first read of a frame (handleDataFrame) and every resumed
// read of the same frame (resumeCursor), so a payload spanning several
// calls is handled identically regardless of which one is doing the
// reading: the uncompressed path hands chunks straight to the caller, the
// compressed path accumulates across both frame and message boundaries
// and inflates exactly once the whole message has arrived.
func (c *Conn) processFrameChunk(cur ReadCursor, buf []byte) (Message, bool, error) {
	f := cur.Frame

	if !c.pendingCompressed {
		if cur.Done() {
			c.pendingCursor = nil
		} else {
			c.pendingCursor = &cur
		}
		return Message{Type: c.pendingMsgType, Data: buf[:cur.BytesRead], EndOfMessage: f.Fin && cur.Done()}, true, nil
	}

	// Compressed path: accumulate until we have the whole frame, then the
	// whole message, then inflate once.
	c.pendingCompressBuf = append(c.pendingCompressBuf, buf[:cur.BytesRead]...)
	if !cur.Done() {
		c.pendingCursor = &cur
		return Message{}, false, nil
	}
	c.pendingCursor = nil
	if !f.Fin {
		return Message{}, false, nil
	}

	out, err := c.decoder.Inflate(c.pendingCompressBuf)
	c.pendingCompressBuf = c.pendingCompressBuf[:0]
	if err != nil {
		return Message{}, false, c.abortWithStatus(&ProtocolError{Reason: "inflate failed: " + err.Error()})
	}

	n := copy(buf, out)
	done := n >= len(out)
	if !done {
		c.pendingInflated = out
		c.pendingInflatedUsed = n
	}
	return Message{Type: c.pendingMsgType, Data: buf[:n], EndOfMessage: done}, true, nil
}

func (c *Conn) handleCloseFrame(f Frame) (Message, bool, error) {
	status := CloseNoStatusReceived
	desc := ""
	if f.CloseStatusPresent {
		status = int(f.CloseStatus)
		desc = f.CloseDescription
	}

	switch c.State() {
	case StateCloseSent:
		c.transition(StateClosed)
		_ = c.teardown()
	default:
		c.transition(StateCloseReceived)
		_ = c.SendControl(CloseMessage, nil)
		c.transition(StateClosed)
		_ = c.teardown()
	}

	return Message{Type: CloseMessage, CloseStatus: status, CloseDescription: desc, EndOfMessage: true}, true, nil
}

// Close performs the polite close handshake: write a Close frame, move to
// CloseSent, await the peer's answering Close up to CloseWaitTimeout, then
// force teardown either way.
func (c *Conn) Close(status int, description string) error {
	if c.State() != StateOpen {
		return c.teardown()
	}

	payload := formatCloseFramePayload(status, description)
	c.sendMu.Lock()
	err := c.sendControlLocked(OpClose, payload)
	c.sendMu.Unlock()
	if err != nil {
		return c.teardown()
	}

	c.transition(StateCloseSent)

	if c.cfg.CloseWaitTimeout > 0 {
		if c.netConn != nil {
			_ = c.netConn.SetReadDeadline(time.Now().Add(c.cfg.CloseWaitTimeout))
		}
		var scratch [maxControlFramePayloadSize + maxFrameHeaderSize]byte
		_, _ = ReadFrame(c.stream, scratch[:])
		if c.netConn != nil {
			_ = c.netConn.SetReadDeadline(time.Time{})
		}
	}

	c.transition(StateClosed)
	return c.teardown()
}

// CloseOutput is the fire-and-forget variant: write a Close frame, mark
// Closed, and tear down without waiting for the peer's answer.
func (c *Conn) CloseOutput(status int, description string) error {
	payload := formatCloseFramePayload(status, description)
	c.sendMu.Lock()
	_ = c.sendControlLocked(OpClose, payload)
	c.sendMu.Unlock()
	c.transition(StateClosed)
	return c.teardown()
}

// Abort cancels pending reads and marks the connection unusable without
// writing anything, the "any -> Aborted" transition available from every
// state.
func (c *Conn) Abort() error {
	c.transition(StateAborted)
	return c.teardown()
}

func (c *Conn) teardown() error {
	if c.cancelPing != nil {
		c.cancelPing()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return c.stream.Close()
}

// formatCloseFramePayload builds the 2-byte status + UTF-8 reason Close
// frame payload, per RFC 6455 §5.5.1.
func formatCloseFramePayload(status int, description string) []byte {
	out := make([]byte, 2+len(description))
	out[0] = byte(status >> 8)
	out[1] = byte(status)
	copy(out[2:], description)
	return out
}

// readFullMessage is a convenience for callers (e.g. ReadMessage-style
// helpers) that want a full message in one call instead of chunked Receive
// reads; it loops Receive until EndOfMessage using a pooled growable
// buffer.
func (c *Conn) readFullMessage(chunkSize int) (int, []byte, error) {
	if chunkSize <= 0 {
		chunkSize = defaultReadChunkSize
	}
	chunk := bufpool.Rent(chunkSize)
	defer bufpool.Return(chunk)

	acc := pbuffer.New(chunkSize)
	defer acc.Release()

	for {
		msg, err := c.Receive(chunk)
		if err != nil {
			return 0, nil, err
		}
		if msg.Type == CloseMessage {
			return CloseMessage, nil, &CloseError{Code: msg.CloseStatus, Text: msg.CloseDescription}
		}
		if len(msg.Data) > 0 {
			if _, err := acc.Write(msg.Data); err != nil {
				return 0, nil, err
			}
		}
		if msg.EndOfMessage {
			out, err := acc.Used()
			if err != nil {
				return 0, nil, err
			}
			result := make([]byte, len(out))
			copy(result, out)
			return msg.Type, result, nil
		}
	}
}

const defaultReadChunkSize = 4096
