package websocket

import (
	"errors"
	"fmt"

	"github.com/vitalvas/wsendpoint/internal/httpmsg"
)

// Message types defined in RFC 6455, section 11.8.
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

// Close codes defined in RFC 6455, section 7.4.1.
const (
	CloseNormalClosure           = 1000
	CloseGoingAway               = 1001
	CloseProtocolError           = 1002
	CloseUnsupportedData         = 1003
	CloseNoStatusReceived        = 1005
	CloseAbnormalClosure         = 1006
	CloseInvalidFramePayloadData = 1007
	ClosePolicyViolation         = 1008
	CloseMessageTooBig           = 1009
	CloseMandatoryExtension      = 1010
	CloseInternalServerErr       = 1011
	CloseServiceRestart          = 1012
	CloseTryAgainLater           = 1013
	CloseTLSHandshake            = 1015
)

// Sentinel errors returned by the websocket package.
var (
	ErrCloseSent                 = errors.New("websocket: close sent")
	ErrBadHandshake              = errors.New("websocket: bad handshake")
	ErrKeyMissing                = errors.New("websocket: missing Sec-WebSocket-Key")
	ErrInvalidOperation          = errors.New("websocket: invalid operation")
	ErrBufferTooSmall            = errors.New("websocket: buffer too small")
	ErrUnexpectedEndOfStream     = errors.New("websocket: unexpected end of stream")
	ErrPayloadLengthOutOfRange   = errors.New("websocket: payload length out of range")
	ErrMessageTooBig             = errors.New("websocket: message too big")
	ErrCancelled                 = errors.New("websocket: cancelled")
	ErrInvalidMessageType        = errors.New("websocket: invalid message type")
	ErrWriteToClosedConnection   = errors.New("websocket: write to closed connection")
	ErrControlFramePayloadTooBig = errors.New("websocket: control frame payload too big")
	ErrExpectedContinuation      = errors.New("websocket: expected continuation frame")
)

// VersionNotSupportedError is returned when a client requests a
// Sec-WebSocket-Version the negotiator does not implement (only 13).
type VersionNotSupportedError struct {
	Version string
}

func (e *VersionNotSupportedError) Error() string {
	return fmt.Sprintf("websocket: unsupported version %q", e.Version)
}

// HandshakeFailedError carries the peer's response for diagnostics when
// client-side handshake validation fails.
type HandshakeFailedError struct {
	StatusCode int
	Headers    *httpmsg.Headers
	Detail     string
}

func (e *HandshakeFailedError) Error() string {
	return fmt.Sprintf("websocket: handshake failed: %s (status %d)", e.Detail, e.StatusCode)
}

// ProtocolError reports a mid-connection RFC 6455 protocol violation; it
// maps to close status 1002.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "websocket: protocol error: " + e.Reason
}

// NotSupportedError reports an opcode outside the defined RFC 6455 set.
type NotSupportedError struct {
	Opcode Opcode
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("websocket: opcode %d not supported", e.Opcode)
}

// CloseError represents a WebSocket close handshake result: the peer's (or
// our own) close status and reason text.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	return "websocket: close " + closeCodeString(e.Code) + " " + e.Text
}

func closeCodeString(code int) string {
	switch code {
	case CloseNormalClosure:
		return "1000 (normal)"
	case CloseGoingAway:
		return "1001 (going away)"
	case CloseProtocolError:
		return "1002 (protocol error)"
	case CloseUnsupportedData:
		return "1003 (unsupported data)"
	case CloseNoStatusReceived:
		return "1005 (no status)"
	case CloseAbnormalClosure:
		return "1006 (abnormal closure)"
	case CloseInvalidFramePayloadData:
		return "1007 (invalid payload)"
	case ClosePolicyViolation:
		return "1008 (policy violation)"
	case CloseMessageTooBig:
		return "1009 (message too big)"
	case CloseMandatoryExtension:
		return "1010 (mandatory extension)"
	case CloseInternalServerErr:
		return "1011 (internal server error)"
	case CloseServiceRestart:
		return "1012 (service restart)"
	case CloseTryAgainLater:
		return "1013 (try again later)"
	case CloseTLSHandshake:
		return "1015 (TLS handshake)"
	default:
		return fmt.Sprintf("%d", code)
	}
}

// closeStatusForError maps an internal error to the close status the
// connection should send before tearing down, per RFC 6455 §7.4's status
// code ranges.
func closeStatusForError(err error) int {
	var protoErr *ProtocolError
	var notSupported *NotSupportedError
	switch {
	case errors.As(err, &protoErr), errors.As(err, &notSupported):
		return CloseProtocolError
	case errors.Is(err, ErrControlFramePayloadTooBig), errors.Is(err, ErrBufferTooSmall), errors.Is(err, ErrMessageTooBig):
		return CloseMessageTooBig
	case errors.Is(err, ErrUnexpectedEndOfStream):
		return CloseInvalidFramePayloadData
	case errors.Is(err, ErrCancelled):
		return CloseGoingAway
	default:
		return CloseInternalServerErr
	}
}
