// Package websocket implements the WebSocket protocol defined in RFC 6455,
// with optional per-message compression (permessage-deflate, RFC 7692).
//
// This package provides:
//   - Server-side connection upgrading via Upgrader, operating directly on
//     a net.Conn rather than net/http
//   - Client-side connection dialing via Dialer
//   - A resumable frame codec (ReadFrame/ReadFrameCursor/WriteFrame) so a
//     payload larger than the caller's buffer never requires an unbounded
//     read buffer
//   - Per-message compression with independently configurable
//     context-takeover policy per direction
//   - JSON encoding/decoding helpers and prepared messages for efficient
//     broadcasting of a fixed payload to many connections
//
// Server Example:
//
//	ln, _ := net.Listen("tcp", ":8080")
//	for {
//	    raw, _ := ln.Accept()
//	    go func(raw net.Conn) {
//	        upgrader := websocket.Upgrader{Config: websocket.NewConfig()}
//	        conn, err := upgrader.Upgrade(raw)
//	        if err != nil {
//	            return
//	        }
//	        defer conn.Abort()
//
//	        buf := make([]byte, 4096)
//	        for {
//	            msg, err := conn.Receive(buf)
//	            if err != nil {
//	                return
//	            }
//	            if err := conn.Send(msg.Type, msg.Data, msg.EndOfMessage); err != nil {
//	                return
//	            }
//	        }
//	    }(raw)
//	}
//
// Client Example:
//
//	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:8080/ws")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Abort()
//
//	if err := conn.Send(websocket.TextMessage, []byte("hello"), true); err != nil {
//	    log.Fatal(err)
//	}
//
// Concurrency:
//
// A Conn supports one concurrent reader and one concurrent writer.
// Applications must ensure that no more than one goroutine calls Send,
// SendControl, WriteJSON, or WritePreparedMessage at a time, and that no
// more than one goroutine calls Receive or ReadJSON at a time. Send,
// SendControl, Close, and CloseOutput internally serialize on the same
// mutex, so a background ping loop started with StartPingLoop may run
// concurrently with application sends without corrupting the wire.
//
// Close and Abort may be called concurrently with the methods above.
//
// Origin Checking:
//
// The Upgrader calls CheckOrigin to validate the request's Origin header.
// If CheckOrigin is nil, the Upgrader uses a default that rejects
// cross-origin requests unless Origin's host matches the request's Host.
//
// Compression:
//
// Per-message compression is negotiated during the handshake when
// Config.PerMessageDeflate.Enabled is true. Each direction's
// no-context-takeover behavior is controlled independently via
// ServerContextTakeover and ClientContextTakeover.
package websocket
