// The server side of the opening handshake (RFC 6455 §4.2.2): reading a
// raw HTTP/1.1 upgrade request off a net.Conn with the bounded header
// codec and answering with 101 Switching Protocols.
package websocket

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/vitalvas/wsendpoint/internal/httpmsg"
)

// Upgrader upgrades an accepted net.Conn to a WebSocket Conn.
type Upgrader struct {
	// Config governs keep-alive, close-wait, and permessage-deflate
	// negotiation for connections this Upgrader produces. Nil uses
	// NewConfig's defaults.
	Config *Config

	// Log receives diagnostic events for every connection this Upgrader
	// produces. Nil discards them.
	Log EventSink

	// HandshakeTimeout bounds reading the request and writing the
	// response; zero means no deadline.
	HandshakeTimeout time.Duration

	// CheckOrigin decides whether to accept the request's Origin header.
	// Nil accepts same-origin requests and requests with no Origin.
	CheckOrigin func(req *httpmsg.Request) bool
}

// Upgrade performs the server-side handshake on conn, which must already
// be an accepted TCP or TLS stream. On success it returns a Conn in state
// Open; on failure it writes an error response (where the failure occurs
// after headers are parsed) and returns the error.
func (u *Upgrader) Upgrade(conn net.Conn) (*Conn, error) {
	cfg := u.Config
	if cfg == nil {
		cfg = NewConfig()
	}
	sink := u.Log
	if sink == nil {
		sink = nopSink{}
	}

	if u.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(u.HandshakeTimeout))
	}

	readOpts := httpmsg.ReadOptions{MaxHeaderBytes: cfg.MaxHeaderBytes}
	req, err := httpmsg.ReadRequest(conn, readOpts)
	if err != nil {
		return nil, err
	}

	if err := u.validate(req); err != nil {
		u.writeError(conn, err)
		return nil, err
	}

	resp, deflateResult, subprotocol, err := buildServerHandshakeResponse(req, cfg)
	if err != nil {
		u.writeError(conn, err)
		return nil, err
	}

	if err := httpmsg.WriteResponse(conn, resp); err != nil {
		return nil, err
	}

	if u.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	ctx := Context{
		ID:          uuid.New(),
		Request:     req,
		Subprotocol: subprotocol,
		IsServer:    true,
	}
	sink.Infof("conn %s: handshake complete, subprotocol=%q deflate=%v", ctx.ID, subprotocol, deflateResult.enabled)

	return newConn(ctx, conn, cfg, sink, deflateResult), nil
}

func (u *Upgrader) validate(req *httpmsg.Request) error {
	if req.Method != "GET" {
		return ErrBadHandshake
	}
	if !IsWebSocketUpgrade(req.Headers) {
		return ErrBadHandshake
	}
	if req.Headers.Get("Sec-WebSocket-Key") == "" {
		return ErrKeyMissing
	}

	checkOrigin := u.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = checkSameOrigin
	}
	if !checkOrigin(req) {
		return ErrBadHandshake
	}
	return nil
}

func (u *Upgrader) writeError(conn net.Conn, err error) {
	status, reason := 400, "Bad Request"
	if _, ok := err.(*VersionNotSupportedError); ok {
		status, reason = 426, "Upgrade Required"
	}
	resp := &httpmsg.Response{
		Proto:      "HTTP/1.1",
		StatusCode: status,
		Reason:     reason,
		Headers:    httpmsg.NewHeaders(),
	}
	resp.Headers.Set("Connection", "close")
	resp.Headers.Set("Content-Length", "0")
	_ = httpmsg.WriteResponse(conn, resp)
}

// checkSameOrigin is the default CheckOrigin: accept when Origin is absent,
// otherwise require it to match the request's Host.
func checkSameOrigin(req *httpmsg.Request) bool {
	origin := req.Headers.Get("Origin")
	if origin == "" {
		return true
	}
	host := req.Headers.Get("Host")
	return equalASCIIFold(origin, "http://"+host) || equalASCIIFold(origin, "https://"+host)
}

func equalASCIIFold(s, t string) bool {
	if len(s) != len(t) {
		return false
	}
	for i := 0; i < len(s); i++ {
		sr, tr := s[i], t[i]
		if sr >= 'A' && sr <= 'Z' {
			sr += 'a' - 'A'
		}
		if tr >= 'A' && tr <= 'Z' {
			tr += 'a' - 'A'
		}
		if sr != tr {
			return false
		}
	}
	return true
}
