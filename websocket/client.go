// The client side of the opening handshake (RFC 6455 §4.1): dialing a TCP
// or TLS stream and writing/reading the raw HTTP/1.1 upgrade exchange with
// the bounded header codec, no net/http involved.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/vitalvas/wsendpoint/internal/httpmsg"
)

// DefaultDialer is a Dialer with all fields at their default values.
var DefaultDialer = &Dialer{}

// Dialer contains options for connecting to a WebSocket server.
type Dialer struct {
	// Config governs keep-alive, close-wait, and permessage-deflate
	// negotiation for connections this Dialer produces. Nil uses
	// NewConfig's defaults.
	Config *Config

	// Log receives diagnostic events for every connection this Dialer
	// produces. Nil discards them.
	Log EventSink

	// NetDialContext dials the underlying TCP connection; nil uses
	// (&net.Dialer{}).DialContext.
	NetDialContext func(ctx context.Context, network, addr string) (net.Conn, error)

	// TLSClientConfig is used for wss:// targets.
	TLSClientConfig *tls.Config

	// HandshakeTimeout bounds the whole dial-plus-handshake; zero means no
	// deadline.
	HandshakeTimeout time.Duration
}

// Dial is DialContext with context.Background.
func (d *Dialer) Dial(urlStr string) (*Conn, *httpmsg.Response, error) {
	return d.DialContext(context.Background(), urlStr)
}

// DialContext performs the client-side opening handshake (RFC 6455 §4.1):
// dial the target, send the upgrade request, and validate the 101
// response.
func (d *Dialer) DialContext(ctx context.Context, urlStr string) (*Conn, *httpmsg.Response, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, nil, err
	}

	var isTLS bool
	switch u.Scheme {
	case "ws":
		isTLS = false
	case "wss":
		isTLS = true
	default:
		return nil, nil, errors.New("websocket: bad scheme")
	}
	if u.Host == "" {
		return nil, nil, errors.New("websocket: empty host")
	}

	cfg := d.Config
	if cfg == nil {
		cfg = NewConfig()
	}
	sink := d.Log
	if sink == nil {
		sink = nopSink{}
	}

	var deadline time.Time
	if d.HandshakeTimeout > 0 {
		deadline = time.Now().Add(d.HandshakeTimeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	conn, err := d.dialNet(ctx, isTLS, hostPortFromURL(u), u.Hostname())
	if err != nil {
		return nil, nil, err
	}
	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}

	path := u.RequestURI()
	if path == "" {
		path = "/"
	}

	req, challengeKey, err := buildClientHandshakeRequest(u.Host, path, cfg)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	if err := httpmsg.WriteRequest(conn, req); err != nil {
		conn.Close()
		return nil, nil, err
	}

	resp, err := httpmsg.ReadResponse(conn, httpmsg.ReadOptions{MaxHeaderBytes: cfg.MaxHeaderBytes})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	deflateResult, subprotocol, err := validateClientHandshakeResponse(resp, challengeKey)
	if err != nil {
		conn.Close()
		return nil, resp, err
	}

	if !deadline.IsZero() {
		_ = conn.SetDeadline(time.Time{})
	}

	ctxVal := Context{
		ID:          uuid.New(),
		Request:     req,
		Subprotocol: subprotocol,
		IsServer:    false,
	}
	sink.Infof("conn %s: handshake complete, subprotocol=%q deflate=%v", ctxVal.ID, subprotocol, deflateResult.enabled)

	return newConn(ctxVal, conn, cfg, sink, deflateResult), resp, nil
}

func (d *Dialer) dialNet(ctx context.Context, isTLS bool, hostPort, serverName string) (net.Conn, error) {
	dial := d.NetDialContext
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	conn, err := dial(ctx, "tcp", hostPort)
	if err != nil {
		return nil, err
	}

	if !isTLS {
		return conn, nil
	}

	tlsConfig := &tls.Config{}
	if d.TLSClientConfig != nil {
		tlsConfig = d.TLSClientConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = serverName
	}

	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// hostPortFromURL returns host:port, filling in the scheme's default port
// when absent.
func hostPortFromURL(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "wss" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}
