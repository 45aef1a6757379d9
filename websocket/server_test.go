package websocket

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/wsendpoint/internal/httpmsg"
)

func TestUpgraderRejectsNonGet(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	req := &httpmsg.Request{Method: "POST", Target: "/", Proto: "HTTP/1.1", Headers: httpmsg.NewHeaders()}
	req.Headers.Set("Connection", "Upgrade")
	req.Headers.Set("Upgrade", "websocket")
	req.Headers.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Headers.Set("Sec-WebSocket-Version", "13")
	req.Headers.Set("Host", "example.com")

	done := make(chan error, 1)
	go func() { done <- httpmsg.WriteRequest(client, req) }()

	u := &Upgrader{}
	_, err := u.Upgrade(server)
	assert.ErrorIs(t, err, ErrBadHandshake)
	require.NoError(t, <-done)
}

func TestUpgraderHandshakeSucceeds(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	req := &httpmsg.Request{Method: "GET", Target: "/ws", Proto: "HTTP/1.1", Headers: httpmsg.NewHeaders()}
	req.Headers.Set("Connection", "Upgrade")
	req.Headers.Set("Upgrade", "websocket")
	req.Headers.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Headers.Set("Sec-WebSocket-Version", "13")
	req.Headers.Set("Host", "example.com")

	writeDone := make(chan error, 1)
	go func() { writeDone <- httpmsg.WriteRequest(client, req) }()

	u := &Upgrader{CheckOrigin: func(*httpmsg.Request) bool { return true }}
	conn, err := u.Upgrade(server)
	require.NoError(t, err)
	require.NoError(t, <-writeDone)
	t.Cleanup(func() { _ = conn.Abort() })

	resp, err := httpmsg.ReadResponse(client, httpmsg.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 101, resp.StatusCode)
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", resp.Headers.Get("Sec-WebSocket-Accept"))
	assert.True(t, conn.IsServer)
}

func TestCheckSameOriginDefault(t *testing.T) {
	req := &httpmsg.Request{Headers: httpmsg.NewHeaders()}
	req.Headers.Set("Host", "example.com")
	req.Headers.Set("Origin", "https://example.com")
	assert.True(t, checkSameOrigin(req))

	req.Headers.Set("Origin", "https://evil.example")
	assert.False(t, checkSameOrigin(req))
}

func TestUpgraderHandshakeTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	u := &Upgrader{HandshakeTimeout: 10 * time.Millisecond}
	_, err := u.Upgrade(server)
	assert.Error(t, err)
}
