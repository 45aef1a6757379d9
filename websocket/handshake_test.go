package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/wsendpoint/internal/httpmsg"
)

func TestComputeAcceptKey(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestComputeAcceptKeyAlternateKey(t *testing.T) {
	assert.Equal(t, "HSmrc0sMlYUkAGmm5OPpG2HaGWk=", computeAcceptKey("x3JJHMbDL1EzLkh9GBhXDw=="))
}

func TestIsWebSocketUpgrade(t *testing.T) {
	h := httpmsg.NewHeaders()
	h.Set("Connection", "Upgrade")
	h.Set("Upgrade", "websocket")
	assert.True(t, IsWebSocketUpgrade(h))

	h2 := httpmsg.NewHeaders()
	h2.Set("Connection", "keep-alive")
	assert.False(t, IsWebSocketUpgrade(h2))
}

func TestParseExtensions(t *testing.T) {
	h := httpmsg.NewHeaders()
	h.Set("Sec-WebSocket-Extensions", "permessage-deflate; client_no_context_takeover, other-ext")

	exts := parseExtensions(h)
	require.Len(t, exts, 2)
	assert.Equal(t, "permessage-deflate", exts[0].name)
	_, ok := exts[0].params["client_no_context_takeover"]
	assert.True(t, ok)
	assert.Equal(t, "other-ext", exts[1].name)
}

func TestNegotiateDeflateServerDisabledByDefault(t *testing.T) {
	cfg := NewConfig()
	result, err := negotiateDeflateServer(nil, cfg)
	require.NoError(t, err)
	assert.False(t, result.enabled)
}

func TestNegotiateDeflateServerAccepted(t *testing.T) {
	cfg := NewConfig()
	cfg.PerMessageDeflate.Enabled = true

	exts := []extension{{name: "permessage-deflate", params: map[string]string{"client_no_context_takeover": ""}}}
	result, err := negotiateDeflateServer(exts, cfg)
	require.NoError(t, err)
	assert.True(t, result.enabled)
	assert.True(t, result.clientNoContextTakeover)
	assert.False(t, result.serverNoContextTakeover)
	assert.Contains(t, result.answer, "permessage-deflate")
	assert.Contains(t, result.answer, "client_no_context_takeover")
}

func TestNegotiateDeflateServerDontAllowRejectsPeerRequest(t *testing.T) {
	cfg := NewConfig()
	cfg.PerMessageDeflate.Enabled = true
	cfg.PerMessageDeflate.ServerContextTakeover = DontAllow

	exts := []extension{{name: "permessage-deflate", params: map[string]string{"server_no_context_takeover": ""}}}
	_, err := negotiateDeflateServer(exts, cfg)
	assert.Error(t, err)
}

func TestBuildServerHandshakeResponse(t *testing.T) {
	cfg := NewConfig()
	req := &httpmsg.Request{Method: "GET", Target: "/chat", Proto: "HTTP/1.1", Headers: httpmsg.NewHeaders()}
	req.Headers.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Headers.Set("Sec-WebSocket-Version", "13")

	resp, _, _, err := buildServerHandshakeResponse(req, cfg)
	require.NoError(t, err)
	assert.Equal(t, 101, resp.StatusCode)
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", resp.Headers.Get("Sec-WebSocket-Accept"))
}

func TestBuildServerHandshakeResponseMissingKey(t *testing.T) {
	cfg := NewConfig()
	req := &httpmsg.Request{Method: "GET", Target: "/", Proto: "HTTP/1.1", Headers: httpmsg.NewHeaders()}
	req.Headers.Set("Sec-WebSocket-Version", "13")

	_, _, _, err := buildServerHandshakeResponse(req, cfg)
	assert.ErrorIs(t, err, ErrKeyMissing)
}

func TestBuildServerHandshakeResponseBadVersion(t *testing.T) {
	cfg := NewConfig()
	req := &httpmsg.Request{Method: "GET", Target: "/", Proto: "HTTP/1.1", Headers: httpmsg.NewHeaders()}
	req.Headers.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Headers.Set("Sec-WebSocket-Version", "8")

	_, _, _, err := buildServerHandshakeResponse(req, cfg)
	var verErr *VersionNotSupportedError
	require.ErrorAs(t, err, &verErr)
}

func TestClientServerHandshakeRoundTrip(t *testing.T) {
	cfg := NewConfig()
	req, key, err := buildClientHandshakeRequest("example.com", "/ws", cfg)
	require.NoError(t, err)

	resp, _, subprotocol, err := buildServerHandshakeResponse(req, cfg)
	require.NoError(t, err)
	assert.Empty(t, subprotocol)

	_, _, err = validateClientHandshakeResponse(resp, key)
	require.NoError(t, err)
}

func TestSelectSubprotocol(t *testing.T) {
	cfg := NewConfig()
	cfg.SupportedSubprotocols = []string{"chat.v2", "chat.v1"}

	h := httpmsg.NewHeaders()
	h.Set("Sec-WebSocket-Protocol", "chat.v1, chat.v3")

	assert.Equal(t, "chat.v1", selectSubprotocol(h, cfg))
}
