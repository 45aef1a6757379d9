package websocket

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/wsendpoint/internal/httpmsg"
)

func TestDialerRejectsBadScheme(t *testing.T) {
	d := &Dialer{}
	_, _, err := d.DialContext(context.Background(), "http://example.com")
	assert.Error(t, err)
}

func TestDialerRejectsEmptyHost(t *testing.T) {
	d := &Dialer{}
	_, _, err := d.DialContext(context.Background(), "ws:///path")
	assert.Error(t, err)
}

func TestDialerHandshakeRoundTrip(t *testing.T) {
	clientSide, serverSide := net.Pipe()

	serverDone := make(chan error, 1)
	go func() {
		req, err := httpmsg.ReadRequest(serverSide, httpmsg.ReadOptions{})
		if err != nil {
			serverDone <- err
			return
		}
		if req.Target != "/chat" {
			serverDone <- errors.New("unexpected target")
			return
		}
		resp, _, _, err := buildServerHandshakeResponse(req, NewConfig())
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- httpmsg.WriteResponse(serverSide, resp)
	}()

	d := &Dialer{
		NetDialContext: func(context.Context, string, string) (net.Conn, error) {
			return clientSide, nil
		},
	}

	conn, resp, err := d.DialContext(context.Background(), "ws://example.com/chat")
	require.NoError(t, err)
	require.NoError(t, <-serverDone)
	t.Cleanup(func() { _ = conn.Abort(); _ = serverSide.Close() })

	assert.Equal(t, 101, resp.StatusCode)
	assert.False(t, conn.IsServer)
}
