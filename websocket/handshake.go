// The handshake negotiator: producing the server's upgrade response,
// validating the client's view of that response, and negotiating
// permessage-deflate parameters carried in Sec-WebSocket-Extensions.
package websocket

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // mandated by RFC 6455 §4.2.2, not used for security
	"encoding/base64"
	"io"
	"strconv"
	"strings"

	"github.com/vitalvas/wsendpoint/internal/httpmsg"
)

const (
	websocketGUID    = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	websocketVersion = "13"
)

// generateChallengeKey returns a random 16-byte, base64-encoded
// Sec-WebSocket-Key, per RFC 6455 §4.1.
func generateChallengeKey() (string, error) {
	key := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// computeAcceptKey computes Sec-WebSocket-Accept per RFC 6455 §4.2.2 item
// 5.4: base64(sha1(key ++ GUID)).
func computeAcceptKey(challengeKey string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(challengeKey))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsWebSocketUpgrade reports whether h carries the tokens RFC 6455 §4.2.1
// items 1-2 require of an upgrade request.
func IsWebSocketUpgrade(h *httpmsg.Headers) bool {
	return h.ContainsToken("Connection", "upgrade") && h.ContainsToken("Upgrade", "websocket")
}

// extension is one parsed Sec-WebSocket-Extensions offer, per RFC 6455 §9.1.
type extension struct {
	name   string
	params map[string]string
}

func parseExtensions(h *httpmsg.Headers) []extension {
	var exts []extension
	for _, raw := range h.Values("Sec-WebSocket-Extensions") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			pieces := strings.Split(part, ";")
			e := extension{name: strings.TrimSpace(pieces[0]), params: make(map[string]string)}
			for _, p := range pieces[1:] {
				p = strings.TrimSpace(p)
				if idx := strings.Index(p, "="); idx >= 0 {
					e.params[strings.TrimSpace(p[:idx])] = strings.Trim(strings.TrimSpace(p[idx+1:]), `"`)
				} else {
					e.params[p] = ""
				}
			}
			exts = append(exts, e)
		}
	}
	return exts
}

// deflateNegotiationResult is what the server-side handshake decided about
// permessage-deflate for this connection.
type deflateNegotiationResult struct {
	enabled                 bool
	serverNoContextTakeover bool
	clientNoContextTakeover bool
	answer                  string // the Sec-WebSocket-Extensions response value, "" if disabled
}

// negotiateDeflateServer implements the server side of RFC 7692
// negotiation: given the client's offer and the server's configured
// policy per direction, decide whether to accept permessage-deflate and
// with which parameters.
func negotiateDeflateServer(exts []extension, cfg *Config) (deflateNegotiationResult, error) {
	if cfg == nil || !cfg.PerMessageDeflate.Enabled {
		return deflateNegotiationResult{}, nil
	}

	var offer *extension
	for i := range exts {
		if exts[i].name == "permessage-deflate" {
			offer = &exts[i]
			break
		}
	}
	if offer == nil {
		return deflateNegotiationResult{}, nil
	}

	_, clientOffered := offer.params["client_no_context_takeover"]
	_, serverOffered := offer.params["server_no_context_takeover"]

	serverNoCtx, err := negotiateDirection(serverOffered, cfg.PerMessageDeflate.ServerContextTakeover)
	if err != nil {
		return deflateNegotiationResult{}, err
	}
	clientNoCtx, err := negotiateDirection(clientOffered, cfg.PerMessageDeflate.ClientContextTakeover)
	if err != nil {
		return deflateNegotiationResult{}, err
	}

	var params []string
	if serverNoCtx {
		params = append(params, "server_no_context_takeover")
	}
	if clientNoCtx {
		params = append(params, "client_no_context_takeover")
	}

	answer := "permessage-deflate"
	if len(params) > 0 {
		answer += "; " + strings.Join(params, "; ")
	}

	return deflateNegotiationResult{
		enabled:                 true,
		serverNoContextTakeover: serverNoCtx,
		clientNoContextTakeover: clientNoCtx,
		answer:                  answer,
	}, nil
}

// negotiateDeflateClient implements the client side: parse the server's
// answer and record which no-context-takeover flags it set.
func negotiateDeflateClient(exts []extension) deflateNegotiationResult {
	for _, e := range exts {
		if e.name != "permessage-deflate" {
			continue
		}
		_, serverNoCtx := e.params["server_no_context_takeover"]
		_, clientNoCtx := e.params["client_no_context_takeover"]
		return deflateNegotiationResult{
			enabled:                 true,
			serverNoContextTakeover: serverNoCtx,
			clientNoContextTakeover: clientNoCtx,
		}
	}
	return deflateNegotiationResult{}
}

// buildServerHandshakeResponse validates req and returns the
// server's HTTP response plus the negotiated deflate/subprotocol outcome.
func buildServerHandshakeResponse(req *httpmsg.Request, cfg *Config) (*httpmsg.Response, deflateNegotiationResult, string, error) {
	key := req.Headers.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, deflateNegotiationResult{}, "", ErrKeyMissing
	}

	version := req.Headers.Get("Sec-WebSocket-Version")
	v, err := strconv.Atoi(version)
	if err != nil || v < 13 {
		return nil, deflateNegotiationResult{}, "", &VersionNotSupportedError{Version: version}
	}

	subprotocol := selectSubprotocol(req.Headers, cfg)

	deflateResult, err := negotiateDeflateServer(parseExtensions(req.Headers), cfg)
	if err != nil {
		return nil, deflateNegotiationResult{}, "", err
	}

	h := httpmsg.NewHeaders()
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Accept", computeAcceptKey(key))
	if subprotocol != "" {
		h.Set("Sec-WebSocket-Protocol", subprotocol)
	}
	if deflateResult.enabled {
		h.Set("Sec-WebSocket-Extensions", deflateResult.answer)
	}

	resp := &httpmsg.Response{
		Proto:      "HTTP/1.1",
		StatusCode: 101,
		Reason:     "Switching Protocols",
		Headers:    h,
	}
	return resp, deflateResult, subprotocol, nil
}

func selectSubprotocol(h *httpmsg.Headers, cfg *Config) string {
	if cfg == nil || len(cfg.SupportedSubprotocols) == 0 {
		return ""
	}
	requested := clientSubprotocols(h)
	for _, supported := range cfg.SupportedSubprotocols {
		for _, want := range requested {
			if want == supported {
				return supported
			}
		}
	}
	return ""
}

func clientSubprotocols(h *httpmsg.Headers) []string {
	var out []string
	for _, v := range h.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// buildClientHandshakeRequest constructs the client's opening handshake
// request, per RFC 6455 §4.1.
func buildClientHandshakeRequest(host, target string, cfg *Config) (*httpmsg.Request, string, error) {
	key, err := generateChallengeKey()
	if err != nil {
		return nil, "", err
	}

	h := httpmsg.NewHeaders()
	h.Set("Host", host)
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Key", key)
	h.Set("Sec-WebSocket-Version", websocketVersion)

	if cfg != nil {
		if len(cfg.SupportedSubprotocols) > 0 {
			h.Set("Sec-WebSocket-Protocol", strings.Join(cfg.SupportedSubprotocols, ", "))
		}
		if cfg.PerMessageDeflate.Enabled {
			ext := "permessage-deflate"
			if cfg.PerMessageDeflate.ClientContextTakeover == ForceDisabled {
				ext += "; client_no_context_takeover"
			}
			if cfg.PerMessageDeflate.ServerContextTakeover == ForceDisabled {
				ext += "; server_no_context_takeover"
			}
			h.Set("Sec-WebSocket-Extensions", ext)
		}
		for name, values := range cfg.AdditionalHeaders {
			for _, v := range values {
				h.Add(name, v)
			}
		}
	}

	return &httpmsg.Request{
		Method:  "GET",
		Target:  target,
		Proto:   "HTTP/1.1",
		Headers: h,
	}, key, nil
}

// validateClientHandshakeResponse implements RFC 6455 §4.1's client-side
// handshake response checks.
func validateClientHandshakeResponse(resp *httpmsg.Response, challengeKey string) (deflateNegotiationResult, string, error) {
	fail := func(detail string) error {
		return &HandshakeFailedError{StatusCode: resp.StatusCode, Headers: resp.Headers, Detail: detail}
	}

	if resp.StatusCode != 101 {
		return deflateNegotiationResult{}, "", fail("status code was not 101")
	}
	if !strings.EqualFold(resp.Headers.Get("Upgrade"), "websocket") {
		return deflateNegotiationResult{}, "", fail("missing Upgrade: websocket")
	}
	if !resp.Headers.ContainsToken("Connection", "upgrade") {
		return deflateNegotiationResult{}, "", fail("missing Connection: Upgrade")
	}
	if resp.Headers.Get("Sec-WebSocket-Accept") != computeAcceptKey(challengeKey) {
		return deflateNegotiationResult{}, "", fail("Sec-WebSocket-Accept mismatch")
	}

	subprotocol := resp.Headers.Get("Sec-WebSocket-Protocol")
	deflateResult := negotiateDeflateClient(parseExtensions(resp.Headers))
	return deflateResult, subprotocol, nil
}
