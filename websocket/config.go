package websocket

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PerMessageDeflateConfig controls permessage-deflate negotiation.
type PerMessageDeflateConfig struct {
	Enabled               bool                  `yaml:"enabled"`
	ServerContextTakeover ContextTakeoverPolicy `yaml:"-"`
	ClientContextTakeover ContextTakeoverPolicy `yaml:"-"`
	CompressionLevel      int                   `yaml:"compression_level"`
}

// Config holds every connection-level option this package exposes. A
// zero-value Config is valid: no subprotocols, no compression, and
// keep-alive disabled. NewConfig instead sets KeepAliveInterval to 25s.
type Config struct {
	// KeepAliveInterval is the ping-loop period; 0 disables the ping loop.
	KeepAliveInterval time.Duration

	// CloseWaitTimeout bounds how long a polite Close waits for the
	// peer's answering Close frame before forcing teardown. Default 100ms.
	CloseWaitTimeout time.Duration

	// MissedPongThreshold is how many un-ponged ping intervals elapse
	// before the ping loop force-closes the connection. Configurable
	// rather than hardcoded, since "close on the first missed pong" is
	// too aggressive on lossy links.
	MissedPongThreshold int

	// IncludeExceptionInClose appends internal error detail after
	// "\r\n\r\n" to the description of the Close frame sent when Receive
	// fails.
	IncludeExceptionInClose bool

	// SupportedSubprotocols are offered (client) or matched against
	// (server) during the handshake, in preference order.
	SupportedSubprotocols []string

	// PerMessageDeflate configures the permessage-deflate extension.
	PerMessageDeflate PerMessageDeflateConfig

	// Client-only fields.
	AdditionalHeaders    map[string][]string
	SecWebSocketProtocol string

	// MaxHeaderBytes overrides the HTTP Header Codec's cap when non-zero.
	MaxHeaderBytes int
}

// NewConfig returns a Config populated with the library's defaults.
func NewConfig() *Config {
	return &Config{
		KeepAliveInterval:   25 * time.Second,
		CloseWaitTimeout:    100 * time.Millisecond,
		MissedPongThreshold: 1,
		PerMessageDeflate: PerMessageDeflateConfig{
			CompressionLevel: 1,
		},
	}
}

// configFile is the YAML-shaped view of Config used by LoadConfigFile,
// since ContextTakeoverPolicy and time.Duration aren't directly
// yaml-friendly.
type configFile struct {
	KeepAliveSeconds        float64               `yaml:"keep_alive_interval_seconds"`
	CloseWaitMillis         float64               `yaml:"close_wait_timeout_millis"`
	MissedPongThreshold     int                   `yaml:"missed_pong_threshold"`
	IncludeExceptionInClose bool                  `yaml:"include_exception_in_close_response"`
	SupportedSubprotocols   []string              `yaml:"supported_subprotocols"`
	PerMessageDeflate       perMessageDeflateFile `yaml:"per_message_deflate"`
}

type perMessageDeflateFile struct {
	Enabled               bool   `yaml:"enabled"`
	ServerContextTakeover string `yaml:"server_context_takeover"`
	ClientContextTakeover string `yaml:"client_context_takeover"`
	CompressionLevel      int    `yaml:"compression_level"`
}

func parsePolicy(s string) (ContextTakeoverPolicy, error) {
	switch s {
	case "", "allow":
		return Allow, nil
	case "dont_allow", "dont-allow":
		return DontAllow, nil
	case "force_disabled", "force-disabled":
		return ForceDisabled, nil
	default:
		return Allow, fmt.Errorf("websocket: unknown context takeover policy %q", s)
	}
}

// LoadConfigFile reads a YAML configuration file into a Config, starting
// from NewConfig's defaults for the fields the file omits.
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("websocket: parsing config file: %w", err)
	}

	cfg := NewConfig()
	if f.KeepAliveSeconds > 0 {
		cfg.KeepAliveInterval = time.Duration(f.KeepAliveSeconds * float64(time.Second))
	}
	if f.CloseWaitMillis > 0 {
		cfg.CloseWaitTimeout = time.Duration(f.CloseWaitMillis * float64(time.Millisecond))
	}
	if f.MissedPongThreshold > 0 {
		cfg.MissedPongThreshold = f.MissedPongThreshold
	}
	cfg.IncludeExceptionInClose = f.IncludeExceptionInClose
	cfg.SupportedSubprotocols = f.SupportedSubprotocols
	cfg.PerMessageDeflate.Enabled = f.PerMessageDeflate.Enabled
	if f.PerMessageDeflate.CompressionLevel != 0 {
		cfg.PerMessageDeflate.CompressionLevel = f.PerMessageDeflate.CompressionLevel
	}

	serverPolicy, err := parsePolicy(f.PerMessageDeflate.ServerContextTakeover)
	if err != nil {
		return nil, err
	}
	clientPolicy, err := parsePolicy(f.PerMessageDeflate.ClientContextTakeover)
	if err != nil {
		return nil, err
	}
	cfg.PerMessageDeflate.ServerContextTakeover = serverPolicy
	cfg.PerMessageDeflate.ClientContextTakeover = clientPolicy

	return cfg, nil
}
