package websocket

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 25*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.CloseWaitTimeout)
	assert.Equal(t, 1, cfg.MissedPongThreshold)
	assert.Equal(t, 1, cfg.PerMessageDeflate.CompressionLevel)
	assert.False(t, cfg.PerMessageDeflate.Enabled)
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]ContextTakeoverPolicy{
		"":               Allow,
		"allow":          Allow,
		"dont_allow":     DontAllow,
		"dont-allow":     DontAllow,
		"force_disabled": ForceDisabled,
		"force-disabled": ForceDisabled,
	}
	for input, want := range cases {
		got, err := parsePolicy(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parsePolicy("nonsense")
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ws.yaml")
	contents := `
keep_alive_interval_seconds: 15
close_wait_timeout_millis: 250
missed_pong_threshold: 3
include_exception_in_close_response: true
supported_subprotocols:
  - chat.v2
  - chat.v1
per_message_deflate:
  enabled: true
  server_context_takeover: dont_allow
  client_context_takeover: force_disabled
  compression_level: 6
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.CloseWaitTimeout)
	assert.Equal(t, 3, cfg.MissedPongThreshold)
	assert.True(t, cfg.IncludeExceptionInClose)
	assert.Equal(t, []string{"chat.v2", "chat.v1"}, cfg.SupportedSubprotocols)
	assert.True(t, cfg.PerMessageDeflate.Enabled)
	assert.Equal(t, DontAllow, cfg.PerMessageDeflate.ServerContextTakeover)
	assert.Equal(t, ForceDisabled, cfg.PerMessageDeflate.ClientContextTakeover)
	assert.Equal(t, 6, cfg.PerMessageDeflate.CompressionLevel)
}

func TestLoadConfigFileDefaultsWhenFieldsOmitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ws.yaml")
	require.NoError(t, os.WriteFile(path, []byte("supported_subprotocols: []\n"), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.CloseWaitTimeout)
	assert.Equal(t, 1, cfg.MissedPongThreshold)
}

func TestLoadConfigFileRejectsUnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ws.yaml")
	contents := "per_message_deflate:\n  server_context_takeover: bogus\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestLoadConfigFileMissingFile(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
