package websocket

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateDirection(t *testing.T) {
	cases := []struct {
		name        string
		peerOffered bool
		policy      ContextTakeoverPolicy
		want        bool
		wantErr     bool
	}{
		{"force disabled ignores peer false", false, ForceDisabled, true, false},
		{"force disabled ignores peer true", true, ForceDisabled, true, false},
		{"dont allow rejects peer request", true, DontAllow, false, true},
		{"dont allow accepts peer silence", false, DontAllow, false, false},
		{"allow mirrors peer true", true, Allow, true, false},
		{"allow mirrors peer false", false, Allow, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := negotiateDirection(tc.peerOffered, tc.policy)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeflateEncoderDecoderRoundTripWithContextTakeover(t *testing.T) {
	enc := newDeflateEncoder(1, false)
	dec := newDeflateDecoder(false)

	for _, msg := range [][]byte{[]byte("hello world"), []byte("hello world again"), []byte("a third message")} {
		require.NoError(t, enc.Write(msg))
		compressed, err := enc.Finish()
		require.NoError(t, err)

		got, err := dec.Inflate(compressed)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestDeflateEncoderDecoderRoundTripNoContextTakeover(t *testing.T) {
	enc := newDeflateEncoder(1, true)
	dec := newDeflateDecoder(true)

	for _, msg := range [][]byte{[]byte("independent message one"), []byte("independent message two")} {
		require.NoError(t, enc.Write(msg))
		compressed, err := enc.Finish()
		require.NoError(t, err)
		assert.Nil(t, dec.fr, "no-context-takeover decoder must not retain state between messages")

		got, err := dec.Inflate(compressed)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestDeflateEncoderEmptyMessageProducesValidBlock(t *testing.T) {
	enc := newDeflateEncoder(1, false)
	dec := newDeflateDecoder(false)

	compressed, err := enc.Finish()
	require.NoError(t, err)

	got, err := dec.Inflate(compressed)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSliceSinkAppendsWithoutDiscardingCapacity(t *testing.T) {
	var buf []byte
	sink := sliceSink{&buf}
	n, err := sink.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = sink.Write([]byte("def"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abcdef", string(buf))
}

func TestDeflateDecoderCloseReleasesState(t *testing.T) {
	enc := newDeflateEncoder(1, false)
	dec := newDeflateDecoder(false)

	require.NoError(t, enc.Write([]byte("payload")))
	compressed, err := enc.Finish()
	require.NoError(t, err)
	_, err = dec.Inflate(compressed)
	require.NoError(t, err)

	require.NotNil(t, dec.fr)
	dec.Close()
	assert.Nil(t, dec.fr)
}

func TestDeflateSuffixMatchesSyncFlushMarker(t *testing.T) {
	assert.True(t, bytes.Equal([]byte(deflateSuffix), []byte{0x00, 0x00, 0xff, 0xff}))
}
