package stream

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, f frame) []byte {
	t.Helper()

	data, err := encodeFrame(f)
	require.NoError(t, err)

	return data
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	buf.Write(mustEncode(t, frame{typ: frameMessage, payload: []byte(`{"a":1}`)}))
	buf.Write(mustEncode(t, frame{typ: frameClose}))

	f, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frameMessage, f.typ)
	assert.Equal(t, `{"a":1}`, string(f.payload))

	f, err = readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, frameClose, f.typ)
	assert.Empty(t, f.payload)
}

func TestReadFrame_Invalid(t *testing.T) {
	_, err := readFrame(bytes.NewReader([]byte{9, 1, 0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = readFrame(bytes.NewReader([]byte{frameVersion, 7, 0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrInvalidFrame)

	truncated := mustEncode(t, frame{typ: frameMessage, payload: []byte("hello")})
	_, err = readFrame(bytes.NewReader(truncated[:8]))
	assert.Error(t, err)
}

func TestFrameLength(t *testing.T) {
	size, err := frameLength(1024)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), size)

	if math.MaxInt == math.MaxInt32 {
		t.Skip("int cannot exceed the header length on this platform")
	}

	largest := uint64(math.MaxUint32)

	size, err = frameLength(int(largest))
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), size)

	_, err = frameLength(int(largest + 1))
	assert.ErrorIs(t, err, ErrPayloadOverflow)
}

func TestPump_DropsNonJSON(t *testing.T) {
	local, remote := net.Pipe()
	t.Cleanup(func() { _ = remote.Close() })

	c := newConn(local)
	sock := c.socket()

	go c.pump(sock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	go func() {
		for _, f := range []frame{
			{typ: frameMessage, payload: []byte("not json")},
			{typ: frameMessage, payload: []byte(`"hello"`)},
			{typ: frameClose},
		} {
			data, _ := encodeFrame(f)
			if _, err := remote.Write(data); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := sock.Receive(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(msg))

	require.NoError(t, sock.WaitForClose(ctx))
	assert.True(t, sock.IsClosed())
}
