package hermes_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

func TestMux_RoutesByAddress(t *testing.T) {
	name := func(n string) hermes.EndpointFunc {
		return hermes.EndpointFunc(func(_ context.Context, _ hermes.Args, md hermes.Metadata) (any, error) {
			return n + ":" + md.Get(hermes.MetaAddress), nil
		})
	}

	mux := hermes.NewMux(hermes.DefaultMuxConfig())
	mux.Handle("a", testRouter(hermes.Tree{"who": name("A")}, nil))
	mux.Handle("b", testRouter(hermes.Tree{"who": name("B")}, nil))

	ctx := context.Background()

	for addr, want := range map[string]string{"a": `"A:a"`, "b": `"B:b"`} {
		req := endpointRequest([]string{"who"})
		req.Address = addr

		resp, err := mux.HandleEndpoint(ctx, req, nil)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(resp.Value))
	}
}

func TestMux_UnknownAddress(t *testing.T) {
	mux := hermes.NewMux(hermes.DefaultMuxConfig())
	mux.Handle("a", testRouter(hermes.Tree{}, nil))
	mux.Remove("a")

	_, ok := mux.Router("a")
	assert.False(t, ok)

	req := endpointRequest([]string{"x"})
	req.Address = "a"

	_, err := mux.HandleEndpoint(context.Background(), req, nil)
	assert.ErrorIs(t, err, hermes.ErrNoRouter)
	assert.ErrorIs(t, err, hermes.ErrProtocol)
}

func TestMux_HandleSocket(t *testing.T) {
	mux := hermes.NewMux(hermes.DefaultMuxConfig())
	mux.Handle("bar", testRouter(nil, hermes.Tree{
		"hello": hermes.SocketFunc(func(ctx context.Context, sock *hermes.Socket, _ hermes.Args, md hermes.Metadata) error {
			return sock.SendJSON(ctx, "hello from "+md.Get(hermes.MetaAddress))
		}),
	}))

	client, server := hermes.Pipe()
	ctx := context.Background()

	require.NoError(t, client.Send(ctx, socketRequest([]string{"hello"})))
	require.NoError(t, mux.HandleSocket(ctx, server, nil))

	var greeting string
	require.NoError(t, client.ReceiveJSON(ctx, &greeting))
	assert.Equal(t, "hello from bar", greeting)
}

func TestMux_HandleSocketUnknownAddress(t *testing.T) {
	mux := hermes.NewMux(hermes.DefaultMuxConfig())

	client, server := hermes.Pipe()
	ctx := context.Background()

	require.NoError(t, client.Send(ctx, socketRequest([]string{"hello"})))

	err := mux.HandleSocket(ctx, server, nil)
	assert.ErrorIs(t, err, hermes.ErrNoRouter)
	assert.True(t, server.IsClosed())
	assert.True(t, client.IsClosed())
}

func TestMux_RejectionsAreLoggedAndCounted(t *testing.T) {
	var logs bytes.Buffer
	metrics := hermes.NewMetrics("mux_test")

	mux := hermes.NewMux(hermes.MuxConfig{
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
		Metrics: metrics,
	})
	ctx := context.Background()

	client, server := hermes.Pipe()
	require.NoError(t, client.Send(ctx, socketRequest([]string{"hello"})))
	require.ErrorIs(t, mux.HandleSocket(ctx, server, nil), hermes.ErrNoRouter)

	client, server = hermes.Pipe()
	require.NoError(t, client.Send(ctx, []byte(`{"__hermes__":"endpoint"}`)))
	require.ErrorIs(t, mux.HandleSocket(ctx, server, nil), hermes.ErrProtocol)
	assert.True(t, client.IsClosed())

	req := endpointRequest([]string{"x"})
	req.Address = "nowhere"
	_, err := mux.HandleEndpoint(ctx, req, nil)
	require.ErrorIs(t, err, hermes.ErrNoRouter)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("socket", hermes.StatusProtocolError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("endpoint", hermes.StatusProtocolError)))
	assert.Contains(t, logs.String(), "socket session failed")
}
