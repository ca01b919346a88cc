package hermes_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

func endpointRequest(path []string, args ...any) hermes.Request {
	encoded, _ := hermes.EncodeArgs(args...)

	return hermes.Request{
		Tag:       hermes.KindEndpoint,
		Address:   "bar",
		RequestID: "foo",
		Path:      path,
		Args:      encoded,
	}
}

func socketRequest(path []string, args ...any) json.RawMessage {
	encoded, _ := hermes.EncodeArgs(args...)

	data, _ := json.Marshal(hermes.Request{
		Tag:       hermes.KindSocket,
		Address:   "bar",
		RequestID: "foo",
		Path:      path,
		Args:      encoded,
	})

	return data
}

func testRouter(endpoints, sockets hermes.Tree) *hermes.Router {
	return hermes.NewRouter(endpoints, sockets, hermes.DefaultRouterConfig())
}

func TestRouter_HandleEndpoint_Validation(t *testing.T) {
	router := testRouter(hermes.Tree{}, hermes.Tree{})
	ctx := context.Background()

	cases := map[string]hermes.Request{
		"missing tag":     {},
		"wrong tag":       {Tag: hermes.KindSocket, Address: "bar"},
		"missing address": {Tag: hermes.KindEndpoint},
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := router.HandleEndpoint(ctx, req, nil)
			assert.ErrorIs(t, err, hermes.ErrProtocol)
		})
	}
}

func TestRouter_HandleEndpoint_EchoesRequestID(t *testing.T) {
	router := testRouter(hermes.Tree{
		"noop": hermes.EndpointFunc(func(context.Context, hermes.Args, hermes.Metadata) (any, error) {
			return nil, nil
		}),
	}, nil)

	resp, err := router.HandleEndpoint(context.Background(), endpointRequest([]string{"noop"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "foo", resp.RequestID)
	assert.Equal(t, hermes.KindEndpoint, resp.Tag)
	assert.Nil(t, resp.Value)
	assert.Nil(t, resp.Error)
}

func TestRouter_HandleEndpoint_Missing(t *testing.T) {
	router := testRouter(hermes.Tree{}, hermes.Tree{})

	_, err := router.HandleEndpoint(context.Background(), endpointRequest([]string{"missing"}), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, hermes.ErrProtocol)
	assert.ErrorIs(t, err, hermes.ErrNotFound)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestRouter_HandleEndpoint_NotCallable(t *testing.T) {
	noop := hermes.Func0(func(context.Context) (any, error) { return nil, nil })
	router := testRouter(hermes.Tree{
		"x":       hermes.Tree{"noop": noop},
		"session": hermes.SocketFunc(func(context.Context, *hermes.Socket, hermes.Args, hermes.Metadata) error { return nil }),
	}, nil)

	for _, path := range [][]string{{"x"}, {}, {"session"}} {
		_, err := router.HandleEndpoint(context.Background(), endpointRequest(path), nil)
		require.Error(t, err, "path %v", path)
		assert.ErrorIs(t, err, hermes.ErrNotCallable)
		assert.Contains(t, err.Error(), "is not a function")
	}
}

func TestRouter_HandleEndpoint_LeafBeforeEndOfPath(t *testing.T) {
	router := testRouter(hermes.Tree{
		"leaf": hermes.Func0(func(context.Context) (int, error) { return 1, nil }),
	}, nil)

	_, err := router.HandleEndpoint(context.Background(), endpointRequest([]string{"leaf", "deeper"}), nil)
	assert.ErrorIs(t, err, hermes.ErrNotFound)
}

func TestRouter_HandleEndpoint_Arguments(t *testing.T) {
	router := testRouter(hermes.Tree{
		"foo": hermes.Func2(func(_ context.Context, a, b int) (int, error) { return a + b, nil }),
		"deep": hermes.Tree{
			"echo": hermes.Func1(func(_ context.Context, m string) (string, error) { return m, nil }),
		},
		"metadata": hermes.EndpointFunc(func(_ context.Context, _ hermes.Args, md hermes.Metadata) (any, error) {
			return md.Get("foo"), nil
		}),
	}, nil)
	ctx := context.Background()

	resp, err := router.HandleEndpoint(ctx, endpointRequest([]string{"foo"}, 1, 2), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(resp.Value))

	resp, err = router.HandleEndpoint(ctx, endpointRequest([]string{"deep", "echo"}, "hello"), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(resp.Value))

	resp, err = router.HandleEndpoint(ctx, endpointRequest([]string{"metadata"}), hermes.Metadata{"foo": "bar"})
	require.NoError(t, err)
	assert.JSONEq(t, `"bar"`, string(resp.Value))
}

func TestRouter_HandleEndpoint_DisableMetadata(t *testing.T) {
	var seen hermes.Metadata = hermes.Metadata{"sentinel": "x"}

	cfg := hermes.DefaultRouterConfig()
	cfg.DisableMetadata = true

	router := hermes.NewRouter(hermes.Tree{
		"md": hermes.EndpointFunc(func(_ context.Context, _ hermes.Args, md hermes.Metadata) (any, error) {
			seen = md
			return nil, nil
		}),
	}, nil, cfg)

	_, err := router.HandleEndpoint(context.Background(), endpointRequest([]string{"md"}), hermes.Metadata{"foo": "bar"})
	require.NoError(t, err)
	assert.Nil(t, seen)
}

func TestRouter_HandleEndpoint_HandlerFailures(t *testing.T) {
	router := testRouter(hermes.Tree{
		"fail": hermes.Func0(func(context.Context) (any, error) { return nil, errors.New("boom") }),
		"panicError": hermes.Func0(func(context.Context) (any, error) {
			panic(errors.New("exploded"))
		}),
		"panicValue": hermes.Func0(func(context.Context) (any, error) { panic(42) }),
	}, nil)
	ctx := context.Background()

	for path, want := range map[string]string{"fail": "boom", "panicError": "exploded", "panicValue": "42"} {
		resp, err := router.HandleEndpoint(ctx, endpointRequest([]string{path}), nil)
		require.NoError(t, err, path)
		require.NotNil(t, resp.Error, path)
		assert.Equal(t, want, *resp.Error)
		assert.False(t, resp.Protocol)
	}
}

func TestRouter_TreesAreCopied(t *testing.T) {
	endpoints := hermes.Tree{
		"a": hermes.Func0(func(context.Context) (int, error) { return 1, nil }),
	}
	router := testRouter(endpoints, nil)

	delete(endpoints, "a")

	_, ok := router.Endpoints()["a"]
	assert.True(t, ok)
	assert.NotNil(t, router.Sockets())
}

func TestRouter_HandleSocket(t *testing.T) {
	router := testRouter(nil, hermes.Tree{
		"echo": hermes.SocketFunc(func(ctx context.Context, sock *hermes.Socket, _ hermes.Args, _ hermes.Metadata) error {
			m, err := sock.Receive(ctx)
			if err != nil {
				return err
			}

			return sock.Send(ctx, m)
		}),
	})

	client, server := hermes.Pipe()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- router.HandleSocket(ctx, server, nil) }()

	require.NoError(t, client.Send(ctx, socketRequest([]string{"echo"})))
	require.NoError(t, client.Send(ctx, msg("ping")))

	reply, err := client.Receive(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `"ping"`, string(reply))
	require.NoError(t, <-done)
	assert.False(t, client.IsClosed())
}

func TestRouter_HandleSocket_ArgsAndMetadata(t *testing.T) {
	got := make(chan string, 1)

	router := testRouter(nil, hermes.Tree{
		"room": hermes.Tree{
			"join": hermes.SocketFunc(func(_ context.Context, _ *hermes.Socket, args hermes.Args, md hermes.Metadata) error {
				var name string
				if err := args.Decode(0, &name); err != nil {
					return err
				}

				got <- name + "@" + md.Get(hermes.MetaTransport)
				return nil
			}),
		},
	})

	client, server := hermes.Pipe()
	require.NoError(t, client.Send(context.Background(), socketRequest([]string{"room", "join"}, "lobby")))

	err := router.HandleSocket(context.Background(), server, hermes.Metadata{hermes.MetaTransport: "pipe"})
	require.NoError(t, err)
	assert.Equal(t, "lobby@pipe", <-got)
}

func TestRouter_HandleSocket_Failures(t *testing.T) {
	router := testRouter(nil, hermes.Tree{
		"fail": hermes.SocketFunc(func(context.Context, *hermes.Socket, hermes.Args, hermes.Metadata) error {
			return errors.New("boom")
		}),
		"panic": hermes.SocketFunc(func(context.Context, *hermes.Socket, hermes.Args, hermes.Metadata) error {
			panic("kaput")
		}),
		"branch": hermes.Tree{},
	})

	cases := []struct {
		name    string
		opening json.RawMessage
		is      error
		message string
	}{
		{name: "endpoint tag", opening: func() json.RawMessage {
			data, _ := json.Marshal(endpointRequest([]string{"fail"}))
			return data
		}(), is: hermes.ErrProtocol},
		{name: "not an object", opening: msg("hello"), is: hermes.ErrProtocol},
		{name: "missing", opening: socketRequest([]string{"nope"}), is: hermes.ErrNotFound},
		{name: "branch", opening: socketRequest([]string{"branch"}), is: hermes.ErrNotCallable},
		{name: "handler error", opening: socketRequest([]string{"fail"}), message: "boom"},
		{name: "handler panic", opening: socketRequest([]string{"panic"}), message: "kaput"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, server := hermes.Pipe()
			ctx := context.Background()

			require.NoError(t, client.Send(ctx, tc.opening))

			err := router.HandleSocket(ctx, server, nil)
			require.Error(t, err)

			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}

			if tc.message != "" {
				assert.EqualError(t, err, tc.message)
			}

			assert.True(t, server.IsClosed())

			waitCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			assert.NoError(t, client.WaitForClose(waitCtx))
		})
	}
}

func TestRouter_HandleSocket_ClosedBeforeOpening(t *testing.T) {
	router := testRouter(nil, nil)

	_, server := hermes.Pipe()
	server.SignalClosed()

	err := router.HandleSocket(context.Background(), server, nil)
	assert.ErrorIs(t, err, hermes.ErrSocketClosed)
}

func TestRouter_Metrics(t *testing.T) {
	metrics := hermes.NewMetrics("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	require.NoError(t, metrics.Register(reg))

	cfg := hermes.DefaultRouterConfig()
	cfg.Metrics = metrics

	router := hermes.NewRouter(hermes.Tree{
		"ok":   hermes.Func0(func(context.Context) (int, error) { return 1, nil }),
		"fail": hermes.Func0(func(context.Context) (int, error) { return 0, errors.New("no") }),
	}, nil, cfg)
	ctx := context.Background()

	_, _ = router.HandleEndpoint(ctx, endpointRequest([]string{"ok"}), nil)
	_, _ = router.HandleEndpoint(ctx, endpointRequest([]string{"ok"}), nil)
	_, _ = router.HandleEndpoint(ctx, endpointRequest([]string{"fail"}), nil)
	_, _ = router.HandleEndpoint(ctx, endpointRequest([]string{"missing"}), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("endpoint", hermes.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("endpoint", hermes.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("endpoint", hermes.StatusProtocolError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSockets))
}
