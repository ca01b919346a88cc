package ws_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
	"github.com/LLIEPJIOK/hermes/pkg/ws"
)

type EchoRequest struct {
	Message string `json:"message"`
}

type EchoResponse struct {
	Message string `json:"message"`
	Echo    bool   `json:"echo"`
}

func testRouter() *hermes.Router {
	endpoints := hermes.Tree{
		"echo": hermes.Func1(func(_ context.Context, req EchoRequest) (EchoResponse, error) {
			return EchoResponse{Message: req.Message, Echo: true}, nil
		}),
		"slow": hermes.Func0(func(context.Context) (map[string]string, error) {
			time.Sleep(100 * time.Millisecond)
			return map[string]string{"status": "done"}, nil
		}),
		"veryslow": hermes.Func0(func(context.Context) (any, error) {
			time.Sleep(2 * time.Second)
			return nil, nil
		}),
		"error": hermes.Func0(func(context.Context) (any, error) {
			return nil, errors.New("handler failed")
		}),
		"math": hermes.Tree{
			"add": hermes.Func1(func(_ context.Context, nums []int) (int, error) {
				sum := 0
				for _, n := range nums {
					sum += n
				}
				return sum, nil
			}),
		},
		"transport": hermes.EndpointFunc(func(_ context.Context, _ hermes.Args, md hermes.Metadata) (any, error) {
			return md.Get(hermes.MetaTransport), nil
		}),
	}

	sockets := hermes.Tree{
		"echo": hermes.SocketFunc(func(ctx context.Context, sock *hermes.Socket, _ hermes.Args, _ hermes.Metadata) error {
			for msg, err := range sock.ReceiveIter(ctx) {
				if err != nil {
					return err
				}

				if err := sock.Send(ctx, msg); err != nil {
					return err
				}
			}

			return nil
		}),
		"greet": hermes.SocketFunc(func(ctx context.Context, sock *hermes.Socket, args hermes.Args, _ hermes.Metadata) error {
			var name string
			if err := args.Decode(0, &name); err != nil {
				return err
			}

			if err := sock.SendJSON(ctx, "hello "+name); err != nil {
				return err
			}

			return sock.Close(ctx)
		}),
	}

	return hermes.NewRouter(endpoints, sockets, hermes.DefaultRouterConfig())
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(ws.NewServer(testRouter(), ws.DefaultServerConfig()))
	t.Cleanup(ts.Close)

	return ts
}

func connect(t *testing.T, ts *httptest.Server, mutate func(*ws.ClientConfig)) *ws.Client {
	t.Helper()

	// Преобразуем HTTP URL в WebSocket URL
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	cfg := ws.DefaultClientConfig(wsURL)
	if mutate != nil {
		mutate(&cfg)
	}

	client := ws.NewClient(cfg)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClientServer_BasicEcho(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)
	endpoints := hermes.NewEndpointClient(client.EndpointTransport())

	resp, err := hermes.Invoke[EchoResponse](context.Background(), endpoints.Get("echo"), EchoRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.Message != "hello" {
		t.Errorf("expected message 'hello', got '%s'", resp.Message)
	}

	if !resp.Echo {
		t.Error("expected echo to be true")
	}
}

func TestClientServer_NestedPath(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)
	endpoints := hermes.NewEndpointClient(client.EndpointTransport())

	sum, err := hermes.Invoke[int](context.Background(), endpoints.Get("math", "add"), []int{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("add request failed: %v", err)
	}

	if sum != 15 {
		t.Errorf("expected sum 15, got %d", sum)
	}

	name, err := hermes.Invoke[string](context.Background(), endpoints.Get("transport"))
	if err != nil {
		t.Fatalf("transport request failed: %v", err)
	}

	if name != "ws" {
		t.Errorf("expected transport 'ws', got %q", name)
	}
}

func TestClientServer_ConcurrentRequests(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)
	endpoints := hermes.NewEndpointClient(client.EndpointTransport()).Get("echo")

	ctx := context.Background()

	const numRequests = 100
	var wg sync.WaitGroup
	errs := make(chan error, numRequests)

	for i := range numRequests {
		wg.Go(func() {
			msg := EchoRequest{Message: strings.Repeat("a", i+1)}

			resp, err := hermes.Invoke[EchoResponse](ctx, endpoints, msg)
			if err != nil {
				errs <- err
				return
			}

			if resp.Message != msg.Message {
				errs <- errors.New("mismatched response")
			}
		})
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent request error: %v", err)
	}
}

func TestClientServer_PathNotFound(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)

	_, err := hermes.NewEndpointClient(client.EndpointTransport()).Get("nonexistent").Call(context.Background())
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}

	if !hermes.IsProtocolError(err) {
		t.Errorf("expected protocol error, got: %v", err)
	}

	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected 'does not exist' error, got: %v", err)
	}
}

func TestClientServer_HandlerError(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)

	_, err := hermes.NewEndpointClient(client.EndpointTransport()).Get("error").Call(context.Background())

	var userErr *hermes.UserError
	if !errors.As(err, &userErr) {
		t.Fatalf("expected user error, got: %v", err)
	}

	if userErr.Message != "handler failed" {
		t.Errorf("unexpected message: %q", userErr.Message)
	}
}

func TestClientServer_Timeout(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, func(cfg *ws.ClientConfig) {
		cfg.RequestTimeout = 100 * time.Millisecond
	})

	_, err := hermes.NewEndpointClient(client.EndpointTransport()).Get("veryslow").Call(context.Background())
	if !errors.Is(err, ws.ErrRequestTimeout) {
		t.Errorf("expected timeout error, got: %v", err)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)

	// Отменяем контекст
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := hermes.NewEndpointClient(client.EndpointTransport()).Get("slow").Call(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got: %v", err)
	}
}

func TestClient_Close(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)

	if err := client.Close(); err != nil {
		t.Errorf("close error: %v", err)
	}

	if !client.IsClosed() {
		t.Error("expected client to be closed")
	}

	select {
	case <-client.Done():
	default:
		t.Error("expected done channel to be closed")
	}

	_, err := hermes.NewEndpointClient(client.EndpointTransport()).Get("echo").Call(context.Background())
	if !errors.Is(err, ws.ErrConnectionClosed) {
		t.Errorf("expected connection closed error, got: %v", err)
	}
}

func TestClient_NotConnected(t *testing.T) {
	client := ws.NewClient(ws.DefaultClientConfig("ws://127.0.0.1:1"))

	_, err := hermes.NewEndpointClient(client.EndpointTransport()).Get("echo").Call(context.Background())
	if !errors.Is(err, ws.ErrNotConnected) {
		t.Errorf("expected not connected error, got: %v", err)
	}
}

func TestSocket_Echo(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)
	ctx := context.Background()

	sock, err := hermes.NewSocketClient(client.SocketTransport()).Get("echo").Open(ctx)
	if err != nil {
		t.Fatalf("failed to open socket: %v", err)
	}
	defer sock.Close(ctx)

	for _, word := range []string{"ping", "pong"} {
		if err := sock.SendJSON(ctx, word); err != nil {
			t.Fatalf("send failed: %v", err)
		}

		var reply string
		if err := sock.ReceiveJSON(ctx, &reply); err != nil {
			t.Fatalf("receive failed: %v", err)
		}

		if reply != word {
			t.Errorf("expected %q, got %q", word, reply)
		}
	}
}

func TestSocket_ServerClosePropagates(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sock, err := hermes.NewSocketClient(client.SocketTransport()).Get("greet").Open(ctx, "bob")
	if err != nil {
		t.Fatalf("failed to open socket: %v", err)
	}

	var greeting string
	if err := sock.ReceiveJSON(ctx, &greeting); err != nil {
		t.Fatalf("receive failed: %v", err)
	}

	if greeting != "hello bob" {
		t.Errorf("unexpected greeting %q", greeting)
	}

	if err := sock.WaitForClose(ctx); err != nil {
		t.Fatalf("socket was not closed: %v", err)
	}

	if _, err := sock.Receive(ctx); !errors.Is(err, hermes.ErrSocketClosed) {
		t.Errorf("expected socket closed error, got: %v", err)
	}
}

func TestSocket_UnknownPathCloses(t *testing.T) {
	ts := setupTestServer(t)
	client := connect(t, ts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sock, err := hermes.NewSocketClient(client.SocketTransport()).Get("missing").Open(ctx)
	if err != nil {
		t.Fatalf("failed to open socket: %v", err)
	}

	if err := sock.WaitForClose(ctx); err != nil {
		t.Fatalf("socket was not closed: %v", err)
	}
}

func TestServer_MuxAddress(t *testing.T) {
	mux := hermes.NewMux(hermes.DefaultMuxConfig())
	mux.Handle("api", testRouter())

	ts := httptest.NewServer(ws.NewServer(mux, ws.DefaultServerConfig()))
	defer ts.Close()

	api := connect(t, ts, func(cfg *ws.ClientConfig) { cfg.Address = "api" })
	other := connect(t, ts, func(cfg *ws.ClientConfig) { cfg.Address = "other" })
	ctx := context.Background()

	if _, err := hermes.NewEndpointClient(api.EndpointTransport()).Get("echo").Call(ctx, EchoRequest{}); err != nil {
		t.Fatalf("request to api failed: %v", err)
	}

	_, err := hermes.NewEndpointClient(other.EndpointTransport()).Get("echo").Call(ctx, EchoRequest{})
	if !hermes.IsProtocolError(err) {
		t.Errorf("expected protocol error, got: %v", err)
	}
}
