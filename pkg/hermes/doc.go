// Package hermes is a transport-agnostic layer for remote endpoint calls and
// duplex socket sessions.
//
// A server builds a Router from two handler trees. Leaves are EndpointFunc
// (one call, one result) and SocketFunc (a long lived session); branches are
// Trees keyed by path segment:
//
//	router := hermes.NewRouter(hermes.Tree{
//	    "add": hermes.Func2(func(ctx context.Context, a, b int) (int, error) {
//	        return a + b, nil
//	    }),
//	    "users": hermes.Tree{
//	        "get": getUser,
//	    },
//	}, hermes.Tree{
//	    "echo": hermes.SocketFunc(echo),
//	}, hermes.DefaultRouterConfig())
//
// A client addresses the same tree through a path builder and a transport:
//
//	endpoints := hermes.NewEndpointClient(transport.EndpointTransport())
//	sum, err := hermes.Invoke[int](ctx, endpoints.Get("add"), 1, 2)
//
//	sockets := hermes.NewSocketClient(transport.SocketTransport())
//	sock, err := sockets.Get("echo").Open(ctx)
//
// # Envelope
//
// Requests and responses travel as JSON envelopes:
//
//	{"__hermes__": "endpoint", "address": "default", "requestId": "...", "path": ["users", "get"], "args": [42]}
//	{"__hermes__": "endpoint", "requestId": "...", "value": {...}}
//	{"__hermes__": "endpoint", "requestId": "...", "error": "user not found"}
//
// A socket session starts with a "socket" request as its first message; after
// that, messages on the socket are opaque payloads.
//
// # Errors
//
// A failing endpoint handler reaches the caller as *UserError. Envelope
// violations, unknown paths and correlation mismatches are *ProtocolError
// (errors.Is(err, ErrProtocol)). Transport errors are returned unchanged.
//
// Transports live in sibling packages: loopback (in-process), ws (WebSocket),
// stream (framed net.Conn), jsonrpc (JSON-RPC 2.0 over HTTP) and natsbus
// (NATS).
package hermes
