package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// EndpointTransport carries one endpoint request to a router and returns its
// response. The transport fills in the request address.
type EndpointTransport func(ctx context.Context, req Request) (Response, error)

// SocketTransport opens a socket session with req as the opening request and
// returns the local end, already wired to the remote session.
type SocketTransport func(ctx context.Context, req Request) (*Socket, error)

type path []string

func (p path) extend(segments []string) path {
	out := make(path, 0, len(p)+len(segments))
	out = append(out, p...)

	return append(out, segments...)
}

// EndpointClient addresses a node of a remote endpoint tree. Values are
// immutable: Get returns a new client and leaves the receiver untouched, so
// one base client can be shared by concurrent callers.
type EndpointClient struct {
	transport EndpointTransport
	path      path
}

func NewEndpointClient(transport EndpointTransport) EndpointClient {
	return EndpointClient{transport: transport}
}

func (c EndpointClient) Get(segments ...string) EndpointClient {
	return EndpointClient{transport: c.transport, path: c.path.extend(segments)}
}

func (c EndpointClient) Path() []string {
	return slices.Clone(c.path)
}

// Call invokes the endpoint at the client's path. A failure of the remote
// handler comes back as *UserError; broken plumbing as *ProtocolError or the
// transport's own error.
func (c EndpointClient) Call(ctx context.Context, args ...any) (json.RawMessage, error) {
	encoded, err := EncodeArgs(args...)
	if err != nil {
		return nil, err
	}

	requestID := NewRequestID()

	resp, err := c.transport(ctx, Request{
		Tag:       KindEndpoint,
		RequestID: requestID,
		Path:      c.path.extend(nil),
		Args:      encoded,
	})
	if err != nil {
		return nil, err
	}

	if resp.Tag == "" {
		return nil, NewProtocolError("provided response wasn't made by us, something went wrong with the transport")
	}

	if resp.RequestID != requestID {
		return nil, NewProtocolError("response request id does not match request id")
	}

	if resp.Error != nil {
		if resp.Protocol {
			return nil, NewProtocolError(*resp.Error)
		}

		return nil, &UserError{Message: *resp.Error}
	}

	return resp.Value, nil
}

// CallInto calls the endpoint and decodes its value into reply. A void
// result leaves reply untouched.
func (c EndpointClient) CallInto(ctx context.Context, reply any, args ...any) error {
	value, err := c.Call(ctx, args...)
	if err != nil {
		return err
	}

	if reply == nil || len(value) == 0 {
		return nil
	}

	if err := json.Unmarshal(value, reply); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	return nil
}

func Invoke[R any](ctx context.Context, c EndpointClient, args ...any) (R, error) {
	var out R
	err := c.CallInto(ctx, &out, args...)
	return out, err
}

// SocketClient addresses a node of a remote socket tree, with the same
// immutable path semantics as EndpointClient.
type SocketClient struct {
	transport SocketTransport
	path      path
}

func NewSocketClient(transport SocketTransport) SocketClient {
	return SocketClient{transport: transport}
}

func (c SocketClient) Get(segments ...string) SocketClient {
	return SocketClient{transport: c.transport, path: c.path.extend(segments)}
}

func (c SocketClient) Path() []string {
	return slices.Clone(c.path)
}

func (c SocketClient) Open(ctx context.Context, args ...any) (*Socket, error) {
	encoded, err := EncodeArgs(args...)
	if err != nil {
		return nil, err
	}

	return c.transport(ctx, Request{
		Tag:       KindSocket,
		RequestID: NewRequestID(),
		Path:      c.path.extend(nil),
		Args:      encoded,
	})
}
