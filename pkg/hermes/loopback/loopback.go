// Package loopback connects hermes clients to a handler in the same process.
package loopback

import (
	"context"
	"sync"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

const DefaultAddress = "default"

const transportName = "loopback"

type Transport struct {
	address string

	mu      sync.RWMutex
	handler hermes.Handler
}

// New returns a transport that stamps requests with address. An empty
// address means DefaultAddress.
func New(address string) *Transport {
	if address == "" {
		address = DefaultAddress
	}

	return &Transport{address: address}
}

func (t *Transport) Address() string {
	return t.address
}

// Listen installs h as the receiving side, replacing any previous handler.
// The returned function uninstalls it.
func (t *Transport) Listen(h hermes.Handler) (stop func()) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if t.handler == h {
			t.handler = nil
		}
	}
}

func (t *Transport) current() (hermes.Handler, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.handler == nil {
		return nil, &hermes.ProtocolError{Msg: hermes.ErrNoRouter.Error(), Err: hermes.ErrNoRouter}
	}

	return t.handler, nil
}

func (t *Transport) metadata() hermes.Metadata {
	return hermes.Metadata{hermes.MetaTransport: transportName}
}

func (t *Transport) EndpointTransport() hermes.EndpointTransport {
	return func(ctx context.Context, req hermes.Request) (hermes.Response, error) {
		h, err := t.current()
		if err != nil {
			return hermes.Response{}, err
		}

		req.Address = t.address

		return h.HandleEndpoint(ctx, req, t.metadata())
	}
}

// SocketTransport runs each session on its own goroutine over an in-memory
// socket pair. The session outlives ctx; it ends when either side closes.
func (t *Transport) SocketTransport() hermes.SocketTransport {
	return func(ctx context.Context, req hermes.Request) (*hermes.Socket, error) {
		h, err := t.current()
		if err != nil {
			return nil, err
		}

		req.Address = t.address

		local, remote := hermes.Pipe()

		if err := local.SendJSON(ctx, req); err != nil {
			return nil, err
		}

		go func() {
			_ = h.HandleSocket(context.WithoutCancel(ctx), remote, t.metadata())
		}()

		return local, nil
	}
}
