package cli

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/LLIEPJIOK/hermes/pkg/config"
	"github.com/LLIEPJIOK/hermes/pkg/hermes"
	"github.com/LLIEPJIOK/hermes/pkg/jsonrpc"
	"github.com/LLIEPJIOK/hermes/pkg/natsbus"
	"github.com/LLIEPJIOK/hermes/pkg/stream"
	"github.com/LLIEPJIOK/hermes/pkg/ws"
)

// clientTransport is the client side of the configured transport.
type clientTransport struct {
	endpoint hermes.EndpointTransport
	// socket is nil for transports without socket sessions.
	socket hermes.SocketTransport
	close  func() error
}

func (a *app) dial(ctx context.Context) (*clientTransport, error) {
	c := a.cfg.Client

	switch c.Transport {
	case "ws":
		cfg := ws.DefaultClientConfig(c.URL)
		cfg.Address = a.cfg.Address
		cfg.RequestTimeout = c.RequestTimeout
		cfg.Logger = a.logger

		client := ws.NewClient(cfg)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}

		return &clientTransport{
			endpoint: client.EndpointTransport(),
			socket:   client.SocketTransport(),
			close:    client.Close,
		}, nil

	case "jsonrpc":
		cfg := jsonrpc.DefaultClientConfig(c.URL)
		cfg.Address = a.cfg.Address
		cfg.RequestTimeout = c.RequestTimeout
		cfg.Logger = a.logger

		return &clientTransport{
			endpoint: jsonrpc.NewEndpointTransport(cfg),
			close:    func() error { return nil },
		}, nil

	case "stream":
		cfg := stream.DefaultClientConfig(stream.TCPDialer(c.URL))
		cfg.Address = a.cfg.Address
		cfg.RequestTimeout = c.RequestTimeout
		cfg.Logger = a.logger

		client := stream.NewClient(cfg)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}

		return &clientTransport{
			endpoint: client.EndpointTransport(),
			socket:   client.SocketTransport(),
			close:    client.Close,
		}, nil

	case "nats":
		return a.dialNATS(c)

	default:
		return nil, fmt.Errorf("unknown client transport %q", c.Transport)
	}
}

func (a *app) dialNATS(c config.ClientConfig) (*clientTransport, error) {
	nc, err := nats.Connect(c.URL, nats.Name("hermes-cli"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	cfg := natsbus.DefaultClientConfig()
	cfg.Prefix = a.cfg.NATS.Prefix
	cfg.Address = a.cfg.Address
	cfg.RequestTimeout = c.RequestTimeout
	cfg.Logger = a.logger

	client, err := natsbus.NewClient(nc, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &clientTransport{
		endpoint: client.EndpointTransport(),
		socket:   client.SocketTransport(),
		close: func() error {
			nc.Close()
			return nil
		},
	}, nil
}
