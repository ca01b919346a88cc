package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

// DialFunc opens a new stream connection to the server.
type DialFunc func(ctx context.Context) (net.Conn, error)

// TCPDialer returns a DialFunc for a TCP address.
func TCPDialer(addr string) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

type ClientConfig struct {
	Dial           DialFunc
	Address        string
	RequestTimeout time.Duration
	Codec          hermes.Codec
	Logger         *slog.Logger
}

func DefaultClientConfig(dial DialFunc) ClientConfig {
	return ClientConfig{
		Dial:           dial,
		Address:        "default",
		RequestTimeout: 30 * time.Second,
		Codec:          hermes.DefaultCodec,
		Logger:         slog.Default(),
	}
}

// Client multiplexes endpoint calls over one connection and dials a new
// connection per socket session.
type Client struct {
	cfg       ClientConfig
	conn      *conn
	connMu    sync.RWMutex
	pending   *hermes.Correlator
	lifecycle *hermes.Lifecycle
	logger    *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Codec == nil {
		cfg.Codec = hermes.DefaultCodec
	}

	if cfg.Address == "" {
		cfg.Address = "default"
	}

	return &Client{
		cfg:       cfg,
		pending:   hermes.NewCorrelator(),
		lifecycle: hermes.NewLifecycle(),
		logger:    cfg.Logger,
	}
}

func (c *Client) dial(ctx context.Context) (*conn, error) {
	if c.cfg.Dial == nil {
		return nil, fmt.Errorf("dial failed: %w", ErrNotConnected)
	}

	nc, err := c.cfg.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	return newConn(nc), nil
}

func (c *Client) Connect(ctx context.Context) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	cn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = cn
	c.connMu.Unlock()

	go c.readLoop(cn)

	return nil
}

func (c *Client) readLoop(cn *conn) {
	defer func() {
		c.lifecycle.Shutdown()
		c.pending.Fail(ErrConnectionClosed)
	}()

	for {
		f, err := cn.read()
		if err != nil {
			logReadError(c.logger, err)
			return
		}

		if f.typ == frameClose {
			return
		}

		c.pending.ResolveData(c.cfg.Codec, f.payload, c.logger)
	}
}

func (c *Client) EndpointTransport() hermes.EndpointTransport {
	return func(ctx context.Context, req hermes.Request) (hermes.Response, error) {
		if c.IsClosed() {
			return hermes.Response{}, ErrConnectionClosed
		}

		c.connMu.RLock()
		cn := c.conn
		c.connMu.RUnlock()

		if cn == nil {
			return hermes.Response{}, ErrNotConnected
		}

		req.Address = c.cfg.Address

		data, err := c.cfg.Codec.Encode(req)
		if err != nil {
			return hermes.Response{}, fmt.Errorf("failed to encode request: %w", err)
		}

		ch, err := c.pending.Register(req.RequestID)
		if err != nil {
			return hermes.Response{}, err
		}

		if err := cn.send(data); err != nil {
			c.pending.Forget(req.RequestID)
			return hermes.Response{}, fmt.Errorf("failed to send request: %w", err)
		}

		return c.pending.Wait(ctx, req.RequestID, ch, c.cfg.RequestTimeout)
	}
}

func (c *Client) SocketTransport() hermes.SocketTransport {
	return func(ctx context.Context, req hermes.Request) (*hermes.Socket, error) {
		if c.IsClosed() {
			return nil, ErrConnectionClosed
		}

		req.Address = c.cfg.Address

		data, err := c.cfg.Codec.Encode(req)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}

		cn, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}

		if err := cn.send(data); err != nil {
			_ = cn.Close()
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		sock := cn.socket()
		go cn.pump(sock, c.logger)

		return sock, nil
	}
}

func (c *Client) Close() error {
	if !c.lifecycle.Shutdown() {
		return nil
	}

	c.connMu.Lock()
	cn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	c.pending.Fail(ErrConnectionClosed)

	if cn != nil {
		return cn.shutdown()
	}

	return nil
}

func (c *Client) Done() <-chan struct{} {
	return c.lifecycle.Done()
}

func (c *Client) IsClosed() bool {
	return c.lifecycle.IsClosed()
}
