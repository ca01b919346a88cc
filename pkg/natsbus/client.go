package natsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

type ClientConfig struct {
	Prefix         string
	Address        string
	RequestTimeout time.Duration
	Codec          hermes.Codec
	Logger         *slog.Logger
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Prefix:         DefaultPrefix,
		Address:        "default",
		RequestTimeout: 30 * time.Second,
		Codec:          hermes.DefaultCodec,
		Logger:         slog.Default(),
	}
}

type Client struct {
	nc     *nats.Conn
	cfg    ClientConfig
	logger *slog.Logger
}

func NewClient(nc *nats.Conn, cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Codec == nil {
		cfg.Codec = hermes.DefaultCodec
	}

	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	if cfg.Address == "" {
		cfg.Address = "default"
	}

	if err := ValidateToken(cfg.Prefix); err != nil {
		return nil, err
	}

	if err := ValidateToken(cfg.Address); err != nil {
		return nil, err
	}

	return &Client{nc: nc, cfg: cfg, logger: cfg.Logger}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

// request maps bus failures onto hermes errors: no responders means nobody
// serves the address.
func (c *Client) request(ctx context.Context, msg *nats.Msg) (*nats.Msg, error) {
	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	reply, err := c.nc.RequestMsgWithContext(reqCtx, msg)

	switch {
	case errors.Is(err, nats.ErrNoResponders):
		return nil, &hermes.ProtocolError{Msg: hermes.ErrNoRouter.Error(), Err: hermes.ErrNoRouter}

	case err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		return nil, hermes.ErrCallTimeout

	case err != nil:
		return nil, fmt.Errorf("nats request: %w", err)
	}

	return reply, nil
}

func (c *Client) EndpointTransport() hermes.EndpointTransport {
	return func(ctx context.Context, req hermes.Request) (hermes.Response, error) {
		req.Address = c.cfg.Address

		data, err := c.cfg.Codec.Encode(req)
		if err != nil {
			return hermes.Response{}, fmt.Errorf("failed to encode request: %w", err)
		}

		msg := nats.NewMsg(Subject(c.cfg.Prefix, c.cfg.Address, hermes.KindEndpoint))
		msg.Data = data

		reply, err := c.request(ctx, msg)
		if err != nil {
			return hermes.Response{}, err
		}

		return hermes.DecodeResponse(c.cfg.Codec, reply.Data)
	}
}

func (c *Client) SocketTransport() hermes.SocketTransport {
	return func(ctx context.Context, req hermes.Request) (*hermes.Socket, error) {
		req.Address = c.cfg.Address

		data, err := c.cfg.Codec.Encode(req)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}

		sess, err := newSession(c.nc, "", c.logger)
		if err != nil {
			return nil, err
		}

		msg := nats.NewMsg(Subject(c.cfg.Prefix, c.cfg.Address, hermes.KindSocket))
		msg.Data = data
		msg.Header.Set(headerReplyTo, sess.inbox)

		reply, err := c.request(ctx, msg)
		if err != nil {
			_ = sess.sub.Unsubscribe()
			return nil, err
		}

		peer := reply.Header.Get(headerSession)
		if peer == "" {
			_ = sess.sub.Unsubscribe()
			return nil, ErrNoSession
		}

		sess.peer = peer

		return sess.sock, nil
	}
}
