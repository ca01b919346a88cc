package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

// noProxyDialer - WebSocket диалер без использования HTTP_PROXY
var noProxyDialer = websocket.Dialer{
	Proxy:            nil,
	HandshakeTimeout: 45 * time.Second,
}

type ClientConfig struct {
	URL            string
	Address        string
	RequestTimeout time.Duration
	Codec          hermes.Codec
	Logger         *slog.Logger
}

func DefaultClientConfig(wsURL string) ClientConfig {
	return ClientConfig{
		URL:            wsURL,
		Address:        "default",
		RequestTimeout: 30 * time.Second,
		Codec:          hermes.DefaultCodec,
		Logger:         slog.Default(),
	}
}

// Client мультиплексирует вызовы эндпоинтов в одном соединении, а для каждой
// сокет-сессии открывает новое.
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
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	wsConn, _, err := noProxyDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	return newConn(wsConn), nil
}

func (c *Client) Connect(ctx context.Context) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	c.logger.Info("connecting to server", slog.String("url", c.cfg.URL))

	cn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = cn
	c.connMu.Unlock()

	c.logger.Info("connected to server", "url", c.cfg.URL)

	go c.readLoop(cn)

	return nil
}

func (c *Client) readLoop(cn *conn) {
	defer func() {
		c.lifecycle.Shutdown()
		c.pending.Fail(ErrConnectionClosed)
	}()

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			logReadError(c.logger, err)
			return
		}

		c.pending.ResolveData(c.cfg.Codec, data, c.logger)
	}
}

func (c *Client) EndpointTransport() hermes.EndpointTransport {
	return c.call
}

func (c *Client) call(ctx context.Context, req hermes.Request) (hermes.Response, error) {
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

	if err := cn.write(data); err != nil {
		c.pending.Forget(req.RequestID)
		return hermes.Response{}, fmt.Errorf("failed to send request: %w", err)
	}

	return c.pending.Wait(ctx, req.RequestID, ch, c.cfg.RequestTimeout)
}

// SocketTransport открывает отдельное соединение на сессию. Закрытие сокета
// закрывает соединение, обрыв соединения закрывает сокет.
func (c *Client) SocketTransport() hermes.SocketTransport {
	return func(ctx context.Context, req hermes.Request) (*hermes.Socket, error) {
		if c.IsClosed() {
			return nil, ErrConnectionClosed
		}

		req.Address = c.cfg.Address

		cn, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}

		if err := cn.writeJSON(req); err != nil {
			_ = cn.ws.Close()
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
		return cn.close("client closing")
	}

	return nil
}

func (c *Client) Done() <-chan struct{} {
	return c.lifecycle.Done()
}

func (c *Client) IsClosed() bool {
	return c.lifecycle.IsClosed()
}
