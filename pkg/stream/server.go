package stream

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

const transportName = "stream"

type ServerConfig struct {
	Codec  hermes.Codec
	Logger *slog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Codec:  hermes.DefaultCodec,
		Logger: slog.Default(),
	}
}

// Server speaks the frame protocol over any stream connection. As with the
// websocket transport, the first frame decides whether a connection carries
// endpoint calls or a single socket session.
type Server struct {
	handler hermes.Handler
	cfg     ServerConfig
	logger  *slog.Logger

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*conn]struct{}
	closed    atomic.Bool
	wg        sync.WaitGroup
}

func NewServer(h hermes.Handler, cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Codec == nil {
		cfg.Codec = hermes.DefaultCodec
	}

	return &Server{
		handler:   h,
		cfg:       cfg,
		logger:    cfg.Logger,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[*conn]struct{}),
	}
}

// Serve accepts connections on l until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	s.mu.Lock()
	s.listeners[l] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.listeners, l)
		s.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	s.logger.Info("stream server listening", "addr", l.Addr().String())

	for {
		c, err := l.Accept()
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.wg.Go(func() { s.ServeConn(ctx, c) })
	}
}

// ServeConn serves a single connection and returns when it is done.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	c := newConn(nc)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()

		_ = c.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	md := hermes.Metadata{hermes.MetaTransport: transportName}
	if addr := nc.RemoteAddr(); addr != nil {
		md[hermes.MetaRemoteAddr] = addr.String()
	}

	first, err := c.read()
	if err != nil {
		logReadError(s.logger, err)
		return
	}

	if first.typ == frameClose {
		return
	}

	if hermes.PeekKind(first.payload) == hermes.KindSocket {
		s.serveSocket(ctx, c, first.payload, md)
		return
	}

	s.serveEndpoints(ctx, c, first.payload, md)
}

func (s *Server) serveSocket(ctx context.Context, c *conn, opening []byte, md hermes.Metadata) {
	sock := c.socket()

	if err := sock.Deliver(opening); err != nil {
		return
	}

	go func() {
		if err := s.handler.HandleSocket(ctx, sock, md); err != nil {
			s.logger.Debug("socket session ended with error", "socket_id", sock.ID(), "error", err)
		}
	}()

	c.pump(sock, s.logger)
}

func (s *Server) serveEndpoints(ctx context.Context, c *conn, data []byte, md hermes.Metadata) {
	for {
		go s.processRequest(ctx, c, data, md)

		f, err := c.read()
		if err != nil {
			logReadError(s.logger, err)
			return
		}

		if f.typ == frameClose {
			return
		}

		data = f.payload
	}
}

func (s *Server) processRequest(ctx context.Context, c *conn, data []byte, md hermes.Metadata) {
	out, err := hermes.ServeEndpoint(ctx, s.handler, s.cfg.Codec, data, md)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		return
	}

	if err := c.send(out); err != nil {
		s.logger.Error("failed to write message", "error", err)
	}
}

// Close stops all listeners and drops every open connection.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	for l := range s.listeners {
		_ = l.Close()
	}

	for c := range s.conns {
		_ = c.shutdown()
	}
	s.mu.Unlock()

	s.wg.Wait()

	return nil
}
