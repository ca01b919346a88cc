package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

const transportName = "ws"

type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Codec           hermes.Codec
	Logger          *slog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
		Codec:           hermes.DefaultCodec,
		Logger:          slog.Default(),
	}
}

// Server принимает WebSocket соединения для hermes.Handler. Роль соединения
// определяется первым кадром: socket-запрос или вызовы эндпоинтов.
type Server struct {
	upgrader websocket.Upgrader
	handler  hermes.Handler
	codec    hermes.Codec
	logger   *slog.Logger
}

func NewServer(h hermes.Handler, cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Codec == nil {
		cfg.Codec = hermes.DefaultCodec
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		handler: h,
		codec:   cfg.Codec,
		logger:  cfg.Logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}
	defer wsConn.Close()

	s.logger.Info("client connected", "remote_addr", wsConn.RemoteAddr())
	defer s.logger.Info("client disconnected", "remote_addr", wsConn.RemoteAddr())

	md := hermes.Metadata{
		hermes.MetaTransport:  transportName,
		hermes.MetaRemoteAddr: r.RemoteAddr,
		hermes.MetaOrigin:     r.Header.Get("Origin"),
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_, first, err := wsConn.ReadMessage()
	if err != nil {
		logReadError(s.logger, err)
		return
	}

	c := newConn(wsConn)

	if hermes.PeekKind(first) == hermes.KindSocket {
		s.serveSocket(ctx, c, first, md)
		return
	}

	s.serveEndpoints(ctx, c, first, md)
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

		var err error

		_, data, err = c.ws.ReadMessage()
		if err != nil {
			logReadError(s.logger, err)
			return
		}
	}
}

func (s *Server) processRequest(ctx context.Context, c *conn, data []byte, md hermes.Metadata) {
	out, err := hermes.ServeEndpoint(ctx, s.handler, s.codec, data, md)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		return
	}

	if err := c.write(out); err != nil {
		s.logger.Error("failed to write message", "error", err)
	}
}
