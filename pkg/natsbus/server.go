package natsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

type ServerConfig struct {
	Prefix string
	// Queue is the queue group shared by server replicas.
	Queue  string
	Codec  hermes.Codec
	Logger *slog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Prefix: DefaultPrefix,
		Queue:  "hermes",
		Codec:  hermes.DefaultCodec,
		Logger: slog.Default(),
	}
}

// Server answers requests for every address under its prefix; a Mux handler
// picks the router by address.
type Server struct {
	nc      *nats.Conn
	handler hermes.Handler
	cfg     ServerConfig
	logger  *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
	ctx  context.Context
}

func NewServer(nc *nats.Conn, h hermes.Handler, cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Codec == nil {
		cfg.Codec = hermes.DefaultCodec
	}

	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	if err := ValidateToken(cfg.Prefix); err != nil {
		return nil, err
	}

	return &Server{
		nc:      nc,
		handler: h,
		cfg:     cfg,
		logger:  cfg.Logger,
	}, nil
}

// Start subscribes to the request subjects. Handlers run with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs) > 0 {
		return errors.New("server already started")
	}

	s.ctx = ctx

	endpointSub, err := s.nc.QueueSubscribe(Subject(s.cfg.Prefix, "*", hermes.KindEndpoint), s.cfg.Queue, s.handleEndpoint)
	if err != nil {
		return fmt.Errorf("subscribe endpoints: %w", err)
	}

	socketSub, err := s.nc.QueueSubscribe(Subject(s.cfg.Prefix, "*", hermes.KindSocket), s.cfg.Queue, s.handleSocket)
	if err != nil {
		_ = endpointSub.Unsubscribe()
		return fmt.Errorf("subscribe sockets: %w", err)
	}

	s.subs = []*nats.Subscription{endpointSub, socketSub}

	s.logger.Info("nats server subscribed", "prefix", s.cfg.Prefix, "queue", s.cfg.Queue)

	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}

	s.subs = nil

	return errors.Join(errs...)
}

func (s *Server) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return context.Background()
	}

	return s.ctx
}

func (s *Server) metadata(msg *nats.Msg) hermes.Metadata {
	return hermes.Metadata{
		hermes.MetaTransport: transportName,
		hermes.MetaAddress:   addressFromSubject(msg.Subject),
	}
}

func (s *Server) handleEndpoint(msg *nats.Msg) {
	ctx := s.context()
	data := msg.Data
	md := s.metadata(msg)

	go func() {
		out, err := hermes.ServeEndpoint(ctx, s.handler, s.cfg.Codec, data, md)
		if err != nil {
			s.logger.Error("failed to encode response", "error", err)
			return
		}

		if err := msg.Respond(out); err != nil {
			s.logger.Error("failed to respond", "subject", msg.Subject, "error", err)
		}
	}()
}

func (s *Server) handleSocket(msg *nats.Msg) {
	peer := msg.Header.Get(headerReplyTo)
	if peer == "" {
		s.logger.Warn("socket request without reply inbox", "subject", msg.Subject)
		return
	}

	sess, err := newSession(s.nc, peer, s.logger)
	if err != nil {
		s.logger.Error("failed to open session", "error", err)
		return
	}

	if err := sess.sock.Deliver(msg.Data); err != nil {
		return
	}

	ack := nats.NewMsg(msg.Reply)
	ack.Header.Set(headerSession, sess.inbox)

	if err := msg.RespondMsg(ack); err != nil {
		s.logger.Error("failed to acknowledge session", "error", err)
		_ = sess.sub.Unsubscribe()

		return
	}

	ctx := s.context()
	md := s.metadata(msg)

	go func() {
		if err := s.handler.HandleSocket(ctx, sess.sock, md); err != nil {
			s.logger.Debug("socket session ended with error", "socket_id", sess.sock.ID(), "error", err)
		}
	}()
}
