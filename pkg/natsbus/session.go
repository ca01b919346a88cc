package natsbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

// session is one end of a socket session: it listens on its own inbox and
// publishes to the peer's.
type session struct {
	nc     *nats.Conn
	inbox  string
	peer   string
	sub    *nats.Subscription
	sock   *hermes.Socket
	logger *slog.Logger
}

func newSession(nc *nats.Conn, peer string, logger *slog.Logger) (*session, error) {
	s := &session{
		nc:     nc,
		inbox:  nc.NewInbox(),
		peer:   peer,
		logger: logger,
	}

	s.sock = hermes.NewSocket(s.send, s.close)

	sub, err := nc.Subscribe(s.inbox, s.receive)
	if err != nil {
		return nil, err
	}

	s.sub = sub

	return s, nil
}

func (s *session) send(_ context.Context, msg json.RawMessage) error {
	return s.nc.Publish(s.peer, msg)
}

func (s *session) close(context.Context) error {
	defer func() { _ = s.sub.Unsubscribe() }()

	if s.peer == "" {
		return nil
	}

	msg := nats.NewMsg(s.peer)
	msg.Header.Set(headerClose, "1")

	return s.nc.PublishMsg(msg)
}

func (s *session) receive(msg *nats.Msg) {
	if msg.Header.Get(headerClose) != "" {
		_ = s.sub.Unsubscribe()
		s.sock.SignalClosed()

		return
	}

	if !json.Valid(msg.Data) {
		s.logger.Warn("dropping non-JSON socket message", "socket_id", s.sock.ID())
		return
	}

	_ = s.sock.Deliver(msg.Data)
}
