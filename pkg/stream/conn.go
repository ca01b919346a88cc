package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

const closeWriteTimeout = time.Second

type conn struct {
	net.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConn(c net.Conn) *conn {
	return &conn{Conn: c}
}

func (c *conn) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := encodeFrame(f)
	if err != nil {
		return err
	}

	_, err = c.Write(data)
	return err
}

func (c *conn) send(data []byte) error {
	return c.writeFrame(frame{typ: frameMessage, payload: data})
}

func (c *conn) read() (frame, error) {
	return readFrame(c.Conn)
}

// shutdown tells the peer the session is over and releases the connection.
func (c *conn) shutdown() error {
	var err error

	c.closeOnce.Do(func() {
		_ = c.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
		_ = c.writeFrame(frame{typ: frameClose})
		err = c.Close()
	})

	return err
}

func (c *conn) socket() *hermes.Socket {
	return hermes.NewSocket(
		func(_ context.Context, msg json.RawMessage) error {
			return c.send(msg)
		},
		func(context.Context) error {
			return c.shutdown()
		},
	)
}

// pump feeds message frames into sock until a close frame arrives or the
// connection fails.
func (c *conn) pump(sock *hermes.Socket, logger *slog.Logger) {
	defer sock.SignalClosed()
	defer c.Close()

	for {
		f, err := c.read()
		if err != nil {
			logReadError(logger, err)
			return
		}

		if f.typ == frameClose {
			return
		}

		if !json.Valid(f.payload) {
			logger.Warn("dropping non-JSON socket message", "socket_id", sock.ID())
			continue
		}

		if err := sock.Deliver(f.payload); err != nil {
			return
		}
	}
}

func logReadError(logger *slog.Logger, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return
	}

	logger.Error("read error", "error", err)
}
