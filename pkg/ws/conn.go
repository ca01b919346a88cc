package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

const closeWriteTimeout = time.Second

// conn сериализует запись в соединение: gorilla/websocket допускает только
// одного пишущего. Close и WriteControl можно вызывать из любой горутины.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

func (c *conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return c.write(data)
}

func (c *conn) close(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))

	return c.ws.Close()
}

// socket представляет соединение как hermes.Socket: отправка пишет текстовый
// кадр, закрытие отправляет close-кадр и рвёт соединение.
func (c *conn) socket() *hermes.Socket {
	return hermes.NewSocket(
		func(_ context.Context, msg json.RawMessage) error {
			return c.write(msg)
		},
		func(context.Context) error {
			return c.close("socket closed")
		},
	)
}

// pump доставляет в sock все прочитанные кадры, пока соединение живо,
// после чего помечает сокет закрытым.
func (c *conn) pump(sock *hermes.Socket, logger *slog.Logger) {
	defer sock.SignalClosed()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			logReadError(logger, err)
			return
		}

		if !json.Valid(data) {
			logger.Warn("dropping non-JSON socket message", "socket_id", sock.ID())
			continue
		}

		if err := sock.Deliver(data); err != nil {
			return
		}
	}
}

func logReadError(logger *slog.Logger, err error) {
	if websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseGoingAway,
		websocket.CloseNormalClosure,
	) {
		logger.Error("read error", "error", err)
	}
}
