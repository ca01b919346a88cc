// Package demo holds the sample handler trees served by the hermes command.
package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
	"github.com/LLIEPJIOK/hermes/pkg/hermes/loopback"
)

var ErrDivisionByZero = errors.New("division by zero")

func Endpoints() hermes.Tree {
	return hermes.Tree{
		"add": hermes.Func2(func(_ context.Context, a, b float64) (float64, error) {
			return a + b, nil
		}),
		"math": hermes.Tree{
			"mul": hermes.Func2(func(_ context.Context, a, b float64) (float64, error) {
				return a * b, nil
			}),
			"div": hermes.Func2(func(_ context.Context, a, b float64) (float64, error) {
				if b == 0 {
					return 0, ErrDivisionByZero
				}

				return a / b, nil
			}),
		},
		"echo": hermes.Func1(func(_ context.Context, v any) (any, error) {
			return v, nil
		}),
		"whoami": hermes.EndpointFunc(func(_ context.Context, _ hermes.Args, md hermes.Metadata) (any, error) {
			return map[string]string(md), nil
		}),
	}
}

func Sockets() hermes.Tree {
	return hermes.Tree{
		"echo": hermes.SocketFunc(echo),
		"upper": hermes.SocketFunc(func(ctx context.Context, sock *hermes.Socket, _ hermes.Args, _ hermes.Metadata) error {
			for {
				var s string
				if err := sock.ReceiveJSON(ctx, &s); err != nil {
					return ignoreClosed(err)
				}

				if err := sock.SendJSON(ctx, strings.ToUpper(s)); err != nil {
					return ignoreClosed(err)
				}
			}
		}),
		"countdown": hermes.SocketFunc(countdown),
	}
}

func echo(ctx context.Context, sock *hermes.Socket, _ hermes.Args, _ hermes.Metadata) error {
	for msg, err := range sock.ReceiveIter(ctx) {
		if err != nil {
			return err
		}

		if err := sock.Send(ctx, msg); err != nil {
			return ignoreClosed(err)
		}
	}

	return nil
}

// countdown sends from, from-1, ..., 1 spaced by interval milliseconds and
// closes the socket.
func countdown(ctx context.Context, sock *hermes.Socket, args hermes.Args, _ hermes.Metadata) error {
	from, interval := 3, 100

	if err := args.Decode(0, &from); err != nil {
		return err
	}

	if err := args.Decode(1, &interval); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(max(interval, 1)) * time.Millisecond)
	defer ticker.Stop()

	for n := from; n > 0; n-- {
		if err := sock.SendJSON(ctx, n); err != nil {
			return ignoreClosed(err)
		}

		select {
		case <-ticker.C:
		case <-sock.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return sock.Close(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, hermes.ErrSocketClosed) {
		return nil
	}

	return err
}

func NewRouter(cfg hermes.RouterConfig) *hermes.Router {
	return hermes.NewRouter(Endpoints(), Sockets(), cfg)
}

// Run serves the demo router over an in-process transport, adds two numbers
// and echoes a message, printing both results to w.
func Run(ctx context.Context, w io.Writer, cfg hermes.RouterConfig) error {
	transport := loopback.New(loopback.DefaultAddress)
	stop := transport.Listen(NewRouter(cfg))
	defer stop()

	endpoints := hermes.NewEndpointClient(transport.EndpointTransport())
	sockets := hermes.NewSocketClient(transport.SocketTransport())

	sum, err := hermes.Invoke[float64](ctx, endpoints.Get("add"), 1, 2)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	fmt.Fprintln(w, sum)

	sock, err := sockets.Get("echo").Open(ctx)
	if err != nil {
		return fmt.Errorf("open echo: %w", err)
	}
	defer sock.Close(context.WithoutCancel(ctx))

	if err := sock.SendJSON(ctx, "Hello world!"); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	var reply string
	if err := sock.ReceiveJSON(ctx, &reply); err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	fmt.Fprintln(w, reply)

	return nil
}
