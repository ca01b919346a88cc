package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/google/uuid"
)

type (
	SendFunc  func(ctx context.Context, msg json.RawMessage) error
	CloseFunc func(ctx context.Context) error
)

// Socket is one end of a duplex message session. Inbound messages are pushed
// by the channel owner with Deliver and consumed with Receive in FIFO order.
// A socket expects a single reader; concurrent readers get messages in
// unspecified order.
type Socket struct {
	id      string
	sendFn  SendFunc
	closeFn CloseFunc

	mu      sync.Mutex
	queue   []json.RawMessage
	waiters []chan json.RawMessage
	closed  bool
	done    chan struct{}
}

func NewSocket(send SendFunc, closeFn CloseFunc) *Socket {
	return &Socket{
		id:      uuid.NewString(),
		sendFn:  send,
		closeFn: closeFn,
		done:    make(chan struct{}),
	}
}

// Pipe returns two sockets wired to each other in memory: sending on one
// delivers to the other, closing one signals the other.
func Pipe() (*Socket, *Socket) {
	var a, b *Socket

	a = NewSocket(
		func(_ context.Context, msg json.RawMessage) error { return b.Deliver(msg) },
		func(context.Context) error {
			b.SignalClosed()
			return nil
		},
	)
	b = NewSocket(
		func(_ context.Context, msg json.RawMessage) error { return a.Deliver(msg) },
		func(context.Context) error {
			a.SignalClosed()
			return nil
		},
	)

	return a, b
}

func (s *Socket) ID() string {
	return s.id
}

func (s *Socket) Send(ctx context.Context, msg json.RawMessage) error {
	if s.IsClosed() {
		return ErrSocketClosed
	}

	if s.sendFn == nil {
		return fmt.Errorf("%w: no send primitive", ErrSocketClosed)
	}

	return s.sendFn(ctx, msg)
}

func (s *Socket) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	return s.Send(ctx, data)
}

func (s *Socket) Receive(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()

	if len(s.queue) > 0 {
		msg := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		return msg, nil
	}

	if s.closed {
		s.mu.Unlock()
		return nil, ErrSocketClosed
	}

	w := make(chan json.RawMessage, 1)
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	select {
	case msg, ok := <-w:
		if !ok {
			return nil, ErrSocketClosed
		}

		return msg, nil

	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.removeWaiterLocked(w) {
			return nil, ctx.Err()
		}

		// Deliver or close won the race; w is already filled or closed.
		if msg, ok := <-w; ok {
			s.pushFrontLocked(msg)
		}

		return nil, ctx.Err()
	}
}

func (s *Socket) ReceiveJSON(ctx context.Context, v any) error {
	msg, err := s.Receive(ctx)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(msg, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	return nil
}

// ReceiveIter yields inbound messages until the socket is closed and drained.
// Errors other than ErrSocketClosed are yielded once and end the sequence.
func (s *Socket) ReceiveIter(ctx context.Context) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for {
			msg, err := s.Receive(ctx)
			if errors.Is(err, ErrSocketClosed) {
				return
			}

			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Close marks the socket closed and runs the close primitive once. Later
// calls are no-ops.
func (s *Socket) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.markClosedLocked()
	s.mu.Unlock()

	if s.closeFn == nil {
		return nil
	}

	return s.closeFn(ctx)
}

func (s *Socket) WaitForClose(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Socket) Done() <-chan struct{} {
	return s.done
}

func (s *Socket) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Deliver hands an inbound message to the oldest waiting receiver or queues it.
func (s *Socket) Deliver(msg json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSocketClosed
	}

	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters[0] = nil
		s.waiters = s.waiters[1:]
		w <- msg

		return nil
	}

	s.queue = append(s.queue, msg)

	return nil
}

// SignalClosed marks the socket closed without running the close primitive.
// Transports call it when the remote side went away first.
func (s *Socket) SignalClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.markClosedLocked()
	}
}

func (s *Socket) markClosedLocked() {
	s.closed = true

	for _, w := range s.waiters {
		close(w)
	}

	s.waiters = nil
	close(s.done)
}

func (s *Socket) removeWaiterLocked(w chan json.RawMessage) bool {
	for i, candidate := range s.waiters {
		if candidate == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}

	return false
}

func (s *Socket) pushFrontLocked(msg json.RawMessage) {
	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		w <- msg

		return
	}

	s.queue = append([]json.RawMessage{msg}, s.queue...)
}
