package hermes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrCallTimeout = errors.New("request timeout")

// Correlator matches responses arriving on a shared channel to the calls
// waiting for them, keyed by request id.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]chan Response
	err     error
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]chan Response)}
}

// Register reserves id and returns the channel its response will arrive on.
// It fails once the correlator has been failed.
func (c *Correlator) Register(id string) (<-chan Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}

	ch := make(chan Response, 1)
	c.pending[id] = ch

	return ch, nil
}

func (c *Correlator) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Resolve routes resp to its waiting call. It reports false when nobody is
// waiting for that id.
func (c *Correlator) Resolve(resp Response) bool {
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()

	if ok {
		ch <- resp
	}

	return ok
}

// ResolveData decodes a response read off the wire and routes it. Undecodable
// data and responses nobody waits for are logged and dropped.
func (c *Correlator) ResolveData(codec Codec, data []byte, logger *slog.Logger) {
	resp, err := DecodeResponse(codec, data)
	if err != nil {
		logger.Error("failed to decode response", "error", err)
		return
	}

	if !c.Resolve(resp) {
		logger.Warn("received response for unknown request", "request_id", resp.RequestID)
	}
}

// Fail wakes every waiting call with err; later registrations fail with err.
func (c *Correlator) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err == nil {
		c.err = err
	}

	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Wait blocks until the response for id arrives, the correlator fails, the
// timeout elapses or ctx is done. A zero timeout waits on ctx alone.
func (c *Correlator) Wait(ctx context.Context, id string, ch <-chan Response, timeout time.Duration) (Response, error) {
	var timer <-chan time.Time

	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()

			return Response{}, err
		}

		return resp, nil

	case <-timer:
		c.Forget(id)

		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		return Response{}, ErrCallTimeout

	case <-ctx.Done():
		c.Forget(id)
		return Response{}, ctx.Err()
	}
}
