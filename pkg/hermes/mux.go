package hermes

import (
	"context"
	"log/slog"
	"sync"
)

// MuxConfig covers requests the mux rejects before any router sees them.
type MuxConfig struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

func DefaultMuxConfig() MuxConfig {
	return MuxConfig{
		Logger: slog.Default(),
	}
}

// Mux dispatches requests to one of several routers sharing a transport,
// chosen by the request address.
type Mux struct {
	mu      sync.RWMutex
	routers map[string]*Router
	logger  *slog.Logger
	metrics *Metrics
}

func NewMux(cfg MuxConfig) *Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Mux{
		routers: make(map[string]*Router),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

func (m *Mux) Handle(address string, r *Router) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routers[address] = r
}

func (m *Mux) Remove(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.routers, address)
}

func (m *Mux) Router(address string) (*Router, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routers[address]
	return r, ok
}

func (m *Mux) HandleEndpoint(ctx context.Context, req Request, md Metadata) (Response, error) {
	if err := validateRequest(KindEndpoint, req); err != nil {
		m.metrics.observeRequest(KindEndpoint, StatusProtocolError)
		return Response{}, err
	}

	r, ok := m.Router(req.Address)
	if !ok {
		err := protocolErrorf(ErrNoRouter, "address %q:", req.Address)
		m.logger.Debug("endpoint rejected", "request_id", req.RequestID, "error", err)
		m.metrics.observeRequest(KindEndpoint, StatusProtocolError)

		return Response{}, err
	}

	return r.HandleEndpoint(ctx, req, md.With(MetaAddress, req.Address))
}

func (m *Mux) HandleSocket(ctx context.Context, sock *Socket, md Metadata) error {
	raw, err := sock.Receive(ctx)
	if err != nil {
		return err
	}

	req, err := DecodeRequest(raw)
	if err == nil {
		err = validateRequest(KindSocket, req)
	}

	if err != nil {
		m.metrics.observeRequest(KindSocket, StatusProtocolError)
		abortSocket(ctx, m.logger, sock, req, err)

		return err
	}

	r, ok := m.Router(req.Address)
	if !ok {
		err := protocolErrorf(ErrNoRouter, "address %q:", req.Address)
		m.metrics.observeRequest(KindSocket, StatusProtocolError)
		abortSocket(ctx, m.logger, sock, req, err)

		return err
	}

	return r.serveSocket(ctx, sock, req, md.With(MetaAddress, req.Address))
}
