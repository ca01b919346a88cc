package hermes

import (
	"context"
	"log/slog"
	"time"
)

// Handler is the server side of a transport. Both *Router and *Mux
// implement it.
type Handler interface {
	HandleEndpoint(ctx context.Context, req Request, md Metadata) (Response, error)
	HandleSocket(ctx context.Context, sock *Socket, md Metadata) error
}

type RouterConfig struct {
	// DisableMetadata makes handlers receive a nil Metadata.
	DisableMetadata bool
	Logger          *slog.Logger
	Metrics         *Metrics
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Logger: slog.Default(),
	}
}

type Router struct {
	endpoints       Tree
	sockets         Tree
	disableMetadata bool
	logger          *slog.Logger
	metrics         *Metrics
}

// NewRouter copies both trees, so later changes to the caller's maps are not
// seen by the router.
func NewRouter(endpoints, sockets Tree, cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Router{
		endpoints:       endpoints.clone(),
		sockets:         sockets.clone(),
		disableMetadata: cfg.DisableMetadata,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
	}
}

func (r *Router) Endpoints() Tree {
	return r.endpoints
}

func (r *Router) Sockets() Tree {
	return r.sockets
}

// HandleEndpoint runs the endpoint addressed by req. Handler failures are
// returned as error responses; only protocol violations (bad envelope,
// unknown path, non-callable path) are returned as errors.
func (r *Router) HandleEndpoint(ctx context.Context, req Request, md Metadata) (Response, error) {
	if err := validateRequest(KindEndpoint, req); err != nil {
		r.metrics.observeRequest(KindEndpoint, StatusProtocolError)
		return Response{}, err
	}

	fn, err := r.lookupEndpoint(req.Path)
	if err != nil {
		r.metrics.observeRequest(KindEndpoint, StatusProtocolError)
		return Response{}, err
	}

	start := time.Now()
	value, err := callEndpoint(ctx, fn, req.Args, r.metadata(md))
	r.metrics.observeDuration(KindEndpoint, time.Since(start))

	if err != nil {
		r.logger.Debug("endpoint failed",
			"path", joinPath(req.Path),
			"request_id", req.RequestID,
			"error", err,
		)
		r.metrics.observeRequest(KindEndpoint, StatusError)

		return ToErrorResponse(req, err), nil
	}

	r.metrics.observeRequest(KindEndpoint, StatusOK)

	return ToSuccessResponse(req, value), nil
}

// HandleSocket reads the session opening request from sock and runs the
// matching socket handler. It returns when the handler returns. On any
// failure the socket is closed and the error returned.
func (r *Router) HandleSocket(ctx context.Context, sock *Socket, md Metadata) error {
	raw, err := sock.Receive(ctx)
	if err != nil {
		return err
	}

	req, err := DecodeRequest(raw)
	if err != nil {
		r.metrics.observeRequest(KindSocket, StatusProtocolError)
		abortSocket(ctx, r.logger, sock, req, err)

		return err
	}

	return r.serveSocket(ctx, sock, req, md)
}

func (r *Router) serveSocket(ctx context.Context, sock *Socket, req Request, md Metadata) error {
	if err := validateRequest(KindSocket, req); err != nil {
		r.metrics.observeRequest(KindSocket, StatusProtocolError)
		abortSocket(ctx, r.logger, sock, req, err)

		return err
	}

	fn, err := r.lookupSocket(req.Path)
	if err != nil {
		r.metrics.observeRequest(KindSocket, StatusProtocolError)
		abortSocket(ctx, r.logger, sock, req, err)

		return err
	}

	r.logger.Debug("socket opened", "path", joinPath(req.Path), "socket_id", sock.ID())

	r.metrics.socketOpened()
	start := time.Now()
	err = callSocket(ctx, fn, sock, req.Args, r.metadata(md))
	r.metrics.observeDuration(KindSocket, time.Since(start))
	r.metrics.socketClosed()

	if err != nil {
		r.metrics.observeRequest(KindSocket, StatusError)
		abortSocket(ctx, r.logger, sock, req, err)

		return err
	}

	r.metrics.observeRequest(KindSocket, StatusOK)

	return nil
}

func abortSocket(ctx context.Context, logger *slog.Logger, sock *Socket, req Request, cause error) {
	logger.Error("socket session failed",
		"path", joinPath(req.Path),
		"socket_id", sock.ID(),
		"error", cause,
	)

	if err := sock.Close(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("failed to close socket", "socket_id", sock.ID(), "error", err)
	}
}

func (r *Router) lookupEndpoint(path []string) (EndpointFunc, error) {
	node, ok := resolve(r.endpoints, path)
	if !ok {
		return nil, protocolErrorf(ErrNotFound, "endpoint %q", joinPath(path))
	}

	fn, ok := node.(EndpointFunc)
	if !ok || fn == nil {
		return nil, protocolErrorf(ErrNotCallable, "endpoint %q", joinPath(path))
	}

	return fn, nil
}

func (r *Router) lookupSocket(path []string) (SocketFunc, error) {
	node, ok := resolve(r.sockets, path)
	if !ok {
		return nil, protocolErrorf(ErrNotFound, "socket %q", joinPath(path))
	}

	fn, ok := node.(SocketFunc)
	if !ok || fn == nil {
		return nil, protocolErrorf(ErrNotCallable, "socket %q", joinPath(path))
	}

	return fn, nil
}

func (r *Router) metadata(md Metadata) Metadata {
	if r.disableMetadata {
		return nil
	}

	return md
}

func callEndpoint(ctx context.Context, fn EndpointFunc, args Args, md Metadata) (value any, err error) {
	defer func() {
		if v := recover(); v != nil {
			value, err = nil, panicError(v)
		}
	}()

	return fn(ctx, args, md)
}

func callSocket(ctx context.Context, fn SocketFunc, sock *Socket, args Args, md Metadata) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
	}()

	return fn(ctx, sock, args, md)
}
