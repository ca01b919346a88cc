// Package jsonrpc carries hermes endpoint calls as JSON-RPC 2.0 over HTTP.
// The request envelope travels as the params of the "Hermes.Call" method and
// the response envelope as its result. Socket sessions need a duplex channel
// and are not offered here.
package jsonrpc

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

const (
	ServiceName = "Hermes"
	CallMethod  = ServiceName + ".Call"

	transportName = "jsonrpc"
)

type ServerConfig struct {
	Logger *slog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{Logger: slog.Default()}
}

// Service is the JSON-RPC receiver registered under ServiceName.
type Service struct {
	handler hermes.Handler
	logger  *slog.Logger
}

// Call answers every request with a response envelope. Protocol failures are
// flagged on the envelope rather than returned as JSON-RPC errors.
func (s *Service) Call(r *http.Request, req *hermes.Request, resp *hermes.Response) error {
	md := hermes.Metadata{
		hermes.MetaTransport:  transportName,
		hermes.MetaRemoteAddr: r.RemoteAddr,
		hermes.MetaOrigin:     r.Header.Get("Origin"),
	}

	out, err := s.handler.HandleEndpoint(r.Context(), *req, md)
	if err != nil {
		s.logger.Debug("rejected request", "request_id", req.RequestID, "error", err)
		out = hermes.ToProtocolErrorResponse(*req, err)
	}

	*resp = out

	return nil
}

// NewServer returns an http.Handler serving h through the json2 codec.
func NewServer(h hermes.Handler, cfg ServerConfig) (http.Handler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")

	if err := server.RegisterService(&Service{handler: h, logger: cfg.Logger}, ServiceName); err != nil {
		return nil, err
	}

	return server, nil
}
