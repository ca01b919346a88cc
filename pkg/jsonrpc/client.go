package jsonrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

type ClientConfig struct {
	URL            string
	Address        string
	RequestTimeout time.Duration
	Header         http.Header
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:            url,
		Address:        "default",
		RequestTimeout: 30 * time.Second,
		Logger:         slog.Default(),
	}
}

// CleanlyCloseBody drains and closes an HTTP response body so the connection
// can be reused.
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}

	_, _ = io.Copy(io.Discard, body)

	return body.Close()
}

func NewEndpointTransport(cfg ClientConfig) hermes.EndpointTransport {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Address == "" {
		cfg.Address = "default"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return func(ctx context.Context, req hermes.Request) (hermes.Response, error) {
		req.Address = cfg.Address

		body, err := json2.EncodeClientRequest(CallMethod, &req)
		if err != nil {
			return hermes.Response{}, fmt.Errorf("failed to encode client params: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return hermes.Response{}, fmt.Errorf("failed to create request: %w", err)
		}

		for key, values := range cfg.Header {
			for _, v := range values {
				httpReq.Header.Add(key, v)
			}
		}

		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := client.Do(httpReq)
		if err != nil {
			return hermes.Response{}, fmt.Errorf("failed to issue request: %w", err)
		}
		defer CleanlyCloseBody(httpResp.Body)

		var resp hermes.Response

		err = json2.DecodeClientResponse(httpResp.Body, &resp)

		var rpcErr *json2.Error
		switch {
		case errors.As(err, &rpcErr):
			cfg.Logger.Debug("json-rpc error", "code", rpcErr.Code, "message", rpcErr.Message)
			return hermes.Response{}, &hermes.ProtocolError{Msg: rpcErr.Message, Err: rpcErr}

		case err != nil && (httpResp.StatusCode < 200 || httpResp.StatusCode > 299):
			return hermes.Response{}, fmt.Errorf("received status code: %d", httpResp.StatusCode)

		case err != nil:
			return hermes.Response{}, fmt.Errorf("failed to decode client response: %w", err)
		}

		return resp, nil
	}
}
