package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LLIEPJIOK/hermes/internal/demo"
	"github.com/LLIEPJIOK/hermes/pkg/config"
	"github.com/LLIEPJIOK/hermes/pkg/hermes"
	"github.com/LLIEPJIOK/hermes/pkg/jsonrpc"
	"github.com/LLIEPJIOK/hermes/pkg/natsbus"
	"github.com/LLIEPJIOK/hermes/pkg/stream"
	"github.com/LLIEPJIOK/hermes/pkg/ws"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo router on every enabled transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	registry := prometheus.NewRegistry()

	routerCfg := hermes.DefaultRouterConfig()
	routerCfg.Logger = a.logger

	if cfg.Metrics.Enabled {
		routerCfg.Metrics = hermes.NewMetrics(cfg.Metrics.Namespace)
		if err := routerCfg.Metrics.Register(registry); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	mux := hermes.NewMux(hermes.MuxConfig{Logger: a.logger, Metrics: routerCfg.Metrics})
	mux.Handle(cfg.Address, demo.NewRouter(routerCfg))

	g, gctx := errgroup.WithContext(ctx)

	handlers := make(map[string]*http.ServeMux)
	route := func(listen, path string, h http.Handler) {
		if handlers[listen] == nil {
			handlers[listen] = http.NewServeMux()
		}

		handlers[listen].Handle(path, h)
	}

	if cfg.WS.Enabled {
		wsCfg := ws.DefaultServerConfig()
		wsCfg.Logger = a.logger
		route(cfg.WS.Listen, cfg.WS.Path, ws.NewServer(mux, wsCfg))
	}

	if cfg.JSONRPC.Enabled {
		rpcCfg := jsonrpc.DefaultServerConfig()
		rpcCfg.Logger = a.logger

		h, err := jsonrpc.NewServer(mux, rpcCfg)
		if err != nil {
			return fmt.Errorf("jsonrpc server: %w", err)
		}

		route(cfg.JSONRPC.Listen, cfg.JSONRPC.Path, h)
	}

	if cfg.Metrics.Enabled {
		route(cfg.Metrics.Listen, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	for listen, h := range handlers {
		a.runHTTP(g, gctx, listen, h)
	}

	if cfg.Stream.Enabled {
		if err := a.runStream(g, gctx, cfg.Stream, mux); err != nil {
			return err
		}
	}

	if cfg.NATS.Enabled {
		if err := a.runNATS(g, gctx, cfg.NATS, mux); err != nil {
			return err
		}
	}

	a.logger.Info("hermes serving", "address", cfg.Address)

	return g.Wait()
}

func (a *app) runHTTP(g *errgroup.Group, ctx context.Context, listen string, h http.Handler) {
	srv := &http.Server{
		Addr:              listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.logger.Info("http listening", "addr", listen)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http %s: %w", listen, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})
}

func (a *app) runStream(g *errgroup.Group, ctx context.Context, cfg config.StreamConfig, h hermes.Handler) error {
	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("stream listen: %w", err)
	}

	srvCfg := stream.DefaultServerConfig()
	srvCfg.Logger = a.logger

	srv := stream.NewServer(h, srvCfg)

	g.Go(func() error { return srv.Serve(ctx, l) })
	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})

	return nil
}

func (a *app) runNATS(g *errgroup.Group, ctx context.Context, cfg config.NATSConfig, h hermes.Handler) error {
	nc, err := nats.Connect(cfg.URL, nats.Name("hermes"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	srvCfg := natsbus.DefaultServerConfig()
	srvCfg.Prefix = cfg.Prefix
	srvCfg.Queue = cfg.Queue
	srvCfg.Logger = a.logger

	srv, err := natsbus.NewServer(nc, h, srvCfg)
	if err != nil {
		nc.Close()
		return err
	}

	if err := srv.Start(ctx); err != nil {
		nc.Close()
		return err
	}

	g.Go(func() error {
		<-ctx.Done()

		if err := srv.Stop(); err != nil {
			a.logger.Warn("failed to unsubscribe", "error", err)
		}

		return nc.Drain()
	})

	return nil
}
