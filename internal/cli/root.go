// Package cli implements the hermes command.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/hermes/pkg/config"
)

// app is the state shared by subcommands, filled in by PersistentPreRunE.
type app struct {
	cfgFile   string
	address   string
	logLevel  string
	transport string
	url       string

	cfg    *config.Config
	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hermes",
		Short: "Transport-agnostic endpoint calls and socket sessions",
		Long: `hermes serves a tree of endpoints and sockets over WebSocket,
JSON-RPC, framed TCP streams and NATS, and calls them from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	flags.StringVar(&a.address, "address", "", "router address")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.transport, "transport", "", "client transport: ws, jsonrpc, stream, nats")
	flags.StringVar(&a.url, "url", "", "client target URL or host:port")

	root.AddCommand(
		newServeCmd(a),
		newCallCmd(a),
		newEchoCmd(a),
		newDemoCmd(a),
	)

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.address != "" {
		cfg.Address = a.address
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	if a.transport != "" {
		cfg.Client.Transport = a.transport
	}

	if a.url != "" {
		cfg.Client.URL = a.url
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.cfg = cfg
	a.logger = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)

	return nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
