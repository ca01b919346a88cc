package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

func newEchoCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "echo <message> [message...]",
		Short: "Open a socket session, send messages and print the replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer t.close()

			if t.socket == nil {
				return fmt.Errorf("transport %q does not support sockets", a.cfg.Client.Transport)
			}

			sock, err := hermes.NewSocketClient(t.socket).Get(splitPath(path)...).Open(ctx)
			if err != nil {
				return err
			}
			defer sock.Close(ctx)

			for _, msg := range args {
				if err := sock.SendJSON(ctx, msg); err != nil {
					return err
				}

				reply, err := sock.Receive(ctx)
				if errors.Is(err, hermes.ErrSocketClosed) {
					return errors.New("server closed the socket")
				}

				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(reply))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "echo", "socket path, dot separated")

	return cmd
}
