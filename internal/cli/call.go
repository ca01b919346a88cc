package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

func newCallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call <path> [args...]",
		Short: "Call a remote endpoint",
		Long: `Call the endpoint at a dot separated path. Each argument is parsed as
JSON; arguments that are not valid JSON are sent as strings.`,
		Example: `  hermes call math.mul 6 7
  hermes call echo '{"hello":"world"}' --transport jsonrpc --url http://127.0.0.1:8080/rpc`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer t.close()

			value, err := hermes.NewEndpointClient(t.endpoint).
				Get(splitPath(args[0])...).
				Call(ctx, parseArgs(args[1:])...)
			if err != nil {
				return err
			}

			if len(value) == 0 {
				value = json.RawMessage("null")
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(value))

			return nil
		},
	}
}

func splitPath(s string) []string {
	if s == "" || s == "." {
		return nil
	}

	return strings.Split(s, ".")
}

func parseArgs(raw []string) []any {
	out := make([]any, 0, len(raw))

	for _, s := range raw {
		if json.Valid([]byte(s)) {
			out = append(out, json.RawMessage(s))
			continue
		}

		out = append(out, s)
	}

	return out
}
