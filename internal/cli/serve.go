package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/chitchat/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API",
		Long: `Serve conversations, the change-event stream and Prometheus metrics
over HTTP until interrupted.

Endpoints:
  GET /healthz
  GET /metrics
  GET /v1/conversations/{a}/{b}
  GET /v1/conversations/{a}/{b}/messages
  GET /v1/conversations/{a}/{b}/messages/{index}
  GET /v1/events?conversation=&after=&limit=`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			addr := s.cfg.Serve.Listen
			if opts.Listen != "" {
				addr = opts.Listen
			}

			slog.Info("serving", "database", s.cfg.Database, "addr", addr)
			if err := httpapi.New(s.ledger).ListenAndServe(cmd.Context(), addr); err != nil {
				return WrapExitError(ExitCommandError, "serve failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")

	return cmd
}
