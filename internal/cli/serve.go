package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/meditalk/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Endpoints:
  POST /api/chat   multipart form: prompt, image (optional), history (optional JSON)
  GET  /healthz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService()
			if err != nil {
				return err
			}
			journal, closeJournal := a.openJournal("serve")
			defer closeJournal()

			if addr == "" {
				addr = a.cfg.Addr
			}
			srv := server.New(svc, server.Options{
				Addr:           addr,
				MaxUploadBytes: a.cfg.MaxUploadBytes,
				Journal:        journal,
				Logger:         a.logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info().
				Str("backend", a.cfg.Backend).
				Int64("journal_root", journal.Root()).
				Msg("meditalk serving")
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from MEDITALK_ADDR)")
	return cmd
}
