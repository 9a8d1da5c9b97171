package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "stock-scanner/internal/errors"
	"stock-scanner/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP server",
		Long: `Start the HTTP server exposing the streaming analysis API.

The server speaks newline-delimited JSON on analysis and conversation
endpoints and keeps history in the local SQLite database. It shuts down
gracefully on SIGINT and SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return apperrors.Wrap(apperrors.ErrStoreClosed, "store unavailable, cannot serve")
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr != "" {
				app.Config.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(app.Config, app.Store, app.Logger)
			app.Logger.Info().Str("addr", app.Config.Server.Addr).Msg("Starting server")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")
	return cmd
}
