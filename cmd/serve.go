package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mlconsole/cmd/config"
	"github.com/mattsolo1/grove-mlconsole/internal/api"
)

func NewServeCmd(rt *config.Runtime) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the console HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := rt.Service(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = rt.Config.Server.Addr
			}

			server := api.NewServer(svc, rt.Logger.WithField("component", "api"), rt.User())
			errCh := make(chan error, 1)
			go func() {
				rt.Logger.WithField("addr", addr).Info("serving api")
				errCh <- server.Start(addr)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}
