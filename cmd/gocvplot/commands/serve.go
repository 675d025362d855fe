package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kacperjurak/gocvcore/pkg/server"
)

const shutdownTimeout = 15 * time.Second

func (c *CLI) newServeCmd() *cobra.Command {
	var (
		port    string
		profile bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("profile") {
				a.cfg.Server.EnableProfiling = profile
			}

			srv := server.New(server.Options{
				Config:    a.cfg,
				Processor: a.processor,
				Logger:    a.logger,
			})

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				a.logger.Info("received shutdown signal", slog.Any("cause", context.Cause(cmd.Context())))
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "8080", "Listen port")
	cmd.Flags().BoolVar(&profile, "profile", false, "Start the pprof server on the profiling port")
	return cmd
}
