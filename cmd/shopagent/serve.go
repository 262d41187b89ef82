package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/shopagent/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := a.build(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					a.logger.Warn("shutdown", zap.Error(err))
				}
			}()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			opts := []server.Option{
				server.WithMetricsHandler(promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})),
			}
			if rt.health != nil {
				opts = append(opts, server.WithHealthCheck(rt.health))
			}
			srv := server.New(rt.assistant, a.logger.Named("http"), opts...)
			return srv.ListenAndServe(ctx, addr, a.cfg.Server.ReadHeaderTimeout, a.cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
