package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leelynne/gbusiness-httpsig/internal/logger"
	"github.com/leelynne/gbusiness-httpsig/internal/server"
	"github.com/leelynne/gbusiness-httpsig/satispay"
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API (/api/authenticate, /api/invoke, /api/session, /metrics)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			handler := server.NewRouter(server.Deps{
				Session:   a.sess,
				Activator: satispay.NewActivator(a.sess, a.transport, a.opts),
				Client:    satispay.NewClient(a.sess, a.transport, a.opts),
				Logger:    a.log.With(logger.Component("http")),
				Metrics:   promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			})
			srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: handler}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, a, srv)
		},
	}
}

// runServer serves until ctx is done, then shuts srv down within the configured timeout.
func runServer(ctx context.Context, a *app, srv *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening", zap.String("addr", srv.Addr), zap.String("state", a.sess.Current().State.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
		defer cancel()
		a.log.Info("shutting down", zap.String("addr", srv.Addr))
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
