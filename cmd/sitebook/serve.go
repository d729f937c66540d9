package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yangwenmai/sitebook/internal/api"
	"github.com/yangwenmai/sitebook/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	srv := api.New(a.store, a.pipeline, a.dispatcher, a.log,
		api.WithCORSOrigin(a.cfg.CORSOrigin),
		api.WithDefaultActor(a.cfg.DefaultActor),
	)
	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	refresher := worker.New(a.store, a.references, a.cfg.ReferenceRefresh, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", httpServer.Addr).Msg("sitebook server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		refresher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
