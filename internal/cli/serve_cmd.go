package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the planner HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			rt, err := app.build(cmd, needs{llm: true, store: true})
			if err != nil {
				return err
			}
			defer rt.close()
			rt.log.Info("configuration loaded", rt.cfg.LogFields()...)

			srv, err := api.NewServer(rt.cfg.Server, rt.pipeline, rt.delivery,
				api.WithLogger(rt.log),
				api.WithMetrics(rt.metrics, rt.registry),
				api.WithHealth(rt.store, string(rt.store.Backend), rt.client),
				api.WithVersion(app.Version),
			)
			if err != nil {
				return err
			}
			return serve(ctx, srv, rt.cfg.Server.ShutdownTimeout(), rt.log)
		},
	}
}

// server is the part of api.Server that serve drives.
type server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is done or the listener fails, then drains
// in-flight requests for at most grace.
func serve(ctx context.Context, srv server, grace time.Duration, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
