package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"repo_onboarder/internal/service/queue"
	"repo_onboarder/pkg/allowlist"
	"repo_onboarder/pkg/profile"
	"repo_onboarder/pkg/server"
)

func newServeCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with background analysis workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			logger, err := app.logging()
			if err != nil {
				return err
			}
			st, err := app.openStore()
			if err != nil {
				return err
			}
			engine, err := app.buildEngine()
			if err != nil {
				return err
			}

			al, err := allowlist.New(cfg.IPAllowlist)
			if err != nil {
				return err
			}

			handler := func(ctx context.Context, job queue.Job) error {
				switch job.Kind {
				case queue.KindAnalyze:
					return engine.AnalyzeRepository(ctx, job.ProjectID)
				case queue.KindDocument:
					_, err := engine.GenerateDocument(ctx, job.ProjectID, profile.DocType(job.DocType), job.Title)
					return err
				default:
					logger.Warn("unknown job kind", "kind", job.Kind)
					return nil
				}
			}

			q := queue.New(cfg.MaxWorkers, handler)
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			q.Start(ctx, cfg.MaxWorkers)

			srv := server.New(engine, st, q, al, logger)
			httpServer := &http.Server{
				Addr:    cfg.ListenAddr,
				Handler: srv.Handler(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.ListenAddr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				cancel()
				q.Stop()
				return err
			case <-sigCh:
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = httpServer.Shutdown(shutdownCtx)
			cancel()
			q.Stop()
			return nil
		},
	}
}
