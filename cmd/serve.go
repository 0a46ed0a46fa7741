package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/trello-citydash/api"
	"github.com/chxlky/trello-citydash/internal/auth"
	"github.com/chxlky/trello-citydash/internal/job"
	"github.com/chxlky/trello-citydash/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and keep the snapshot warm",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "HTTP port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Auth.Validate(); err != nil {
		return err
	}
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New(logger)
	p, err := newPipeline(cmd.Context(), cfg, m, logger)
	if err != nil {
		return err
	}

	revalidator, err := job.NewRevalidator(cfg.Dashboard.Revalidate, cfg.Dashboard.FetchTimeout, p.revalidate, logger.Named("job"))
	if err != nil {
		p.Close()
		return err
	}

	sessions := auth.NewManager(cfg.Auth.User, cfg.Auth.Pass, cfg.Auth.Secret, cfg.Auth.SessionTTL, cfg.Server.Mode == "release")
	apiHandler := &api.Handler{
		Snapshots: p.loader,
		Sessions:  sessions,
		Logger:    logger.Named("api"),
	}
	router := api.NewRouter(apiHandler, m, prometheus.DefaultGatherer, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("boardID", cfg.Trello.BoardID))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	revalidator.Start()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var once sync.Once
	cleanup := func(reason string) {
		once.Do(func() {
			zap.L().Info("Shutdown initiated", zap.String("reason", reason))

			revalidator.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			zap.L().Info("Shutting down HTTP server...")
			if err := srv.Shutdown(ctx); err != nil {
				zap.L().Error("Error shutting down server", zap.Error(err))
			} else {
				zap.L().Info("HTTP server shut down gracefully.")
			}

			if err := p.Close(); err != nil {
				zap.L().Error("Error closing stores", zap.Error(err))
			}
		})
	}

	select {
	case err := <-serverErr:
		cleanup("server error")
		return err
	case sig := <-sigCh:
		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
		cleanup(sig.String())
	}

	zap.L().Info("Exiting...")
	return nil
}
