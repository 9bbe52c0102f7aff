package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/config"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the dispatch core and operator status API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	dep, err := newDeployment(ctx, cfg, log)
	if err != nil {
		return err
	}

	schedCtx, cancelSched := context.WithCancel(ctx)
	go dep.scheduler.Run(schedCtx)

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		log.Infow("statusapi listening", "addr", addr)
		if err := dep.status.Echo().Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Errorw("statusapi server failed", "error", err)
		}
	}

	cancelSched()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := dep.status.Echo().Shutdown(shutdownCtx); err != nil {
		log.Errorw("statusapi shutdown failed", "error", err)
	}
	dep.Close(shutdownCtx)

	return nil
}
