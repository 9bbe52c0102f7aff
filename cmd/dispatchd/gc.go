package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/config"
	"dispatch-and-delivery/internal/models"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "force an emergency cache and spatial-index cleanup",
	RunE:  runGC,
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

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
	defer dep.Close(ctx)

	opts := models.DefaultJobOpts()
	opts.Priority = models.PriorityHigh
	id := dep.scheduler.ScheduleOnce(func(ctx context.Context) error {
		dep.adaptive.Clear()
		dep.spatialIdx.Clear()
		return nil
	}, opts)

	dep.scheduler.Tick(ctx)
	fmt.Printf("gc job %s ran: cache and spatial index cleared\n", id)
	return nil
}
