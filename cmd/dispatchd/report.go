package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dispatch-and-delivery/internal/config"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "print the current performance/spatial/resource/threat snapshot and exit",
	RunE:  runReport,
}

type reportSnapshot struct {
	Performance any `json:"performance"`
	Spatial     any `json:"spatial"`
	Resources   any `json:"resources"`
	Breakers    any `json:"breakers"`
	Jobs        any `json:"jobs"`
	Suspended   any `json:"suspended"`
}

func runReport(cmd *cobra.Command, args []string) error {
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

	snapshot := reportSnapshot{
		Performance: dep.metrics.Report(),
		Spatial:     dep.spatialIdx.Stats(),
		Resources:   dep.admission.Snapshot(),
		Breakers:    dep.breaker.Snapshot(),
		Jobs:        dep.scheduler.Snapshot(),
		Suspended:   dep.threatM.SuspendedSubjects(),
	}

	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
