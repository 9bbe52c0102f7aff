package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dispatchd",
	Short: "dispatchd runs the on-demand delivery dispatch core",
	Long: `dispatchd wires the dispatch orchestrator, its circuit breaker,
adaptive cache, spatial index, resource admission control, threat
meter, and system job scheduler into a single process, and serves the
read-only operator status API alongside them.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing .env (falls back to environment variables)")
	rootCmd.AddCommand(serveCmd, reportCmd, gcCmd)
}
