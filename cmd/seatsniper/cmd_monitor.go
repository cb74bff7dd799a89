package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seatsniper/seatsniper/internal/api"
)

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the polling scheduler and alert pipeline",
		Long: `Starts the discovery and listings cycles for the configured cities,
scores listings as they arrive, and dispatches alerts to subscribers.
Serves /metrics and /health while running. Stops cleanly on SIGINT or
SIGTERM.`,
		RunE: runMonitor,
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	server := api.New(rt.cfg.HTTPAddr, rt.adapters, rt.scheduler)
	go server.Start()

	rt.scheduler.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	return nil
}
