package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/momentumcore/internal/audit"
	"github.com/sawpanic/momentumcore/internal/clock"
	"github.com/sawpanic/momentumcore/internal/httpapi"
	"github.com/sawpanic/momentumcore/internal/obs/metrics"
)

func runServe(cmd *cobra.Command, args []string, configPath string) error {
	cfg := loadConfig(configPath)
	setupLogger(cfg.LogLevel)

	clk := clock.NewSystemClock()
	auditLog, err := audit.Open(cfg.LogRoot, clk)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	broadcaster := httpapi.NewBroadcaster(log.Logger)
	eng := buildEngine(cfg, auditLog, clk, broadcaster)

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	eng.WithMetrics(reg)

	serverCfg := cfg.HTTPServerConfig()
	server := httpapi.NewServer(serverCfg, eng, broadcaster, log.Logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", reg.Handler())
	metricsAddr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port+1)
	go func() {
		log.Info().Str("addr", metricsAddr).Msg("metrics server listening")
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	log.Info().Str("host", serverCfg.Host).Int("port", serverCfg.Port).Msg("momentumcore HTTP server listening")
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info().Msg("server shutdown complete")
	return nil
}
