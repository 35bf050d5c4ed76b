package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/momentumcore/internal/adapters/mock"
	"github.com/sawpanic/momentumcore/internal/audit"
	"github.com/sawpanic/momentumcore/internal/cache"
	"github.com/sawpanic/momentumcore/internal/clock"
	"github.com/sawpanic/momentumcore/internal/config"
	"github.com/sawpanic/momentumcore/internal/detect/bullflag"
	"github.com/sawpanic/momentumcore/internal/detect/catalyst"
	"github.com/sawpanic/momentumcore/internal/detect/premarket"
	"github.com/sawpanic/momentumcore/internal/engine"
	"github.com/sawpanic/momentumcore/internal/rank"
	"github.com/sawpanic/momentumcore/internal/resilience"
	"github.com/sawpanic/momentumcore/ui"
)

// buildEngine wires the three detectors onto one set of in-memory
// adapters (spec.md §6.1 names only the ports, not a concrete US
// equities news/quote/bars provider, so the demo composition here
// uses the deterministic doubles from internal/adapters/mock — the
// same doubles internal/detect's own tests run against). A production
// deployment swaps in adapters of its own against the same ports
// without touching engine/rank/audit wiring.
func buildEngine(cfg config.Config, auditLog *audit.Log, clk clock.Clock, broadcaster engine.Broadcaster) *engine.Engine {
	retry := resilience.New(cfg.ResilienceConfig())

	var baselineCache cache.BaselineVolumeCache
	if cfg.RedisAddr != "" {
		baselineCache = newRedisCache(cfg.RedisAddr)
	}

	catalystDet := &catalyst.Detector{
		Adapter: mock.NewNewsAdapter(),
		Clock:   clk,
		Retry:   retry,
		Config:  cfg.CatalystConfig(),
		Logger:  log.Logger,
	}

	premarketDet := &premarket.Detector{
		Quotes:     mock.NewQuoteAdapter(),
		Historical: mock.NewHistoricalAdapter(),
		Clock:      clk,
		Calendar:   clock.WeekdayCalendar{},
		Retry:      retry,
		Config:     cfg.PremarketConfig(),
		Logger:     log.Logger,
		Cache:      baselineCache,
	}

	bullFlagDet := &bullflag.Detector{
		Historical: mock.NewHistoricalAdapter(),
		Clock:      clk,
		Retry:      retry,
		Config:     cfg.BullFlagConfig(),
		Logger:     log.Logger,
	}

	ranker := rank.New(rank.Config{Weights: cfg.RankWeights()})

	eng := engine.New(engine.Config{
		Catalyst:  catalystDet,
		Premarket: premarketDet,
		BullFlag:  bullFlagDet,
	}, ranker, auditLog, clk, log.Logger)

	if broadcaster != nil {
		eng.WithBroadcaster(broadcaster)
	}
	return eng
}

func runScan(cmd *cobra.Command, args []string, configPath string) error {
	cfg := loadConfig(configPath)
	setupLogger(cfg.LogLevel)

	symbols, err := cmd.Flags().GetStringSlice("symbols")
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return fmt.Errorf("--symbols is required")
	}
	typeNames, _ := cmd.Flags().GetStringSlice("types")
	deadlineMs, _ := cmd.Flags().GetInt("deadline-ms")
	format, _ := cmd.Flags().GetString("format")

	clk := clock.NewSystemClock()
	auditLog, err := audit.Open(cfg.LogRoot, clk)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	eng := buildEngine(cfg, auditLog, clk, nil)

	opts := engine.Options{}
	for _, t := range typeNames {
		opts.ScanTypes = append(opts.ScanTypes, engine.ScanType(t))
	}
	if deadlineMs > 0 {
		opts.Deadline = time.Duration(deadlineMs) * time.Millisecond
	}

	ctx := context.Background()
	signals, err := eng.Scan(ctx, symbols, opts)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if format == "table" {
		ui.PrintHeader(os.Stdout, string(eng.State()), len(signals))
		ui.PrintTable(os.Stdout, signals)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(signals)
}
