package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/momentumcore/internal/config"
	obslog "github.com/sawpanic/momentumcore/internal/obs/log"
)

const version = "v0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "momentumcore",
		Short:   "Momentum & catalyst detection engine for US equities",
		Version: version,
		Long: `momentumcore scans a universe of US equity symbols for three
independent signal types — news catalysts, pre-market movers, and bull
flag continuation patterns — and ranks the results into one composite
score per symbol.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults layered under it)")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan over a symbol universe and print the ranked signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, configPath)
		},
	}
	scanCmd.Flags().StringSlice("symbols", nil, "Comma-separated symbol universe (required)")
	scanCmd.Flags().StringSlice("types", nil, "Comma-separated detector types to run (CATALYST,PREMARKET,BULL_FLAG); empty means all enabled")
	scanCmd.Flags().Int("deadline-ms", 0, "Overall scan deadline in milliseconds; 0 means no deadline")
	scanCmd.Flags().String("format", "json", "Output format: json or table")
	rootCmd.AddCommand(scanCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query surface (GET /scan, /signals, /scan/stream)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args, configPath)
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	log.Logger = obslog.New(obslog.ParseLevel(level))
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to load configuration")
	}
	return cfg
}
