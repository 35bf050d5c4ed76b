// Package ports declares the detector-adapter contracts (spec §6.1)
// that NewsCatalystDetector, PreMarketScanner, and BullFlagDetector
// depend on. Concrete adapters (real or mock) live outside this
// package; detectors only ever see these interfaces.
package ports

import (
	"context"
	"time"
)

// NewsItem is one headline returned by a NewsAdapter, newest-first.
type NewsItem struct {
	Headline    string
	PublishedAt time.Time
	Source      string
}

// NewsAdapter fetches recent news items for a symbol.
type NewsAdapter interface {
	Fetch(ctx context.Context, symbol string, sinceUTC time.Time) ([]NewsItem, error)
}

// PreMarketQuote is the live pre-market state of a symbol.
type PreMarketQuote struct {
	ReferencePrice         float64
	CurrentPrice           float64
	CumulativePreMktVolume float64
}

// QuoteAdapter fetches a live pre-market quote.
type QuoteAdapter interface {
	GetPreMarketQuote(ctx context.Context, symbol string) (PreMarketQuote, error)
}

// DailyBar is one daily OHLCV bar.
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// HistoricalAdapter fetches daily bars and the pre-market volume
// baseline used by PreMarketScanner.
type HistoricalAdapter interface {
	GetDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]DailyBar, error)
	// GetPreMarketVolumeBaseline returns the mean pre-market volume over
	// trailingDays trading days, or (0, false) when no baseline is
	// available (caller must treat this as volume_ratio = 1.0).
	GetPreMarketVolumeBaseline(ctx context.Context, symbol string, trailingDays int) (float64, bool, error)
}

// ErrorReporter lets a detector surface a terminal/exhausted per-symbol
// adapter failure to the engine for audit logging (spec §8 scenario 5:
// "log contains one ERROR per failed call"), independent of the
// detector's own structured (zerolog) logging. Nil is a valid,
// no-op value — detectors must guard every call against it.
//
// ctx carries the in-flight scan's identity (see engine.WithScanID) so
// Report can be wired once at composition time, on a long-lived
// Detector, without any per-scan mutable state on the struct itself.
type ErrorReporter func(ctx context.Context, symbol string, err error)
