// Package catalyst implements NewsCatalystDetector (spec §4.5):
// concurrent per-symbol news fetches classified into a CatalystType by
// deterministic, ordered, first-match-wins keyword priority, emitted
// as CATALYST signals.
package catalyst

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/clock"
	"github.com/sawpanic/momentumcore/internal/concurrency"
	"github.com/sawpanic/momentumcore/internal/ports"
	"github.com/sawpanic/momentumcore/internal/resilience"
	"github.com/sawpanic/momentumcore/internal/signal"
)

// keywordRule is one entry in the fixed classification priority order.
type keywordRule struct {
	catalystType signal.CatalystType
	keywords     []string
}

// classificationOrder is deterministic: EARNINGS -> FDA -> MERGER ->
// PRODUCT -> ANALYST -> OTHER, first match wins (spec §4.5 step 3).
var classificationOrder = []keywordRule{
	{signal.CatalystEarnings, []string{"earnings", "eps", "revenue"}},
	{signal.CatalystFDA, []string{"fda", "approval", "clearance"}},
	{signal.CatalystMerger, []string{"merger", "acquisition", "buyout"}},
	{signal.CatalystProduct, []string{"launch", "unveil", "release"}},
	{signal.CatalystAnalyst, []string{"upgrade", "downgrade", "initiated", "price target"}},
}

// Classify returns the CatalystType for a headline using the fixed
// case-insensitive keyword priority order, defaulting to OTHER.
func Classify(headline string) signal.CatalystType {
	lower := strings.ToLower(headline)
	for _, rule := range classificationOrder {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.catalystType
			}
		}
	}
	return signal.CatalystOther
}

// Strength computes the per-item strength formula from spec §4.5 step
// 4: base 50, +20 for EARNINGS/FDA/MERGER, +10 if published within 6h
// of detection, clamped to [0,100].
func Strength(catalystType signal.CatalystType, detectedAt, publishedAt time.Time) float64 {
	score := 50.0
	switch catalystType {
	case signal.CatalystEarnings, signal.CatalystFDA, signal.CatalystMerger:
		score += 20
	}
	if detectedAt.Sub(publishedAt) <= 6*time.Hour {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Config parameterizes Detector.
type Config struct {
	MaxConcurrency int // default 8, spec §6.4 MAX_CONCURRENCY_PER_ADAPTER
}

func DefaultConfig() Config { return Config{MaxConcurrency: 8} }

// Detector is NewsCatalystDetector. A nil Adapter means news is
// disabled (missing NEWS_API_KEY per spec §6.4) — Scan then returns an
// empty list without attempting any network call.
type Detector struct {
	Adapter ports.NewsAdapter
	Clock   clock.Clock
	Retry   *resilience.Envelope
	Config  Config
	Logger  zerolog.Logger
	// Report, if set, is notified of a terminal/exhausted fetch failure
	// per symbol so the engine can record it in the audit log.
	Report ports.ErrorReporter
}

// Scan fetches and classifies news for each symbol, with per-symbol
// concurrency bounded by Config.MaxConcurrency (spec §5). A detector
// error for one symbol never aborts the others; the whole detector
// never errors to the caller (spec §4.5 failure semantics).
func (d *Detector) Scan(ctx context.Context, symbols []string) []signal.Signal {
	if d.Adapter == nil {
		d.Logger.Info().Msg("catalyst detector disabled: no news adapter configured")
		return nil
	}

	limit := d.Config.MaxConcurrency
	if limit <= 0 {
		limit = DefaultConfig().MaxConcurrency
	}

	results := make([][]signal.Signal, len(symbols))
	var wg sync.WaitGroup
	sem := concurrency.NewSemaphore(limit)

	for i, sym := range symbols {
		i, sym := i, sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				return
			}
			defer sem.Release()
			results[i] = d.scanSymbol(ctx, sym)
		}()
	}
	wg.Wait()

	var out []signal.Signal
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (d *Detector) scanSymbol(ctx context.Context, symbol string) []signal.Signal {
	now := d.Clock.NowUTC()
	since := now.Add(-24 * time.Hour)

	var items []ports.NewsItem
	err := d.Retry.Do(ctx, "news:"+symbol, func(callCtx context.Context) error {
		fetched, fetchErr := d.Adapter.Fetch(callCtx, symbol, since)
		if fetchErr != nil {
			return fetchErr
		}
		items = fetched
		return nil
	})
	if err != nil {
		d.Logger.Warn().Str("symbol", symbol).Err(err).Msg("catalyst fetch failed, treating as empty")
		if d.Report != nil {
			d.Report(ctx, symbol, err)
		}
		return nil
	}

	var out []signal.Signal
	for _, item := range items {
		if item.PublishedAt.After(now) {
			continue
		}
		if now.Sub(item.PublishedAt) > 24*time.Hour {
			continue
		}
		catalystType := Classify(item.Headline)
		strength := Strength(catalystType, now, item.PublishedAt)

		sig, mkErr := signal.MakeCatalyst(uuid.NewString(), symbol, strength, now, signal.CatalystEvent{
			CatalystType: catalystType,
			Headline:     item.Headline,
			PublishedAt:  item.PublishedAt,
			Source:       item.Source,
		})
		if mkErr != nil {
			d.Logger.Warn().Str("symbol", symbol).Err(mkErr).Msg("dropping invalid catalyst item")
			continue
		}
		out = append(out, sig)
	}
	return out
}
