// Package premarket implements PreMarketScanner (spec §4.6): gated by
// the pre-market wall-clock window, it compares live pre-market quotes
// against a trailing 10-day volume baseline and emits PREMARKET_MOVER
// signals for qualifying symbols.
package premarket

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/cache"
	"github.com/sawpanic/momentumcore/internal/clock"
	"github.com/sawpanic/momentumcore/internal/concurrency"
	"github.com/sawpanic/momentumcore/internal/ports"
	"github.com/sawpanic/momentumcore/internal/resilience"
	"github.com/sawpanic/momentumcore/internal/signal"
)

// baselineCacheTTL bounds how long a cached baseline survives before
// a fresh 10-day mean is recomputed from the historical adapter.
const baselineCacheTTL = 6 * time.Hour

// Config parameterizes Detector (spec §6.4).
type Config struct {
	MinChangePct   float64 // PREMARKET_MIN_CHANGE_PCT, default 5.0
	MinVolumeRatio float64 // VOLUME_RATIO_MIN, default 2.0
	BaselineDays   int     // trailing_days, default 10
	MaxConcurrency int     // default 8
}

func DefaultConfig() Config {
	return Config{MinChangePct: 5.0, MinVolumeRatio: 2.0, BaselineDays: 10, MaxConcurrency: 8}
}

// Detector is PreMarketScanner.
type Detector struct {
	Quotes     ports.QuoteAdapter
	Historical ports.HistoricalAdapter
	Clock      clock.Clock
	Calendar   clock.MarketCalendar
	Retry      *resilience.Envelope
	Config     Config
	Logger     zerolog.Logger
	// Report, if set, is notified of a terminal/exhausted fetch failure
	// per symbol so the engine can record it in the audit log.
	Report ports.ErrorReporter
	// Cache, if set, memoizes each symbol's baseline volume so repeat
	// scans of the same universe within a trading day skip the
	// historical adapter call entirely on a hit.
	Cache cache.BaselineVolumeCache
}

// Strength computes spec §4.6 step 5:
// min(100, 10*|price_change_pct| + 10*log2(max(1, volume_ratio))), clamped to [0,100].
func Strength(priceChangePct, volumeRatio float64) float64 {
	score := 10*math.Abs(priceChangePct) + 10*math.Log2(math.Max(1, volumeRatio))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Scan implements spec §4.6's algorithm. The window check always runs
// before any network call (failure semantics); when the window is
// closed it returns an empty list, no adapter calls made.
func (d *Detector) Scan(ctx context.Context, symbols []string) []signal.Signal {
	now := d.Clock.NowUTC()
	cal := d.Calendar
	if cal == nil {
		cal = clock.WeekdayCalendar{}
	}
	if !clock.IsPreMarket(now, cal) {
		d.Logger.Info().Msg("premarket scanner skipped: outside pre-market window")
		return nil
	}
	if d.Quotes == nil || d.Historical == nil {
		d.Logger.Info().Msg("premarket scanner disabled: no quote/historical adapter configured")
		return nil
	}

	limit := d.Config.MaxConcurrency
	if limit <= 0 {
		limit = DefaultConfig().MaxConcurrency
	}

	results := make([]*signal.Signal, len(symbols))
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
			results[i] = d.scanSymbol(ctx, sym, now)
		}()
	}
	wg.Wait()

	var out []signal.Signal
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (d *Detector) scanSymbol(ctx context.Context, symbol string, now time.Time) *signal.Signal {
	var quote ports.PreMarketQuote
	err := d.Retry.Do(ctx, "quotes:"+symbol, func(callCtx context.Context) error {
		q, fetchErr := d.Quotes.GetPreMarketQuote(callCtx, symbol)
		if fetchErr != nil {
			return fetchErr
		}
		quote = q
		return nil
	})
	if err != nil {
		d.Logger.Warn().Str("symbol", symbol).Err(err).Msg("premarket quote fetch failed, skipping symbol")
		if d.Report != nil {
			d.Report(ctx, symbol, err)
		}
		return nil
	}

	baselineDays := d.Config.BaselineDays
	if baselineDays <= 0 {
		baselineDays = DefaultConfig().BaselineDays
	}

	volumeRatio := 1.0
	var baseline float64
	var hasBaseline bool

	if d.Cache != nil {
		if cached, ok, cacheErr := d.Cache.Get(ctx, symbol); cacheErr == nil && ok {
			baseline, hasBaseline = cached, true
		} else if cacheErr != nil {
			d.Logger.Warn().Str("symbol", symbol).Err(cacheErr).Msg("baseline cache read failed, falling back to adapter")
		}
	}

	if !hasBaseline {
		err = d.Retry.Do(ctx, "baseline:"+symbol, func(callCtx context.Context) error {
			b, ok, fetchErr := d.Historical.GetPreMarketVolumeBaseline(callCtx, symbol, baselineDays)
			if fetchErr != nil {
				return fetchErr
			}
			baseline, hasBaseline = b, ok
			return nil
		})
		if err != nil {
			d.Logger.Warn().Str("symbol", symbol).Err(err).Msg("premarket baseline fetch failed, using volume_ratio=1.0")
		} else if hasBaseline && d.Cache != nil {
			if setErr := d.Cache.Set(ctx, symbol, baseline, baselineCacheTTL); setErr != nil {
				d.Logger.Warn().Str("symbol", symbol).Err(setErr).Msg("baseline cache write failed")
			}
		}
	}

	if hasBaseline && baseline > 0 {
		volumeRatio = quote.CumulativePreMktVolume / baseline
	}

	if quote.ReferencePrice <= 0 {
		d.Logger.Warn().Str("symbol", symbol).Msg("non-positive reference price, skipping symbol")
		return nil
	}
	priceChangePct := (quote.CurrentPrice - quote.ReferencePrice) / quote.ReferencePrice * 100

	minChange := d.Config.MinChangePct
	if minChange == 0 {
		minChange = DefaultConfig().MinChangePct
	}
	minRatio := d.Config.MinVolumeRatio
	if minRatio == 0 {
		minRatio = DefaultConfig().MinVolumeRatio
	}
	if math.Abs(priceChangePct) < minChange || volumeRatio < minRatio {
		return nil
	}

	strength := Strength(priceChangePct, volumeRatio)
	sig, mkErr := signal.MakePreMarket(uuid.NewString(), symbol, strength, now, signal.PreMarketMover{
		PriceChangePct: priceChangePct,
		VolumeRatio:    volumeRatio,
		ReferencePrice: quote.ReferencePrice,
		CurrentPrice:   quote.CurrentPrice,
		BaselineVolume: baseline,
	}, true)
	if mkErr != nil {
		d.Logger.Warn().Str("symbol", symbol).Err(mkErr).Msg("dropping invalid premarket signal")
		return nil
	}
	return &sig
}
