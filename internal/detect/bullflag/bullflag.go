// Package bullflag implements BullFlagDetector (spec §4.7): a
// deterministic pole/flag pattern recognizer over trailing daily OHLCV
// bars, with a projected breakout target and strength formula.
package bullflag

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/clock"
	"github.com/sawpanic/momentumcore/internal/concurrency"
	"github.com/sawpanic/momentumcore/internal/ports"
	"github.com/sawpanic/momentumcore/internal/resilience"
	"github.com/sawpanic/momentumcore/internal/signal"
)

// Config parameterizes Detector (spec §6.4).
type Config struct {
	PoleMinGainPct float64 // POLE_MIN_GAIN_PCT, default 8.0
	FlagRangeMin   float64 // FLAG_RANGE_MIN_PCT, default 3.0
	FlagRangeMax   float64 // FLAG_RANGE_MAX_PCT, default 5.0
	LookbackDays   int     // default 100
	MaxConcurrency int     // default 8
}

func DefaultConfig() Config {
	return Config{PoleMinGainPct: 8.0, FlagRangeMin: 3.0, FlagRangeMax: 5.0, LookbackDays: 100, MaxConcurrency: 8}
}

var poleWidths = []int{1, 2, 3}
var flagWidths = []int{2, 3, 4, 5}

// Detector is BullFlagDetector.
type Detector struct {
	Historical ports.HistoricalAdapter
	Clock      clock.Clock
	Retry      *resilience.Envelope
	Config     Config
	Logger     zerolog.Logger
	// Report, if set, is notified of a terminal/exhausted fetch failure
	// per symbol so the engine can record it in the audit log.
	Report ports.ErrorReporter
}

// pole is one accepted pole candidate ending at index EndIdx
// (inclusive, into the bars slice).
type pole struct {
	EndIdx  int
	Width   int
	Low     float64
	High    float64
	GainPct float64
}

// flag is the accepted flag candidate immediately following a pole.
type flag struct {
	Width     int
	High      float64
	Low       float64
	RangePct  float64
	SlopePct  float64
}

// Scan implements spec §4.7's pipeline: fetch bars, detect pole+flag
// per symbol (bounded concurrency), emit BULL_FLAG signals for valid
// patterns only.
func (d *Detector) Scan(ctx context.Context, symbols []string) []signal.Signal {
	if d.Historical == nil {
		d.Logger.Info().Msg("bullflag detector disabled: no historical adapter configured")
		return nil
	}

	limit := d.Config.MaxConcurrency
	if limit <= 0 {
		limit = DefaultConfig().MaxConcurrency
	}
	lookback := d.Config.LookbackDays
	if lookback <= 0 {
		lookback = DefaultConfig().LookbackDays
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
			results[i] = d.scanSymbol(ctx, sym, lookback)
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

func (d *Detector) scanSymbol(ctx context.Context, symbol string, lookback int) *signal.Signal {
	var bars []ports.DailyBar
	err := d.Retry.Do(ctx, "bars:"+symbol, func(callCtx context.Context) error {
		fetched, fetchErr := d.Historical.GetDailyBars(callCtx, symbol, lookback)
		if fetchErr != nil {
			return fetchErr
		}
		bars = fetched
		return nil
	})
	if err != nil {
		d.Logger.Warn().Str("symbol", symbol).Err(err).Msg("bullflag bar fetch failed, skipping symbol")
		if d.Report != nil {
			d.Report(ctx, symbol, err)
		}
		return nil
	}

	for _, b := range bars {
		if b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			d.Logger.Debug().Str("symbol", symbol).Msg("non-positive price in bar history, skipping symbol")
			return nil
		}
	}

	poleMinGain := d.Config.PoleMinGainPct
	if poleMinGain == 0 {
		poleMinGain = DefaultConfig().PoleMinGainPct
	}
	flagMin := d.Config.FlagRangeMin
	if flagMin == 0 {
		flagMin = DefaultConfig().FlagRangeMin
	}
	flagMax := d.Config.FlagRangeMax
	if flagMax == 0 {
		flagMax = DefaultConfig().FlagRangeMax
	}

	p, found := detectPole(bars, poleMinGain)
	if !found {
		return nil
	}
	f, found := detectFlag(bars, p, flagMin, flagMax)
	if !found {
		return nil
	}

	breakoutPrice := f.High
	poleHeight := p.High - p.Low
	priceTarget := breakoutPrice + poleHeight
	strength := Strength(p.GainPct, f.RangePct, f.SlopePct)

	poleStartIdx := p.EndIdx - p.Width + 1
	flagStartIdx := p.EndIdx + 1
	flagEndIdx := flagStartIdx + f.Width - 1

	now := d.Clock.NowUTC()
	sig, mkErr := signal.MakeBullFlag(uuid.NewString(), symbol, strength, now, signal.BullFlagPattern{
		PoleStart:     bars[poleStartIdx].Date,
		PoleEnd:       bars[p.EndIdx].Date,
		PoleLow:       p.Low,
		PoleHigh:      p.High,
		PoleGainPct:   p.GainPct,
		FlagStart:     bars[flagStartIdx].Date,
		FlagEnd:       bars[flagEndIdx].Date,
		FlagLow:       f.Low,
		FlagHigh:      f.High,
		FlagRangePct:  f.RangePct,
		FlagSlopePct:  f.SlopePct,
		BreakoutPrice: breakoutPrice,
		PriceTarget:   priceTarget,
		PatternValid:  true,
	})
	if mkErr != nil {
		d.Logger.Warn().Str("symbol", symbol).Err(mkErr).Msg("dropping invalid bullflag pattern")
		return nil
	}
	return &sig
}

// detectPole scans windows w in {1,2,3} ending at every index, keeping
// the most recent accepted end index; ties broken by largest gain then
// smallest width (spec §4.7 "Pole detection").
func detectPole(bars []ports.DailyBar, minGainPct float64) (pole, bool) {
	n := len(bars)
	var best pole
	found := false

	for i := 0; i < n; i++ {
		var bestAtI pole
		foundAtI := false
		for _, w := range poleWidths {
			start := i - w + 1
			if start < 0 {
				continue
			}
			low, high := windowLowHigh(bars[start : i+1])
			gain := (high - low) / low * 100
			if gain < minGainPct {
				continue
			}
			candidate := pole{EndIdx: i, Width: w, Low: low, High: high, GainPct: gain}
			if !foundAtI || candidate.GainPct > bestAtI.GainPct ||
				(candidate.GainPct == bestAtI.GainPct && candidate.Width < bestAtI.Width) {
				bestAtI = candidate
				foundAtI = true
			}
		}
		if foundAtI {
			// A later i always supersedes an earlier one ("select the
			// most recent i"); ties at the same i were already
			// resolved above.
			best = bestAtI
			found = true
		}
	}
	return best, found
}

// detectFlag examines windows d in {2,3,4,5} immediately after the
// pole, picking the longest d that satisfies the consolidation
// constraints (spec §4.7 "Flag detection").
func detectFlag(bars []ports.DailyBar, p pole, rangeMin, rangeMax float64) (flag, bool) {
	n := len(bars)
	var best flag
	found := false

	for _, d := range flagWidths {
		start := p.EndIdx + 1
		end := start + d - 1
		if end >= n {
			continue
		}
		window := bars[start : end+1]
		low, high := windowLowHigh(window)
		rangePct := (high - low) / low * 100
		slopePct := (window[len(window)-1].Close - window[0].Close) / window[0].Close * 100

		if rangePct < rangeMin || rangePct > rangeMax {
			continue
		}
		if slopePct > 0 {
			continue
		}
		if high > p.High {
			continue
		}

		candidate := flag{Width: d, High: high, Low: low, RangePct: rangePct, SlopePct: slopePct}
		if !found || candidate.Width > best.Width {
			best = candidate
			found = true
		}
	}
	return best, found
}

func windowLowHigh(bars []ports.DailyBar) (low, high float64) {
	low = math.Inf(1)
	high = math.Inf(-1)
	for _, b := range bars {
		if b.Low < low {
			low = b.Low
		}
		if b.High > high {
			high = b.High
		}
	}
	return low, high
}

// Strength computes spec §4.7's formula:
// 40 + 3*(pole_gain_pct-8) - 5*max(0, flag_range_pct-4) + 2*max(0, -flag_slope_pct),
// clamped to [0,100].
func Strength(poleGainPct, flagRangePct, flagSlopePct float64) float64 {
	score := 40 + 3*(poleGainPct-8) - 5*math.Max(0, flagRangePct-4) + 2*math.Max(0, -flagSlopePct)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
