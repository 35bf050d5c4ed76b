// Package mock provides deterministic, in-memory test doubles for the
// three detector-adapter ports (spec §6.1): per-symbol canned
// behavior, constructible in a test without any network dependency.
package mock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sawpanic/momentumcore/internal/ports"
)

// NewsAdapter returns a canned list of NewsItem per symbol, or a
// configured error. Absent symbols yield an empty list, matching the
// real adapter's "MAY return empty" contract.
type NewsAdapter struct {
	Items map[string][]ports.NewsItem
	Err   map[string]error
}

func NewNewsAdapter() *NewsAdapter {
	return &NewsAdapter{Items: make(map[string][]ports.NewsItem), Err: make(map[string]error)}
}

// SetItems installs the canned response for symbol, sorted newest
// first per the port contract.
func (a *NewsAdapter) SetItems(symbol string, items []ports.NewsItem) {
	sorted := append([]ports.NewsItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PublishedAt.After(sorted[j].PublishedAt) })
	a.Items[symbol] = sorted
}

// SetError makes Fetch(symbol) return err instead of its canned items.
func (a *NewsAdapter) SetError(symbol string, err error) {
	a.Err[symbol] = err
}

func (a *NewsAdapter) Fetch(ctx context.Context, symbol string, sinceUTC time.Time) ([]ports.NewsItem, error) {
	if err, ok := a.Err[symbol]; ok {
		return nil, err
	}
	return a.Items[symbol], nil
}

// QuoteAdapter returns a canned PreMarketQuote per symbol.
type QuoteAdapter struct {
	Quotes map[string]ports.PreMarketQuote
	Err    map[string]error
}

func NewQuoteAdapter() *QuoteAdapter {
	return &QuoteAdapter{Quotes: make(map[string]ports.PreMarketQuote), Err: make(map[string]error)}
}

func (a *QuoteAdapter) SetQuote(symbol string, q ports.PreMarketQuote) {
	a.Quotes[symbol] = q
}

func (a *QuoteAdapter) SetError(symbol string, err error) {
	a.Err[symbol] = err
}

func (a *QuoteAdapter) GetPreMarketQuote(ctx context.Context, symbol string) (ports.PreMarketQuote, error) {
	if err, ok := a.Err[symbol]; ok {
		return ports.PreMarketQuote{}, err
	}
	q, ok := a.Quotes[symbol]
	if !ok {
		return ports.PreMarketQuote{}, fmt.Errorf("mock quote adapter: no quote configured for %s", symbol)
	}
	return q, nil
}

// HistoricalAdapter returns canned daily bars and baseline volumes.
type HistoricalAdapter struct {
	Bars      map[string][]ports.DailyBar
	Baselines map[string]float64
	HasBaseline map[string]bool
	Err       map[string]error
}

func NewHistoricalAdapter() *HistoricalAdapter {
	return &HistoricalAdapter{
		Bars:        make(map[string][]ports.DailyBar),
		Baselines:   make(map[string]float64),
		HasBaseline: make(map[string]bool),
		Err:         make(map[string]error),
	}
}

// SetBars installs the canned bar history, sorted ascending by date
// per the port contract.
func (a *HistoricalAdapter) SetBars(symbol string, bars []ports.DailyBar) {
	sorted := append([]ports.DailyBar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	a.Bars[symbol] = sorted
}

func (a *HistoricalAdapter) SetBaseline(symbol string, value float64) {
	a.Baselines[symbol] = value
	a.HasBaseline[symbol] = true
}

func (a *HistoricalAdapter) SetError(symbol string, err error) {
	a.Err[symbol] = err
}

func (a *HistoricalAdapter) GetDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]ports.DailyBar, error) {
	if err, ok := a.Err[symbol]; ok {
		return nil, err
	}
	bars := a.Bars[symbol]
	if lookbackDays > 0 && len(bars) > lookbackDays {
		bars = bars[len(bars)-lookbackDays:]
	}
	return bars, nil
}

func (a *HistoricalAdapter) GetPreMarketVolumeBaseline(ctx context.Context, symbol string, trailingDays int) (float64, bool, error) {
	if err, ok := a.Err[symbol]; ok {
		return 0, false, err
	}
	if !a.HasBaseline[symbol] {
		return 0, false, nil
	}
	return a.Baselines[symbol], true, nil
}
