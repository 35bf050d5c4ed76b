package bullflag

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/adapters/mock"
	"github.com/sawpanic/momentumcore/internal/clock"
	"github.com/sawpanic/momentumcore/internal/ports"
	"github.com/sawpanic/momentumcore/internal/resilience"
	"github.com/sawpanic/momentumcore/internal/signal"
)

func day(n int) time.Time {
	return time.Date(2025, 1, 2+n, 0, 0, 0, 0, time.UTC)
}

func newTestDetector(hist *mock.HistoricalAdapter, now time.Time) *Detector {
	return &Detector{
		Historical: hist,
		Clock:      clock.NewFixedClock(now),
		Retry:      resilience.New(resilience.Config{MaxAttempts: 1}),
		Config:     DefaultConfig(),
		Logger:     zerolog.Nop(),
	}
}

// exampleBars builds the spec's worked example: a pole from low=100 to
// high=120 (gain 20%) followed by a flag with high=118, low=113.5 and a
// last close below the first. Because the most recent accepted pole
// end wins, detectPole picks the 3-bar window day(0)-day(2), and the
// flag is the 3 bars day(3)-day(5).
func exampleBars() []ports.DailyBar {
	return []ports.DailyBar{
		{Date: day(0), Open: 100, High: 103, Low: 100, Close: 102, Volume: 1000},
		{Date: day(1), Open: 118, High: 120, Low: 118, Close: 119, Volume: 1000},
		{Date: day(2), Open: 115, High: 116, Low: 114, Close: 115.5, Volume: 1000},
		{Date: day(3), Open: 116, High: 118, Low: 115, Close: 116.5, Volume: 1000},
		{Date: day(4), Open: 115, High: 117, Low: 113.5, Close: 114.8, Volume: 1000},
		{Date: day(5), Open: 114.5, High: 116.5, Low: 114, Close: 114.0, Volume: 1000},
	}
}

func TestDetector_Scan_ExactProjectionExample(t *testing.T) {
	hist := mock.NewHistoricalAdapter()
	hist.SetBars("AAPL", exampleBars())

	d := newTestDetector(hist, day(6))
	signals := d.Scan(context.Background(), []string{"AAPL"})
	if len(signals) != 1 {
		t.Fatalf("expected 1 bull-flag signal, got %d: %+v", len(signals), signals)
	}

	meta, ok := signals[0].Metadata.(signal.BullFlagPattern)
	if !ok {
		t.Fatalf("expected BullFlagPattern metadata, got %T", signals[0].Metadata)
	}
	if !meta.PatternValid {
		t.Fatalf("expected pattern_valid=true")
	}
	if math.Abs(meta.BreakoutPrice-118.0) > 1e-9 {
		t.Errorf("breakout_price = %v, want 118.0", meta.BreakoutPrice)
	}
	if math.Abs(meta.PriceTarget-138.0) > 1e-9 {
		t.Errorf("price_target = %v, want 138.0", meta.PriceTarget)
	}
	if math.Abs(meta.PoleLow-100) > 1e-9 || math.Abs(meta.PoleHigh-120) > 1e-9 {
		t.Errorf("pole_low/high = %v/%v, want 100/120", meta.PoleLow, meta.PoleHigh)
	}
}

func TestDetector_Scan_NilAdapterReturnsEmpty(t *testing.T) {
	d := newTestDetector(nil, day(6))
	d.Historical = nil
	signals := d.Scan(context.Background(), []string{"AAPL"})
	if len(signals) != 0 {
		t.Fatalf("expected no signals when adapter is nil, got %d", len(signals))
	}
}

func TestDetector_Scan_InsufficientBarsSkipsSymbol(t *testing.T) {
	hist := mock.NewHistoricalAdapter()
	hist.SetBars("AAPL", exampleBars()[:2]) // pole only, no room for a flag

	d := newTestDetector(hist, day(6))
	signals := d.Scan(context.Background(), []string{"AAPL"})
	if len(signals) != 0 {
		t.Fatalf("expected no signal with insufficient bars, got %d", len(signals))
	}
}

func TestDetector_Scan_NonPositivePriceSkipsSymbol(t *testing.T) {
	bars := exampleBars()
	bars[3].Low = 0
	hist := mock.NewHistoricalAdapter()
	hist.SetBars("AAPL", bars)

	d := newTestDetector(hist, day(6))
	signals := d.Scan(context.Background(), []string{"AAPL"})
	if len(signals) != 0 {
		t.Fatalf("expected no signal when a bar has a non-positive price, got %d", len(signals))
	}
}

func TestDetectPole_GainBoundary(t *testing.T) {
	cases := []struct {
		name  string
		high  float64
		want  bool
	}{
		{"exactly 8.0 percent accepted", 108.0, true},
		{"7.99 percent rejected", 107.99, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bars := []ports.DailyBar{{Date: day(0), Open: 100, High: tc.high, Low: 100, Close: tc.high, Volume: 1}}
			_, found := detectPole(bars, 8.0)
			if found != tc.want {
				t.Errorf("detectPole found=%v, want %v", found, tc.want)
			}
		})
	}
}

func TestDetectFlag_RangeBoundary(t *testing.T) {
	p := pole{EndIdx: 0, Width: 1, Low: 100, High: 108, GainPct: 8.0}
	cases := []struct {
		name  string
		high  float64
		low   float64
		want  bool
	}{
		{"exactly 3.0 percent accepted", 103.0, 100.0, true},
		{"exactly 5.0 percent accepted", 105.0, 100.0, true},
		{"2.99 percent rejected", 102.99, 100.0, false},
		{"5.01 percent rejected", 105.01, 100.0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bars := []ports.DailyBar{
				{Date: day(0), Open: 100, High: 108, Low: 100, Close: 105, Volume: 1},
				{Date: day(1), Open: tc.low, High: tc.high, Low: tc.low, Close: tc.high - 1, Volume: 1},
				{Date: day(2), Open: tc.low, High: tc.high - 2, Low: tc.low, Close: tc.low, Volume: 1},
			}
			_, found := detectFlag(bars, p, 3.0, 5.0)
			if found != tc.want {
				t.Errorf("detectFlag found=%v, want %v", found, tc.want)
			}
		})
	}
}

func TestStrength_Formula(t *testing.T) {
	got := Strength(20.0, 3.965034965034965, -2.1459227467811172)
	want := 40 + 3*(20.0-8) - 5*math.Max(0, 3.965034965034965-4) + 2*math.Max(0, 2.1459227467811172)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Strength() = %v, want %v", got, want)
	}
}

func TestStrength_ClampsToRange(t *testing.T) {
	if got := Strength(100, 0, -50); got != 100 {
		t.Errorf("expected clamp to 100, got %v", got)
	}
	if got := Strength(-100, 20, 50); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}
