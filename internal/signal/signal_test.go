package signal

import (
	"math"
	"testing"
	"time"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestMakeCatalyst_Valid(t *testing.T) {
	detectedAt := utc("2025-03-04T14:00:00Z")
	published := detectedAt.Add(-1 * time.Hour)

	s, err := MakeCatalyst("id-1", "AAPL", 80, detectedAt, CatalystEvent{
		CatalystType: CatalystEarnings,
		Headline:     "  Apple Q2 earnings beat estimates  ",
		PublishedAt:  published,
		Source:       "wire",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Symbol != "AAPL" || s.Type != TypeCatalyst {
		t.Fatalf("unexpected signal: %+v", s)
	}
	meta := s.Metadata.(CatalystEvent)
	if meta.Headline != "Apple Q2 earnings beat estimates" {
		t.Fatalf("headline not trimmed: %q", meta.Headline)
	}
}

func TestMakeCatalyst_PublishedTooOld(t *testing.T) {
	detectedAt := utc("2025-03-04T14:00:00Z")
	published := detectedAt.Add(-25 * time.Hour)

	_, err := MakeCatalyst("id-1", "AAPL", 80, detectedAt, CatalystEvent{
		CatalystType: CatalystEarnings,
		Headline:     "old news",
		PublishedAt:  published,
	})
	if err == nil {
		t.Fatal("expected error for published_at more than 24h before detected_at")
	}
}

func TestMakeCatalyst_PublishedAfterDetected(t *testing.T) {
	detectedAt := utc("2025-03-04T14:00:00Z")
	published := detectedAt.Add(time.Minute)

	_, err := MakeCatalyst("id-1", "AAPL", 80, detectedAt, CatalystEvent{
		CatalystType: CatalystEarnings,
		Headline:     "future news",
		PublishedAt:  published,
	})
	if err == nil {
		t.Fatal("expected error for published_at after detected_at")
	}
}

func TestMakeCatalyst_BadSymbol(t *testing.T) {
	detectedAt := utc("2025-03-04T14:00:00Z")
	_, err := MakeCatalyst("id-1", "toolong1", 80, detectedAt, CatalystEvent{
		CatalystType: CatalystEarnings,
		Headline:     "x",
		PublishedAt:  detectedAt,
	})
	if err == nil {
		t.Fatal("expected error for invalid symbol")
	}
}

func TestMakePreMarket_RequiresWindow(t *testing.T) {
	detectedAt := utc("2025-03-04T13:00:00Z")
	meta := PreMarketMover{
		PriceChangePct: 6.0,
		VolumeRatio:    3.0,
		ReferencePrice: 10,
		CurrentPrice:   10.6,
		BaselineVolume: 100,
	}
	if _, err := MakePreMarket("id-2", "ZZZ", 70, detectedAt, meta, false); err == nil {
		t.Fatal("expected error when caller asserts outside premarket window")
	}
	if _, err := MakePreMarket("id-2", "ZZZ", 70, detectedAt, meta, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMakePreMarket_NonPositivePrice(t *testing.T) {
	detectedAt := utc("2025-03-04T13:00:00Z")
	meta := PreMarketMover{ReferencePrice: 0, CurrentPrice: 10}
	if _, err := MakePreMarket("id-2", "ZZZ", 70, detectedAt, meta, true); err == nil {
		t.Fatal("expected error for non-positive reference price")
	}
}

func validBullFlag() BullFlagPattern {
	poleStart := utc("2025-03-03T00:00:00Z")
	poleEnd := utc("2025-03-04T00:00:00Z")
	flagStart := utc("2025-03-05T00:00:00Z")
	flagEnd := utc("2025-03-07T00:00:00Z")
	return BullFlagPattern{
		PoleStart: poleStart, PoleEnd: poleEnd,
		PoleLow: 100, PoleHigh: 120, PoleGainPct: 20.0,
		FlagStart: flagStart, FlagEnd: flagEnd,
		FlagLow: 113.5, FlagHigh: 118, FlagRangePct: 3.96, FlagSlopePct: -1.2,
		BreakoutPrice: 118.0, PriceTarget: 138.0,
		PatternValid: true,
	}
}

func TestMakeBullFlag_Valid(t *testing.T) {
	detectedAt := utc("2025-03-07T21:00:00Z")
	s, err := MakeBullFlag("id-3", "XYZ", 55, detectedAt, validBullFlag())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	meta := s.Metadata.(BullFlagPattern)
	if meta.PriceTarget != 138.0 || meta.BreakoutPrice != 118.0 {
		t.Fatalf("unexpected projection: %+v", meta)
	}
}

func TestMakeBullFlag_RejectsInvalidPattern(t *testing.T) {
	meta := validBullFlag()
	meta.PatternValid = false
	if _, err := MakeBullFlag("id-3", "XYZ", 55, utc("2025-03-07T21:00:00Z"), meta); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestMakeBullFlag_RejectsBadProjectionOrdering(t *testing.T) {
	meta := validBullFlag()
	meta.PriceTarget = meta.BreakoutPrice // violates target > breakout
	if _, err := MakeBullFlag("id-3", "XYZ", 55, utc("2025-03-07T21:00:00Z"), meta); err == nil {
		t.Fatal("expected error for price_target <= breakout_price")
	}
}

func TestMakeComposite_Valid(t *testing.T) {
	detectedAt := utc("2025-03-04T14:00:00Z")
	meta := CompositeMetadata{Contributing: []ContributingScore{
		{Type: TypeCatalyst, Score: 80, SignalID: "a"},
		{Type: TypePreMarketMover, Score: 60, SignalID: "b"},
		{Type: TypeBullFlag, Score: 90, SignalID: "c"},
	}}
	s, err := MakeComposite("id-4", "XYZ", 77.0, detectedAt, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Type != TypeComposite {
		t.Fatalf("expected COMPOSITE type, got %s", s.Type)
	}
}

func TestValidateCommon_RejectsNaNAndRange(t *testing.T) {
	detectedAt := utc("2025-03-04T14:00:00Z")
	cases := []float64{-1, 101, math.NaN()}
	for _, strength := range cases {
		if err := validateCommon("AAPL", strength, detectedAt); err == nil {
			t.Fatalf("expected NaN/range error for strength=%v", strength)
		}
	}
}

func TestValidateCommon_RequiresUTC(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	local := time.Date(2025, 3, 4, 9, 0, 0, 0, loc)
	if err := validateCommon("AAPL", 50, local); err == nil {
		t.Fatal("expected error for non-UTC detected_at")
	}
}
