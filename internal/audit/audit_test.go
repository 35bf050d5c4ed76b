package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sawpanic/momentumcore/internal/signal"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) NowUTC() time.Time { return c.t }

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func mustSignal(t *testing.T, symbol string, strength float64, detectedAt time.Time) signal.Signal {
	t.Helper()
	s, err := signal.MakeCatalyst("sig-"+symbol, symbol, strength, detectedAt, signal.CatalystEvent{
		CatalystType: signal.CatalystEarnings,
		Headline:     "beats estimates",
		PublishedAt:  detectedAt.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("mustSignal: %v", err)
	}
	return s
}

func TestLog_AppendAndQuery_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock{t: utc("2025-03-04T09:00:00Z")}
	log, err := Open(dir, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	sig := mustSignal(t, "AAPL", 80, utc("2025-03-04T09:00:00Z"))
	if err := log.Append(Record{ScanID: "scan-1", EventType: EventScanStarted, Timestamp: utc("2025-03-04T08:59:00Z")}); err != nil {
		t.Fatalf("append SCAN_STARTED: %v", err)
	}
	if err := log.Append(Record{ScanID: "scan-1", EventType: EventSignal, Symbol: "AAPL", Signal: &sig, Timestamp: sig.DetectedAt}); err != nil {
		t.Fatalf("append SIGNAL: %v", err)
	}
	if err := log.Append(Record{ScanID: "scan-1", EventType: EventScanCompleted, Timestamp: utc("2025-03-04T09:00:01Z")}); err != nil {
		t.Fatalf("append SCAN_COMPLETED: %v", err)
	}

	results, err := log.Query(Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(results))
	}
	if results[0].Symbol != "AAPL" || results[0].Strength != 80 {
		t.Fatalf("unexpected signal: %+v", results[0])
	}

	path := filepath.Join(dir, "momentum", "2025-03-04.jsonl")
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected partition file at %s: %v", path, statErr)
	}
}

func TestLog_QueryFiltersBySymbolTypeAndStrength(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock{t: utc("2025-03-04T09:00:00Z")}
	log, err := Open(dir, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	aapl := mustSignal(t, "AAPL", 80, utc("2025-03-04T09:00:00Z"))
	tsla := mustSignal(t, "TSLA", 40, utc("2025-03-04T09:05:00Z"))
	for _, s := range []signal.Signal{aapl, tsla} {
		sCopy := s
		if err := log.Append(Record{ScanID: "scan-1", EventType: EventSignal, Symbol: s.Symbol, Signal: &sCopy, Timestamp: s.DetectedAt}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	min := 50.0
	results, err := log.Query(Filter{MinStrength: &min})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "AAPL" {
		t.Fatalf("expected only AAPL above min_strength=50, got %+v", results)
	}

	results, err = log.Query(Filter{Symbols: []string{"TSLA"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "TSLA" {
		t.Fatalf("expected only TSLA, got %+v", results)
	}
}

func TestLog_QuerySortsByStrengthDescending(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock{t: utc("2025-03-04T09:00:00Z")}
	log, err := Open(dir, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	low := mustSignal(t, "AAPL", 30, utc("2025-03-04T09:00:00Z"))
	high := mustSignal(t, "TSLA", 90, utc("2025-03-04T09:01:00Z"))
	for _, s := range []signal.Signal{low, high} {
		sCopy := s
		if err := log.Append(Record{ScanID: "scan-1", EventType: EventSignal, Symbol: s.Symbol, Signal: &sCopy, Timestamp: s.DetectedAt}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	results, err := log.Query(Filter{SortBy: SortByStrength})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 || results[0].Symbol != "TSLA" || results[1].Symbol != "AAPL" {
		t.Fatalf("expected TSLA then AAPL by descending strength, got %+v", results)
	}
}

func TestLog_PartitionsByUTCDate(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock{t: utc("2025-03-04T09:00:00Z")}
	log, err := Open(dir, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	day1 := mustSignal(t, "AAPL", 80, utc("2025-03-04T23:59:00Z"))
	day2 := mustSignal(t, "TSLA", 80, utc("2025-03-05T00:01:00Z"))
	for _, s := range []signal.Signal{day1, day2} {
		sCopy := s
		if err := log.Append(Record{ScanID: "scan-1", EventType: EventSignal, Symbol: s.Symbol, Signal: &sCopy, Timestamp: s.DetectedAt}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "momentum", "2025-03-04.jsonl")); err != nil {
		t.Fatalf("expected 2025-03-04 partition: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "momentum", "2025-03-05.jsonl")); err != nil {
		t.Fatalf("expected 2025-03-05 partition: %v", err)
	}
}

func TestLog_AppendRejectsInvalidRecord(t *testing.T) {
	dir := t.TempDir()
	clock := fixedClock{t: utc("2025-03-04T09:00:00Z")}
	log, err := Open(dir, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	err = log.Append(Record{EventType: EventScanStarted, Timestamp: clock.t})
	if err == nil {
		t.Fatal("expected error for missing scan_id")
	}
}
