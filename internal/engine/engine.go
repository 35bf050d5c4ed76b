// Package engine implements MomentumEngine (spec §4.9), the
// composition root that launches the three detectors concurrently,
// merges and ranks their output under a deadline, and drives the
// audit log.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/audit"
	"github.com/sawpanic/momentumcore/internal/clock"
	"github.com/sawpanic/momentumcore/internal/ports"
	"github.com/sawpanic/momentumcore/internal/rank"
	"github.com/sawpanic/momentumcore/internal/signal"
)

// ScanType names one of the three detectors, for options.ScanTypes
// filtering (spec §6.2). These are deliberately distinct from
// signal.Type ("PREMARKET" here vs. signal.TypePreMarketMover's
// "PREMARKET_MOVER") — they identify the *detector*, not the signal
// shape it produces.
type ScanType string

const (
	ScanCatalyst  ScanType = "CATALYST"
	ScanPremarket ScanType = "PREMARKET"
	ScanBullFlag  ScanType = "BULL_FLAG"
)

// State is the engine's lifecycle state (spec §4.9).
type State string

const (
	StateIdle     State = "IDLE"
	StateScanning State = "SCANNING"
	StateDegraded State = "DEGRADED"
)

type scanIDKey struct{}

// WithScanID attaches a scan's identity to ctx so an ErrorReporter
// wired once at composition time (on a long-lived Detector) can still
// tag each call with the in-flight scan, without any mutable per-scan
// state on the detector struct itself.
func WithScanID(ctx context.Context, scanID string) context.Context {
	return context.WithValue(ctx, scanIDKey{}, scanID)
}

func scanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(scanIDKey{}).(string); ok {
		return v
	}
	return ""
}

// InternalInvariantError wraps a constructor invariant violation
// discovered inside the engine itself — spec §7 says this indicates a
// bug and the whole scan aborts with the error surfaced.
type InternalInvariantError struct {
	Cause error
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated: %v", e.Cause)
}

func (e *InternalInvariantError) Unwrap() error { return e.Cause }

// Detector is the common shape of the three per-detector scanners,
// each already wired with its own adapters/retry/config.
type Detector interface {
	Scan(ctx context.Context, symbols []string) []signal.Signal
}

// Broadcaster is notified of every audit.Record a Scan call appends,
// letting a caller (internal/httpapi's websocket fan-out) watch a scan
// in flight instead of only polling Query after the fact. Publish must
// not block — a slow subscriber is the broadcaster's problem, not the
// engine's.
type Broadcaster interface {
	Publish(r audit.Record)
}

// MetricsRecorder is notified of scan/detector timing and outcome so a
// caller (internal/obs/metrics) can expose them over Prometheus without
// this package importing it directly.
type MetricsRecorder interface {
	RecordScan(outcome string, durationSeconds float64)
	RecordDetector(detector string, durationSeconds float64)
	RecordDetectorError(detector string)
	IncrementActiveScans()
	DecrementActiveScans()
}

// Options parameterizes a single Scan call (spec §6.2).
type Options struct {
	ScanTypes []ScanType    // empty means "all enabled detectors"
	Deadline  time.Duration // zero means no deadline
}

// Config wires the three detectors (any may be nil to mean
// structurally disabled, e.g. missing credentials).
type Config struct {
	Catalyst  Detector
	Premarket Detector
	BullFlag  Detector
}

// Engine is MomentumEngine.
type Engine struct {
	config      Config
	ranker      *rank.Ranker
	audit       *audit.Log
	clock       clock.Clock
	logger      zerolog.Logger
	broadcaster Broadcaster
	metrics     MetricsRecorder

	state atomic.Value // State
}

// New constructs an Engine in the IDLE state.
func New(config Config, ranker *rank.Ranker, auditLog *audit.Log, clk clock.Clock, logger zerolog.Logger) *Engine {
	e := &Engine{config: config, ranker: ranker, audit: auditLog, clock: clk, logger: logger}
	e.state.Store(StateIdle)
	return e
}

// WithBroadcaster attaches b so every audit record this Engine appends
// is also published to it. Returns the same Engine for chaining at
// composition time.
func (e *Engine) WithBroadcaster(b Broadcaster) *Engine {
	e.broadcaster = b
	return e
}

// WithMetrics attaches m so every Scan call and per-detector run
// reports its timing/outcome to it. Returns the same Engine for
// chaining at composition time.
func (e *Engine) WithMetrics(m MetricsRecorder) *Engine {
	e.metrics = m
	return e
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return e.state.Load().(State)
}

type detectorEntry struct {
	scanType ScanType
	detector Detector
}

func (e *Engine) enabledDetectors(opts Options) []detectorEntry {
	all := []detectorEntry{
		{ScanCatalyst, e.config.Catalyst},
		{ScanPremarket, e.config.Premarket},
		{ScanBullFlag, e.config.BullFlag},
	}
	if len(opts.ScanTypes) == 0 {
		var out []detectorEntry
		for _, d := range all {
			if d.detector != nil {
				out = append(out, d)
			}
		}
		return out
	}
	wanted := make(map[ScanType]bool, len(opts.ScanTypes))
	for _, t := range opts.ScanTypes {
		wanted[t] = true
	}
	var out []detectorEntry
	for _, d := range all {
		if wanted[d.scanType] && d.detector != nil {
			out = append(out, d)
		}
	}
	return out
}

// Scan implements spec §4.9's algorithm.
func (e *Engine) Scan(ctx context.Context, symbols []string, opts Options) ([]signal.Signal, error) {
	for _, sym := range symbols {
		if err := signal.ValidateSymbolFormat(sym); err != nil {
			return nil, err
		}
	}

	scanID := uuid.NewString()
	start := e.clock.NowUTC()
	e.appendAudit(audit.Record{ScanID: scanID, Timestamp: start, EventType: audit.EventScanStarted})
	e.state.Store(StateScanning)
	if e.metrics != nil {
		e.metrics.IncrementActiveScans()
		defer e.metrics.DecrementActiveScans()
	}

	runCtx := WithScanID(ctx, scanID)
	var cancel context.CancelFunc
	if opts.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, opts.Deadline)
		defer cancel()
	}

	detectors := e.enabledDetectors(opts)
	structurallyDegraded := len(detectors) < 3 && len(opts.ScanTypes) == 0

	type detectorResult struct {
		scanType ScanType
		signals  []signal.Signal
	}

	resultsCh := make(chan detectorResult, len(detectors))
	var wg sync.WaitGroup
	for _, d := range detectors {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			sigs := e.runDetector(runCtx, scanID, d, symbols)
			resultsCh <- detectorResult{scanType: d.scanType, signals: sigs}
		}()
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	completed := make(map[ScanType]bool, len(detectors))
	var merged []signal.Signal
collect:
	for {
		select {
		case res, ok := <-resultsCh:
			if !ok {
				break collect
			}
			completed[res.scanType] = true
			merged = append(merged, res.signals...)
		case <-runCtx.Done():
			break collect
		}
	}

	var unfinished []string
	for _, d := range detectors {
		if !completed[d.scanType] {
			unfinished = append(unfinished, string(d.scanType))
		}
	}
	partial := len(unfinished) > 0

	ranked, err := e.ranker.Rank(merged)
	if err != nil {
		e.appendAudit(audit.Record{ScanID: scanID, Timestamp: e.clock.NowUTC(), EventType: audit.EventError, Error: &audit.ErrorDetail{Kind: "InternalInvariantError", Msg: err.Error()}})
		e.state.Store(StateIdle)
		if e.metrics != nil {
			e.metrics.RecordScan("error", e.clock.NowUTC().Sub(start).Seconds())
		}
		return nil, &InternalInvariantError{Cause: err}
	}

	for _, s := range ranked {
		sCopy := s
		e.appendAudit(audit.Record{ScanID: scanID, Timestamp: e.clock.NowUTC(), EventType: audit.EventSignal, Symbol: s.Symbol, Signal: &sCopy})
	}

	elapsed := e.clock.NowUTC().Sub(start)
	elapsedMs := elapsed.Milliseconds()
	if partial {
		e.appendAudit(audit.Record{
			ScanID: scanID, Timestamp: e.clock.NowUTC(), EventType: audit.EventScanPartial,
			MsElapsed: &elapsedMs,
			Error:     &audit.ErrorDetail{Kind: "PARTIAL_SCAN", Msg: "unfinished: " + joinStrings(unfinished)},
		})
		if e.metrics != nil {
			e.metrics.RecordScan("partial", elapsed.Seconds())
		}
	} else {
		e.appendAudit(audit.Record{ScanID: scanID, Timestamp: e.clock.NowUTC(), EventType: audit.EventScanCompleted, MsElapsed: &elapsedMs})
		if e.metrics != nil {
			e.metrics.RecordScan("completed", elapsed.Seconds())
		}
	}

	if partial || structurallyDegraded {
		e.state.Store(StateDegraded)
	} else {
		e.state.Store(StateIdle)
	}

	return ranked, nil
}

// runDetector wraps one detector's Scan call, recovering any panic
// into an empty result so one misbehaving detector never corrupts the
// others' output (spec §4.9 step 3's "never partial — a detector that
// errors returns empty").
func (e *Engine) runDetector(ctx context.Context, scanID string, d detectorEntry, symbols []string) (out []signal.Signal) {
	start := e.clock.NowUTC()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordDetector(string(d.scanType), e.clock.NowUTC().Sub(start).Seconds())
		}
		if r := recover(); r != nil {
			e.logger.Error().Str("detector", string(d.scanType)).Interface("panic", r).Msg("detector panicked, treating as empty")
			e.appendAudit(audit.Record{ScanID: scanID, Timestamp: e.clock.NowUTC(), EventType: audit.EventError, Error: &audit.ErrorDetail{Kind: "DetectorPanic", Msg: fmt.Sprintf("%v", r)}})
			if e.metrics != nil {
				e.metrics.RecordDetectorError(string(d.scanType))
			}
			out = nil
		}
	}()
	return d.detector.Scan(ctx, symbols)
}

func (e *Engine) appendAudit(r audit.Record) {
	if e.broadcaster != nil {
		e.broadcaster.Publish(r)
	}
	if e.audit == nil {
		return
	}
	if err := e.audit.Append(r); err != nil {
		e.logger.Error().Err(err).Msg("audit append failed")
	}
}

// ErrorReporter returns a ports.ErrorReporter for wiring into a
// detector's Report field once, at composition time. It recovers the
// in-flight scan's identity from ctx (set by WithScanID inside Scan),
// so the same Detector instance stays safe to reuse across concurrent
// or sequential scans.
func (e *Engine) ErrorReporter() ports.ErrorReporter {
	return func(ctx context.Context, symbol string, err error) {
		e.appendAudit(audit.Record{
			ScanID: scanIDFromContext(ctx), Timestamp: e.clock.NowUTC(), EventType: audit.EventError,
			Symbol: symbol, Error: &audit.ErrorDetail{Kind: "AdapterFailure", Msg: err.Error()},
		})
	}
}

// Query reads signals from the audit log (spec §6.2).
func (e *Engine) Query(filter audit.Filter) ([]signal.Signal, error) {
	return e.audit.Query(filter)
}

func joinStrings(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
