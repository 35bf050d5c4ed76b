// Package signal defines the common Signal record produced by every
// detector and consumed by the ranker, audit log, and query surface.
//
// Each signal type has its own smart constructor that validates
// field-by-field and wraps constructor errors, and every signal
// carries a component score alongside type-specific metadata.
package signal

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Type identifies which detector produced a Signal, or that it is the
// ranker's synthesized composite.
type Type string

const (
	TypeCatalyst       Type = "CATALYST"
	TypePreMarketMover Type = "PREMARKET_MOVER"
	TypeBullFlag       Type = "BULL_FLAG"
	TypeComposite      Type = "COMPOSITE"
)

// CatalystType classifies the nature of a news catalyst event.
type CatalystType string

const (
	CatalystEarnings CatalystType = "EARNINGS"
	CatalystFDA      CatalystType = "FDA"
	CatalystMerger   CatalystType = "MERGER"
	CatalystProduct  CatalystType = "PRODUCT"
	CatalystAnalyst  CatalystType = "ANALYST"
	CatalystOther    CatalystType = "OTHER"
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidationError reports a constructor invariant violation. It is the
// only error kind SignalModel produces — bad input, never I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field %q: %s", e.Field, e.Message)
}

func validationErrf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Metadata is implemented by each of the three per-detector metadata
// records plus CompositeMetadata. It is a closed set by convention —
// callers outside this package should not implement it.
type Metadata interface {
	signalType() Type
}

// CatalystEvent is the metadata carried by a CATALYST Signal.
type CatalystEvent struct {
	CatalystType CatalystType
	Headline     string
	PublishedAt  time.Time
	Source       string
}

func (CatalystEvent) signalType() Type { return TypeCatalyst }

// PreMarketMover is the metadata carried by a PREMARKET_MOVER Signal.
type PreMarketMover struct {
	PriceChangePct  float64
	VolumeRatio     float64
	ReferencePrice  float64
	CurrentPrice    float64
	BaselineVolume  float64
}

func (PreMarketMover) signalType() Type { return TypePreMarketMover }

// BullFlagPattern is the metadata carried by a BULL_FLAG Signal.
type BullFlagPattern struct {
	PoleStart     time.Time
	PoleEnd       time.Time
	PoleLow       float64
	PoleHigh      float64
	PoleGainPct   float64

	FlagStart     time.Time
	FlagEnd       time.Time
	FlagLow       float64
	FlagHigh      float64
	FlagRangePct  float64
	FlagSlopePct  float64

	BreakoutPrice float64
	PriceTarget   float64
	PatternValid  bool
}

func (BullFlagPattern) signalType() Type { return TypeBullFlag }

// ContributingScore records one per-detector score folded into a
// COMPOSITE signal.
type ContributingScore struct {
	Type     Type
	Score    float64
	SignalID string
}

// CompositeMetadata is the metadata carried by a COMPOSITE Signal.
type CompositeMetadata struct {
	Contributing []ContributingScore
}

func (CompositeMetadata) signalType() Type { return TypeComposite }

// Signal is the common, immutable record emitted by every detector and
// by the ranker. Construct one only via the Make* functions below —
// they are the sole place invariants are enforced.
type Signal struct {
	ID         string
	Symbol     string
	Type       Type
	Strength   float64
	DetectedAt time.Time
	Metadata   Metadata
}

// ValidateSymbolFormat reports whether symbol matches the ticker
// format every Signal requires (^[A-Z]{1,5}$), so callers such as the
// engine can reject bad input before doing any work.
func ValidateSymbolFormat(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return validationErrf("symbol", "%q does not match ^[A-Z]{1,5}$", symbol)
	}
	return nil
}

func validateCommon(symbol string, strength float64, detectedAt time.Time) error {
	if err := ValidateSymbolFormat(symbol); err != nil {
		return err
	}
	if math.IsNaN(strength) {
		return validationErrf("strength", "must not be NaN")
	}
	if strength < 0 || strength > 100 {
		return validationErrf("strength", "%.4f out of range [0,100]", strength)
	}
	if detectedAt.IsZero() {
		return validationErrf("detected_at", "must not be zero")
	}
	if detectedAt.Location() != time.UTC {
		return validationErrf("detected_at", "must be UTC")
	}
	return nil
}

// MakeCatalyst constructs a CATALYST Signal, enforcing the §3 invariant
// that detectedAt - published_at falls in [0, 24h].
func MakeCatalyst(id, symbol string, strength float64, detectedAt time.Time, meta CatalystEvent) (Signal, error) {
	if err := validateCommon(symbol, strength, detectedAt); err != nil {
		return Signal{}, err
	}
	if strings.TrimSpace(meta.Headline) == "" {
		return Signal{}, validationErrf("metadata.headline", "must not be empty")
	}
	meta.Headline = strings.TrimSpace(meta.Headline)
	if meta.PublishedAt.IsZero() || meta.PublishedAt.Location() != time.UTC {
		return Signal{}, validationErrf("metadata.published_at", "must be a non-zero UTC instant")
	}
	if meta.PublishedAt.After(detectedAt) {
		return Signal{}, validationErrf("metadata.published_at", "must not be after detected_at")
	}
	if detectedAt.Sub(meta.PublishedAt) > 24*time.Hour {
		return Signal{}, validationErrf("metadata.published_at", "detected_at - published_at exceeds 24h")
	}
	switch meta.CatalystType {
	case CatalystEarnings, CatalystFDA, CatalystMerger, CatalystProduct, CatalystAnalyst, CatalystOther:
	default:
		return Signal{}, validationErrf("metadata.catalyst_type", "unknown catalyst type %q", meta.CatalystType)
	}
	return Signal{ID: id, Symbol: symbol, Type: TypeCatalyst, Strength: strength, DetectedAt: detectedAt, Metadata: meta}, nil
}

// MakePreMarket constructs a PREMARKET_MOVER Signal. inPreMarketWindow
// must be computed by the caller (via clock.IsPreMarket) — SignalModel
// carries no time source of its own and enforces the §3 window
// invariant purely as a boolean precondition.
func MakePreMarket(id, symbol string, strength float64, detectedAt time.Time, meta PreMarketMover, inPreMarketWindow bool) (Signal, error) {
	if err := validateCommon(symbol, strength, detectedAt); err != nil {
		return Signal{}, err
	}
	if !inPreMarketWindow {
		return Signal{}, validationErrf("detected_at", "falls outside the pre-market window")
	}
	if meta.ReferencePrice <= 0 || meta.CurrentPrice <= 0 {
		return Signal{}, validationErrf("metadata.reference_price", "prices must be positive")
	}
	if meta.BaselineVolume < 0 {
		return Signal{}, validationErrf("metadata.baseline_volume", "must be non-negative")
	}
	return Signal{ID: id, Symbol: symbol, Type: TypePreMarketMover, Strength: strength, DetectedAt: detectedAt, Metadata: meta}, nil
}

// MakeBullFlag constructs a BULL_FLAG Signal. Only patterns with
// PatternValid == true may be constructed — invalid patterns are never
// emitted as signals (§4.7).
func MakeBullFlag(id, symbol string, strength float64, detectedAt time.Time, meta BullFlagPattern) (Signal, error) {
	if err := validateCommon(symbol, strength, detectedAt); err != nil {
		return Signal{}, err
	}
	if !meta.PatternValid {
		return Signal{}, validationErrf("metadata.pattern_valid", "invalid bull-flag patterns must not be constructed as signals")
	}
	if !(meta.PriceTarget > meta.BreakoutPrice && meta.BreakoutPrice > meta.FlagLow) {
		return Signal{}, validationErrf("metadata", "price_target > breakout_price > flag_low violated")
	}
	if !meta.FlagStart.After(meta.PoleEnd) {
		return Signal{}, validationErrf("metadata.flag_start", "must be the first trading day after pole_end")
	}
	return Signal{ID: id, Symbol: symbol, Type: TypeBullFlag, Strength: strength, DetectedAt: detectedAt, Metadata: meta}, nil
}

// MakeComposite constructs a COMPOSITE Signal synthesized by the
// ranker. It never mutates a per-detector Signal — it clones scores
// into a new record.
func MakeComposite(id, symbol string, strength float64, detectedAt time.Time, meta CompositeMetadata) (Signal, error) {
	if err := validateCommon(symbol, strength, detectedAt); err != nil {
		return Signal{}, err
	}
	for _, c := range meta.Contributing {
		switch c.Type {
		case TypeCatalyst, TypePreMarketMover, TypeBullFlag:
		default:
			return Signal{}, validationErrf("metadata.contributing.type", "composite contributions must be per-detector types, got %q", c.Type)
		}
	}
	return Signal{ID: id, Symbol: symbol, Type: TypeComposite, Strength: strength, DetectedAt: detectedAt, Metadata: meta}, nil
}
