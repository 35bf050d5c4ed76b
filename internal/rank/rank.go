// Package rank implements MomentumRanker (spec §4.8): it groups
// per-detector signals by symbol, synthesizes a weighted COMPOSITE
// signal per symbol, and returns the full list in deterministic
// strength-descending order.
//
// The composite score is an explicit weighted sum of named component
// scores, with ties broken by (symbol, detected_at) for a stable sort.
package rank

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/momentumcore/internal/signal"
)

// Weights holds the three composite weights (spec §6.4
// COMPOSITE_WEIGHTS), validated to sum to 1.0 at startup.
type Weights struct {
	Catalyst   float64 // default 0.25
	PreMarket  float64 // default 0.35
	BullFlag   float64 // default 0.40
}

func DefaultWeights() Weights {
	return Weights{Catalyst: 0.25, PreMarket: 0.35, BullFlag: 0.40}
}

const weightSumTolerance = 1e-6

// Validate enforces spec §4.8 step 3 and §7's ValidationError taxonomy.
func (w Weights) Validate() error {
	sum := w.Catalyst + w.PreMarket + w.BullFlag
	if math.Abs(sum-1.0) > weightSumTolerance {
		return &signal.ValidationError{Field: "composite_weights", Message: fmt.Sprintf("weights sum to %.6f, must sum to 1.0", sum)}
	}
	return nil
}

// Config parameterizes Ranker.
type Config struct {
	Weights Weights
	// SuppressZeroComposite drops COMPOSITE signals whose c, p, and f
	// all default to 0.0 (spec §9 open question: default is to keep
	// them; this flag opts into suppression instead).
	SuppressZeroComposite bool
}

func DefaultConfig() Config {
	return Config{Weights: DefaultWeights()}
}

// Ranker is MomentumRanker.
type Ranker struct {
	Config Config
}

// New constructs a Ranker. config.Weights is expected to already have
// passed Validate (config.Load validates it at startup); Rank
// re-validates on every call as a last line of defense.
func New(config Config) *Ranker {
	return &Ranker{Config: config}
}

// Rank implements spec §4.8: group by symbol, synthesize one COMPOSITE
// Signal per symbol, return the union of input signals and synthesized
// composites sorted by strength descending with the documented
// tiebreak. Rank is idempotent: feeding it the output of a prior Rank
// call (which already contains COMPOSITE signals) re-groups around the
// same per-detector scores and regenerates identical composites, since
// COMPOSITE signals are themselves excluded from the per-type grouping.
func (r *Ranker) Rank(signals []signal.Signal) ([]signal.Signal, error) {
	if err := r.Config.Weights.Validate(); err != nil {
		return nil, err
	}

	type group struct {
		symbol       string
		catalyst     []signal.Signal
		premarket    []signal.Signal
		bullflag     []signal.Signal
	}
	groups := make(map[string]*group)
	var order []string

	for _, s := range signals {
		if s.Type == signal.TypeComposite {
			continue
		}
		g, ok := groups[s.Symbol]
		if !ok {
			g = &group{symbol: s.Symbol}
			groups[s.Symbol] = g
			order = append(order, s.Symbol)
		}
		switch s.Type {
		case signal.TypeCatalyst:
			g.catalyst = append(g.catalyst, s)
		case signal.TypePreMarketMover:
			g.premarket = append(g.premarket, s)
		case signal.TypeBullFlag:
			g.bullflag = append(g.bullflag, s)
		}
	}

	out := append([]signal.Signal(nil), signals...)
	// Drop any pre-existing COMPOSITE signals from a prior Rank pass so
	// re-ranking regenerates them fresh rather than accumulating stale
	// copies (idempotence).
	filtered := out[:0]
	for _, s := range out {
		if s.Type != signal.TypeComposite {
			filtered = append(filtered, s)
		}
	}
	out = filtered

	for _, symbol := range order {
		g := groups[symbol]
		c := maxStrength(g.catalyst)
		p := maxStrength(g.premarket)
		f := maxStrength(g.bullflag)

		if r.Config.SuppressZeroComposite && c == 0 && p == 0 && f == 0 {
			continue
		}

		composite := round1(r.Config.Weights.Catalyst*c + r.Config.Weights.PreMarket*p + r.Config.Weights.BullFlag*f)
		detectedAt := latestDetectedAt(g.catalyst, g.premarket, g.bullflag)

		contributing := make([]signal.ContributingScore, 0, len(g.catalyst)+len(g.premarket)+len(g.bullflag))
		contributing = append(contributing, contributingScores(g.catalyst)...)
		contributing = append(contributing, contributingScores(g.premarket)...)
		contributing = append(contributing, contributingScores(g.bullflag)...)

		compositeSignal, err := signal.MakeComposite(uuid.NewString(), symbol, composite, detectedAt, signal.CompositeMetadata{Contributing: contributing})
		if err != nil {
			return nil, err
		}
		out = append(out, compositeSignal)
	}

	sortSignals(out)
	return out, nil
}

func maxStrength(sigs []signal.Signal) float64 {
	best := 0.0
	for _, s := range sigs {
		if s.Strength > best {
			best = s.Strength
		}
	}
	return best
}

// latestDetectedAt returns the most recent detected_at across every
// contributing signal, used as the COMPOSITE signal's own detected_at.
func latestDetectedAt(groups ...[]signal.Signal) time.Time {
	var latest time.Time
	for _, g := range groups {
		for _, s := range g {
			if s.DetectedAt.After(latest) {
				latest = s.DetectedAt
			}
		}
	}
	return latest
}

func contributingScores(sigs []signal.Signal) []signal.ContributingScore {
	out := make([]signal.ContributingScore, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, signal.ContributingScore{Type: s.Type, Score: s.Strength, SignalID: s.ID})
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sortSignals(sigs []signal.Signal) {
	sort.SliceStable(sigs, func(i, j int) bool {
		a, b := sigs[i], sigs[j]
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.DetectedAt.Before(b.DetectedAt)
	})
}
