package signal

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireSignal is the on-disk/over-the-wire shape of a Signal. Metadata
// is kept as raw JSON until Type tells us which concrete struct to
// decode it into. time.Time fields marshal/unmarshal via encoding/json's
// built-in RFC3339Nano support, so no custom time handling is needed.
type wireSignal struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Type       Type            `json:"type"`
	Strength   float64         `json:"strength"`
	DetectedAt time.Time       `json:"detected_at"`
	Metadata   json.RawMessage `json:"metadata"`
}

// MarshalJSON renders a Signal as the audit log's line format (§4.4,
// §6.3): RFC3339-nano timestamps, metadata nested under its own key.
func (s Signal) MarshalJSON() ([]byte, error) {
	metaBytes, err := json.Marshal(s.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return json.Marshal(wireSignal{
		ID:         s.ID,
		Symbol:     s.Symbol,
		Type:       s.Type,
		Strength:   s.Strength,
		DetectedAt: s.DetectedAt,
		Metadata:   metaBytes,
	})
}

// UnmarshalJSON reconstructs a Signal from its audit-log wire form.
// This is a read path for previously-validated records (the audit log
// only ever contains signals that passed a Make* constructor at write
// time) and intentionally bypasses those constructors rather than
// re-validating already-trusted data.
func (s *Signal) UnmarshalJSON(data []byte) error {
	var w wireSignal
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var meta Metadata
	switch w.Type {
	case TypeCatalyst:
		var m CatalystEvent
		if err := json.Unmarshal(w.Metadata, &m); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		meta = m
	case TypePreMarketMover:
		var m PreMarketMover
		if err := json.Unmarshal(w.Metadata, &m); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		meta = m
	case TypeBullFlag:
		var m BullFlagPattern
		if err := json.Unmarshal(w.Metadata, &m); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		meta = m
	case TypeComposite:
		var m CompositeMetadata
		if err := json.Unmarshal(w.Metadata, &m); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		meta = m
	default:
		return fmt.Errorf("unknown signal type %q", w.Type)
	}

	s.ID = w.ID
	s.Symbol = w.Symbol
	s.Type = w.Type
	s.Strength = w.Strength
	s.DetectedAt = w.DetectedAt
	s.Metadata = meta
	return nil
}
