// Package audit implements the append-only, date-partitioned JSONL
// audit log (spec §4.4, §6.3) that is the system's state of record for
// signals and scan lifecycle events. Reads use bufio.Scanner line by
// line; writes are json.Marshal plus an appended newline, one writer
// per date partition.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sawpanic/momentumcore/internal/signal"
)

// Event names a lifecycle event recorded in the audit log.
type Event string

const (
	EventScanStarted   Event = "SCAN_STARTED"
	EventSignal        Event = "SIGNAL"
	EventScanCompleted Event = "SCAN_COMPLETED"
	EventScanPartial   Event = "SCAN_PARTIAL"
	EventError         Event = "ERROR"
)

// ErrorDetail is the record's error field, a kind+message pair rather
// than a raw Go error (errors do not survive JSON round trips and must
// not leak stack-trace internals into a durable log).
type ErrorDetail struct {
	Kind string `json:"kind"`
	Msg  string `json:"msg"`
}

// Record is exactly one line of the audit log, matching spec §6.3's
// wire format field-for-field.
type Record struct {
	Timestamp time.Time      `json:"ts"`
	ScanID    string         `json:"scan_id"`
	EventType Event          `json:"event"`
	Symbol    string         `json:"symbol,omitempty"`
	Signal    *signal.Signal `json:"signal,omitempty"`
	MsElapsed *int64         `json:"ms,omitempty"`
	Error     *ErrorDetail   `json:"error,omitempty"`
}

func (r Record) validate() error {
	if r.ScanID == "" {
		return fmt.Errorf("audit record: scan_id must not be empty")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("audit record: ts must not be zero")
	}
	switch r.EventType {
	case EventScanStarted, EventSignal, EventScanCompleted, EventScanPartial, EventError:
	default:
		return fmt.Errorf("audit record: unknown event %q", r.EventType)
	}
	return nil
}

// marshalLine renders a Record as one newline-terminated UTF-8 JSON
// line with a trailing Z UTC timestamp, no BOM.
func marshalLine(r Record) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	line, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal audit record: %w", err)
	}
	return append(line, '\n'), nil
}
