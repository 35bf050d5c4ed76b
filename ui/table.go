// Package ui renders momentumcore's scan output as a fixed-width
// console table, the alternative to scan's default JSON output.
package ui

import (
	"fmt"
	"io"

	"github.com/sawpanic/momentumcore/internal/signal"
)

// PrintHeader writes a banner line identifying the engine state a scan
// ran under and how many signals it produced.
func PrintHeader(w io.Writer, state string, signalCount int) {
	fmt.Fprintf(w, "MOMENTUM SIGNALS | Engine: %s | Signals: %d\n", state, signalCount)
	fmt.Fprintln(w, "═════════════════════════════════════════════════════════════════════════════")
}

// PrintTable renders one ranked row per signal: rank, symbol, type,
// strength, and when it was detected.
func PrintTable(w io.Writer, signals []signal.Signal) {
	fmt.Fprintf(w, "%-4s %-8s %-12s %-10s %s\n", "#", "SYMBOL", "TYPE", "STRENGTH", "DETECTED_AT")
	for i, s := range signals {
		fmt.Fprintf(w, "%-4d %-8s %-12s %-10.1f %s\n", i+1, s.Symbol, s.Type, s.Strength, s.DetectedAt.Format("2006-01-02T15:04:05Z"))
	}
}
