package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/momentumcore/internal/audit"
	"github.com/sawpanic/momentumcore/internal/engine"
	"github.com/sawpanic/momentumcore/internal/signal"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleScan implements GET /scan?symbols=AAPL,TSLA&types=CATALYST,BULL_FLAG&deadline_ms=500
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	symbols := splitCSV(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, errMissingSymbols)
		return
	}

	opts := engine.Options{}
	if types := splitCSV(r.URL.Query().Get("types")); len(types) > 0 {
		for _, t := range types {
			opts.ScanTypes = append(opts.ScanTypes, engine.ScanType(t))
		}
	}
	if raw := r.URL.Query().Get("deadline_ms"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			opts.Deadline = time.Duration(ms) * time.Millisecond
		}
	}

	sigs, err := s.engine.Scan(r.Context(), symbols, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"signals": sigs})
}

// handleSignals implements GET /signals, a thin wrapper over
// Engine.Query / spec §6.2's query(filter) -> List[Signal].
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Symbols: splitCSV(q.Get("symbols")),
	}
	for _, t := range splitCSV(q.Get("types")) {
		filter.Types = append(filter.Types, signal.Type(t))
	}
	if raw := q.Get("min_strength"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinStrength = &v
		}
	}
	if raw := q.Get("start"); raw != "" {
		if v, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.StartUTC = &v
		}
	}
	if raw := q.Get("end"); raw != "" {
		if v, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.EndUTC = &v
		}
	}
	if raw := q.Get("sort"); raw != "" {
		filter.SortBy = audit.SortField(raw)
	}
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Offset = v
		}
	}

	sigs, err := s.engine.Query(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"signals": sigs})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type missingSymbolsError struct{}

func (missingSymbolsError) Error() string { return "symbols query parameter is required" }

var errMissingSymbols = missingSymbolsError{}
