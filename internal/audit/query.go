package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sawpanic/momentumcore/internal/signal"
)

func decodeLine(line string, r *Record) error {
	return json.Unmarshal([]byte(line), r)
}

// SortField selects the Query ordering key (spec §6.2).
type SortField string

const (
	SortByStrength   SortField = "strength"
	SortByDetectedAt SortField = "detected_at"
)

// Filter is the query side's read filter (spec §6.2
// `query(filter: {...}) -> List[Signal]`).
type Filter struct {
	Symbols     []string
	Types       []signal.Type
	MinStrength *float64
	StartUTC    *time.Time
	EndUTC      *time.Time
	SortBy      SortField
	Limit       int
	Offset      int
}

func (f Filter) matches(s signal.Signal) bool {
	if len(f.Symbols) > 0 && !containsString(f.Symbols, s.Symbol) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, s.Type) {
		return false
	}
	if f.MinStrength != nil && s.Strength < *f.MinStrength {
		return false
	}
	if f.StartUTC != nil && s.DetectedAt.Before(*f.StartUTC) {
		return false
	}
	if f.EndUTC != nil && s.DetectedAt.After(*f.EndUTC) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func containsType(haystack []signal.Type, needle signal.Type) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// Query reads back signals recorded as SIGNAL events, applying filter
// and returning a consistent ordered result (spec §4.4 "readers see a
// consistent ordered tail").
func (l *Log) Query(filter Filter) ([]signal.Signal, error) {
	paths, err := l.partitionPathsFor(filter)
	if err != nil {
		return nil, err
	}

	var out []signal.Signal
	for _, path := range paths {
		sigs, err := readSignalsFromPartition(path)
		if err != nil {
			return nil, err
		}
		for _, s := range sigs {
			if filter.matches(s) {
				out = append(out, s)
			}
		}
	}

	sortSignals(out, filter.SortBy)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []signal.Signal{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// partitionPathsFor lists the date-partition files to scan: every
// *.jsonl under root when no time bound is given, or only the dates
// spanning [StartUTC, EndUTC] otherwise.
func (l *Log) partitionPathsFor(filter Filter) ([]string, error) {
	if filter.StartUTC == nil && filter.EndUTC == nil {
		entries, err := os.ReadDir(l.root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("audit: read log dir: %w", err)
		}
		var paths []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
				paths = append(paths, filepath.Join(l.root, e.Name()))
			}
		}
		sort.Strings(paths)
		return paths, nil
	}

	start := time.Unix(0, 0).UTC()
	if filter.StartUTC != nil {
		start = filter.StartUTC.UTC()
	}
	end := time.Now().UTC()
	if filter.EndUTC != nil {
		end = filter.EndUTC.UTC()
	}

	var paths []string
	for d := dayOf(start); !d.After(dayOf(end)); d = d.AddDate(0, 0, 1) {
		path := l.partitionPath(d.Format("2006-01-02"))
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func readSignalsFromPartition(path string) ([]signal.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open partition %s: %w", path, err)
	}
	defer f.Close()

	var out []signal.Signal
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r Record
		if err := decodeLine(line, &r); err != nil {
			return nil, fmt.Errorf("audit: malformed record in %s: %w", path, err)
		}
		if r.EventType == EventSignal && r.Signal != nil {
			out = append(out, *r.Signal)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan partition %s: %w", path, err)
	}
	return out, nil
}

func sortSignals(sigs []signal.Signal, by SortField) {
	sort.SliceStable(sigs, func(i, j int) bool {
		switch by {
		case SortByStrength:
			if sigs[i].Strength != sigs[j].Strength {
				return sigs[i].Strength > sigs[j].Strength
			}
		default: // SortByDetectedAt and unset both order by time
			if !sigs[i].DetectedAt.Equal(sigs[j].DetectedAt) {
				return sigs[i].DetectedAt.Before(sigs[j].DetectedAt)
			}
		}
		return sigs[i].Symbol < sigs[j].Symbol
	})
}
