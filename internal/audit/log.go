package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Clock is the minimal time source AuditLog needs: the UTC instant
// used both to stamp records and to pick the day's partition file.
type Clock interface {
	NowUTC() time.Time
}

// Log is an append-only, date-partitioned JSONL sink. One *os.File is
// kept open per UTC date under root/momentum/YYYY-MM-DD.jsonl; all
// writes, whatever their partition, are serialized by writeMu so two
// scans logging concurrently never interleave a partial line.
type Log struct {
	root  string
	clock Clock

	mu      sync.Mutex // guards the files map and file creation
	writeMu sync.Mutex // serializes all appends across partitions
	files   map[string]*os.File
}

// Open creates (if needed) root/momentum and returns a Log writing
// under it. The caller owns root's lifecycle; Close releases open
// partition file handles.
func Open(root string, clock Clock) (*Log, error) {
	dir := filepath.Join(root, "momentum")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}
	return &Log{root: dir, clock: clock, files: make(map[string]*os.File)}, nil
}

func (l *Log) partitionPath(date string) string {
	return filepath.Join(l.root, date+".jsonl")
}

// fileFor returns the open *os.File for the given record's UTC date,
// opening (create+append) it on first use.
func (l *Log) fileFor(ts time.Time) (*os.File, error) {
	date := ts.UTC().Format("2006-01-02")

	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.files[date]; ok {
		return f, nil
	}
	f, err := os.OpenFile(l.partitionPath(date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open partition %s: %w", date, err)
	}
	l.files[date] = f
	return f, nil
}

// Append writes one record as a single atomic line (spec §4.4: "no
// partial records visible to readers"). The record is marshalled
// first and then written as one line under the write lock, so two
// goroutines' lines never interleave even when their partitions differ.
func (l *Log) Append(r Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = l.clock.NowUTC()
	}
	line, err := marshalLine(r)
	if err != nil {
		return err
	}

	f, err := l.fileFor(r.Timestamp)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	return nil
}

// Sync flushes all open partitions to durable storage. Close performs
// the same flush before releasing the handles, so closing the log on
// normal shutdown leaves every appended record durable.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for date, f := range l.files {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("audit: sync partition %s: %w", date, err)
		}
	}
	return nil
}

// Close syncs and releases all open partition file handles.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for date, f := range l.files {
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("audit: sync partition %s: %w", date, err)
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("audit: close partition %s: %w", date, err)
		}
	}
	l.files = make(map[string]*os.File)
	return firstErr
}
