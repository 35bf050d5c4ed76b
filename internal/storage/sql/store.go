// Package sql defines an optional persistence stub (spec §4.11,
// "optional future" per spec §1/§9's audit-log-as-state-of-record
// design): a SignalStore interface and a PostgresSignalStore
// implementation, compiled but never wired into the default engine.
package sql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/momentumcore/internal/audit"
	"github.com/sawpanic/momentumcore/internal/signal"
)

// SignalStore is the persistence-side port a future durable store
// would implement alongside (or instead of) the audit log.
type SignalStore interface {
	Save(ctx context.Context, s signal.Signal) error
	Query(ctx context.Context, filter audit.Filter) ([]signal.Signal, error)
}

// Config is a DSN plus connection pool tuning, disabled unless
// explicitly enabled.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Enabled         bool
}

func DefaultConfig() Config {
	return Config{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute}
}

// PostgresSignalStore is a SignalStore backed by a `signals` table
// (id text primary key, symbol text, type text, strength double
// precision, detected_at timestamptz, metadata jsonb), persisting each
// Signal by delegating to its own MarshalJSON/UnmarshalJSON (the same
// wire form the audit log uses) so the two stores never disagree on
// shape.
type PostgresSignalStore struct {
	db *sqlx.DB
}

// Open connects to config.DSN and pings it. Returns (nil, nil) when
// config.Enabled is false, so callers can treat a disabled store as
// "no persistence configured" without a nil-check special case.
func Open(config Config) (*PostgresSignalStore, error) {
	if !config.Enabled {
		return nil, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("storage/sql: DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage/sql: open: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage/sql: ping: %w", err)
	}

	return &PostgresSignalStore{db: db}, nil
}

func (s *PostgresSignalStore) Close() error {
	return s.db.Close()
}

// Save upserts one signal row, keyed on id (spec §4.1: Signal.ID is
// unique per emission).
func (s *PostgresSignalStore) Save(ctx context.Context, sig signal.Signal) error {
	raw, err := sig.MarshalJSON()
	if err != nil {
		return fmt.Errorf("storage/sql: marshal signal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signals (id, symbol, type, strength, detected_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol, type = EXCLUDED.type, strength = EXCLUDED.strength,
			detected_at = EXCLUDED.detected_at, metadata = EXCLUDED.metadata
	`, sig.ID, sig.Symbol, string(sig.Type), sig.Strength, sig.DetectedAt, raw)
	if err != nil {
		return fmt.Errorf("storage/sql: save signal %s: %w", sig.ID, err)
	}
	return nil
}

// signalRow mirrors the signals table's columns. metadata is read back
// as raw jsonb text and re-wrapped into the same wire shape
// signal.Signal.UnmarshalJSON expects, so the decode path matches the
// audit log's exactly rather than duplicating its metadata-by-type
// switch here.
type signalRow struct {
	ID         string    `db:"id"`
	Symbol     string    `db:"symbol"`
	Type       string    `db:"type"`
	Strength   float64   `db:"strength"`
	DetectedAt time.Time `db:"detected_at"`
	Metadata   []byte    `db:"metadata"`
}

// Query applies filter.Symbols/Types/StartUTC/EndUTC as SQL predicates
// and re-decodes each row through signal.Signal's own JSON codec.
// Limit and Offset are applied; MinStrength and SortBy are not, and
// rows always come back ordered by detected_at ascending.
func (s *PostgresSignalStore) Query(ctx context.Context, filter audit.Filter) ([]signal.Signal, error) {
	query := `SELECT id, symbol, type, strength, detected_at, metadata FROM signals WHERE 1=1`
	args := []interface{}{}
	argN := 1

	if len(filter.Symbols) > 0 {
		query += fmt.Sprintf(" AND symbol = ANY($%d)", argN)
		args = append(args, filter.Symbols)
		argN++
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query += fmt.Sprintf(" AND type = ANY($%d)", argN)
		args = append(args, types)
		argN++
	}
	if filter.StartUTC != nil {
		query += fmt.Sprintf(" AND detected_at >= $%d", argN)
		args = append(args, *filter.StartUTC)
		argN++
	}
	if filter.EndUTC != nil {
		query += fmt.Sprintf(" AND detected_at <= $%d", argN)
		args = append(args, *filter.EndUTC)
		argN++
	}
	query += " ORDER BY detected_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var rows []signalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("storage/sql: query signals: %w", err)
	}

	out := make([]signal.Signal, 0, len(rows))
	for _, r := range rows {
		blob, err := json.Marshal(map[string]interface{}{
			"id":          r.ID,
			"symbol":      r.Symbol,
			"type":        r.Type,
			"strength":    r.Strength,
			"detected_at": r.DetectedAt,
			"metadata":    json.RawMessage(r.Metadata),
		})
		if err != nil {
			return nil, fmt.Errorf("storage/sql: re-marshal signal %s: %w", r.ID, err)
		}
		var sig signal.Signal
		if err := sig.UnmarshalJSON(blob); err != nil {
			return nil, fmt.Errorf("storage/sql: decode signal %s: %w", r.ID, err)
		}
		out = append(out, sig)
	}
	return out, nil
}
