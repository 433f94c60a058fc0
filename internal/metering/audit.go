package metering

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Journal is the durable audit log behind the in-memory meter: every
// provider call and tool dispatch is appended to SQLite. Unlike the meter
// it survives restarts and can back dashboards.
type Journal struct {
	db *sql.DB
}

// Journal record kinds
const (
	KindProviderCall = "provider_call"
	KindToolDispatch = "tool_dispatch"
)

// Record is one audit entry
type Record struct {
	ID         string
	Timestamp  time.Time
	Kind       string // KindProviderCall or KindToolDispatch
	Operation  string // call type or tool name
	Model      string
	Tokens     int
	CostUSD    float64
	CacheHit   bool
	Duration   time.Duration
	Success    bool
	Error      string
}

// JournalStats holds aggregates over the journal
type JournalStats struct {
	TotalCalls      int
	SuccessfulCalls int
	ErrorRate       float64
	AverageDuration time.Duration
}

// NewJournal opens (or creates) the SQLite journal at dbPath
func NewJournal(dbPath string) (*Journal, error) {
	if strings.HasPrefix(dbPath, "~/") {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, dbPath[2:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS call_log (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		kind TEXT NOT NULL,
		operation TEXT NOT NULL,
		model TEXT,
		tokens INTEGER,
		cost_usd REAL,
		cache_hit BOOLEAN,
		duration_ms INTEGER,
		success BOOLEAN,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_call_log_timestamp ON call_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_call_log_kind ON call_log(kind);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append records one entry. Missing id and timestamp are filled in, the
// same way Meter.Record completes its metrics.
func (j *Journal) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	query := `
		INSERT INTO call_log (
			id, timestamp, kind, operation, model, tokens,
			cost_usd, cache_hit, duration_ms, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp,
		rec.Kind,
		rec.Operation,
		rec.Model,
		rec.Tokens,
		rec.CostUSD,
		rec.CacheHit,
		rec.Duration.Milliseconds(),
		rec.Success,
		rec.Error,
	)
	return err
}

// Stats aggregates journal entries of one kind since a point in time
func (j *Journal) Stats(ctx context.Context, kind string, since time.Time) (*JournalStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) AS successful,
			AVG(duration_ms) AS avg_duration_ms
		FROM call_log
		WHERE kind = ? AND timestamp >= ?
	`

	var stats JournalStats
	var successful sql.NullInt64
	var avgDuration sql.NullFloat64

	err := j.db.QueryRowContext(ctx, query, kind, since).Scan(
		&stats.TotalCalls,
		&successful,
		&avgDuration,
	)
	if err != nil {
		return nil, err
	}

	if successful.Valid {
		stats.SuccessfulCalls = int(successful.Int64)
	}
	if avgDuration.Valid {
		stats.AverageDuration = time.Duration(avgDuration.Float64) * time.Millisecond
	}
	if stats.TotalCalls > 0 {
		stats.ErrorRate = float64(stats.TotalCalls-stats.SuccessfulCalls) / float64(stats.TotalCalls)
	}
	return &stats, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}
