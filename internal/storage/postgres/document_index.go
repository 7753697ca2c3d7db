// Package postgres keeps an advisory index of written records in Postgres.
// The NDJSON shards stay the source of truth; the index only answers "have we
// seen this signature" for operators and downstream jobs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
)

// DefaultTable is used when IndexConfig.Table is empty.
const DefaultTable = "documents"

// ErrNotIndexed is returned by Lookup for unknown signatures.
var ErrNotIndexed = errors.New("document not indexed")

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IndexConfig controls the Postgres connection pool used for index rows.
type IndexConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Entry is an indexed record with its sighting count.
type Entry struct {
	document.IndexEntry
	SeenCount int
}

// DocumentIndex writes one row per dedupe signature.
type DocumentIndex struct {
	pool  dbPool
	table string
}

// NewDocumentIndex connects a pool using cfg.
func NewDocumentIndex(ctx context.Context, cfg IndexConfig) (*DocumentIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	idx, err := NewDocumentIndexWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

// NewDocumentIndexWithPool constructs an index from an existing pool.
func NewDocumentIndexWithPool(pool dbPool, table string) (*DocumentIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &DocumentIndex{pool: pool, table: table}, nil
}

// Ping checks connectivity; serve mode uses it for readiness.
func (s *DocumentIndex) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *DocumentIndex) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the index table if it does not exist.
func (s *DocumentIndex) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	dedupe_signature TEXT PRIMARY KEY,
	url              TEXT NOT NULL,
	title            TEXT NOT NULL,
	doc_type         TEXT NOT NULL,
	published_date   TIMESTAMPTZ,
	first_run_id     TEXT NOT NULL,
	last_run_id      TEXT NOT NULL,
	first_fetch_time TIMESTAMPTZ NOT NULL,
	last_fetch_time  TIMESTAMPTZ NOT NULL,
	shard_path       TEXT NOT NULL,
	seen_count       INTEGER NOT NULL DEFAULT 1
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create index table: %w", err)
	}
	return nil
}

// IndexRecord inserts a row, or bumps the sighting of a known signature.
func (s *DocumentIndex) IndexRecord(ctx context.Context, entry document.IndexEntry) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("document index is not configured")
	}
	if entry.DedupeSignature == "" {
		return fmt.Errorf("dedupe signature is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %[1]s (
	dedupe_signature,
	url,
	title,
	doc_type,
	published_date,
	first_run_id,
	last_run_id,
	first_fetch_time,
	last_fetch_time,
	shard_path
) VALUES (
	$1,$2,$3,$4,$5,$6,$6,$7,$7,$8
)
ON CONFLICT (dedupe_signature) DO UPDATE
SET last_run_id = EXCLUDED.last_run_id,
	last_fetch_time = EXCLUDED.last_fetch_time,
	shard_path = EXCLUDED.shard_path,
	seen_count = %[1]s.seen_count + 1`, s.table)

	args := []any{
		entry.DedupeSignature,
		entry.URL,
		entry.Title,
		entry.DocType,
		nullableTime(entry.PublishedDate),
		entry.RunID,
		entry.FetchTime.UTC(),
		entry.ShardPath,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert index row: %w", err)
	}
	return nil
}

// Lookup returns the row for signature, or ErrNotIndexed.
func (s *DocumentIndex) Lookup(ctx context.Context, signature string) (Entry, error) {
	query := fmt.Sprintf(`
SELECT dedupe_signature, url, title, doc_type, published_date, last_run_id, last_fetch_time, shard_path, seen_count
FROM %s
WHERE dedupe_signature = $1`, s.table)

	var (
		entry     Entry
		published *time.Time
	)
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&entry.DedupeSignature,
		&entry.URL,
		&entry.Title,
		&entry.DocType,
		&published,
		&entry.RunID,
		&entry.FetchTime,
		&entry.ShardPath,
		&entry.SeenCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotIndexed
	}
	if err != nil {
		return Entry{}, fmt.Errorf("lookup index row: %w", err)
	}
	if published != nil {
		entry.PublishedDate = published.UTC()
	}
	entry.FetchTime = entry.FetchTime.UTC()
	return entry, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
