// Package postgres records pagination runs in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pdfchunker/internal/store"
)

const defaultTable = "pagination_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for the run ledger.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunStore implements store.RunLedger.
type RunStore struct {
	pool  execCloser
	table string
}

var _ store.RunLedger = (*RunStore)(nil)

// NewRunStore connects to Postgres using cfg.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool.
func NewRunStoreWithPool(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the ledger table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            uuid PRIMARY KEY,
	target        text NOT NULL,
	status        text NOT NULL,
	started_at    timestamptz NOT NULL,
	finished_at   timestamptz NOT NULL,
	chunk_size    integer NOT NULL,
	concurrency   integer NOT NULL,
	first_page    integer NOT NULL DEFAULT 0,
	last_page     integer NOT NULL DEFAULT 0,
	total_pages   integer NOT NULL DEFAULT 0,
	chunks        integer NOT NULL DEFAULT 0,
	boundary      integer NOT NULL DEFAULT 0,
	output_uri    text,
	output_bytes  integer NOT NULL DEFAULT 0,
	sha256        text,
	error_message text
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// RecordRun inserts one ledger row.
func (s *RunStore) RecordRun(ctx context.Context, rec store.RunRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if rec.ID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	target,
	status,
	started_at,
	finished_at,
	chunk_size,
	concurrency,
	first_page,
	last_page,
	total_pages,
	chunks,
	boundary,
	output_uri,
	output_bytes,
	sha256,
	error_message
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)`, s.table)

	args := []any{
		rec.ID,
		rec.Target,
		string(rec.Status),
		rec.StartedAt,
		rec.FinishedAt,
		rec.ChunkSize,
		rec.Concurrency,
		rec.FirstPage,
		rec.LastPage,
		rec.TotalPages,
		rec.Chunks,
		rec.Boundary,
		nullable(rec.OutputURI),
		rec.OutputBytes,
		nullable(rec.SHA256),
		rec.ErrorMessage,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
