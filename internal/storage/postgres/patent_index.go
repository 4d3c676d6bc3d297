// Package postgres provides the Postgres-backed patent index.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/patent-collector/internal/patent"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IndexConfig controls the Postgres connection pool used for the index.
type IndexConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PatentIndex keeps one row per patent with the latest extracted record.
type PatentIndex struct {
	pool  execCloser
	table string
}

// NewPatentIndex creates a Postgres-backed PatentIndex using the provided config.
func NewPatentIndex(ctx context.Context, cfg IndexConfig) (*PatentIndex, error) {
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
	return &PatentIndex{pool: pool, table: table}, nil
}

// NewPatentIndexWithPool constructs an index from an existing pool (primarily for testing).
func NewPatentIndexWithPool(pool execCloser, table string) (*PatentIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &PatentIndex{pool: pool, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "patents"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *PatentIndex) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// schemaDDL is the table UpsertRecord writes to. %s is the table name.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS %s (
	patent_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	assignee TEXT NOT NULL,
	inventor TEXT NOT NULL,
	url TEXT NOT NULL,
	citations JSONB NOT NULL,
	cited_by JSONB NOT NULL,
	similar_documents JSONB NOT NULL,
	extraction_gaps TEXT[] NOT NULL,
	page_hash TEXT NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the index table when it does not exist yet. The
// expected schema is:
//
//	CREATE TABLE patents (
//		patent_id TEXT PRIMARY KEY,
//		title TEXT NOT NULL,
//		status TEXT NOT NULL,
//		assignee TEXT NOT NULL,
//		inventor TEXT NOT NULL,
//		url TEXT NOT NULL,
//		citations JSONB NOT NULL,
//		cited_by JSONB NOT NULL,
//		similar_documents JSONB NOT NULL,
//		extraction_gaps TEXT[] NOT NULL,
//		page_hash TEXT NOT NULL,
//		last_updated TIMESTAMPTZ NOT NULL
//	);
func (s *PatentIndex) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("patent index is not configured")
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaDDL, s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// UpsertRecord inserts or refreshes the row for record.ID. The table must
// have the layout created by EnsureSchema; patent_id is the conflict key.
func (s *PatentIndex) UpsertRecord(ctx context.Context, record patent.Record, pageHash string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("patent index is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	citations, err := json.Marshal(record.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	citedBy, err := json.Marshal(record.CitedBy)
	if err != nil {
		return fmt.Errorf("marshal cited_by: %w", err)
	}
	similar, err := json.Marshal(record.SimilarDocuments)
	if err != nil {
		return fmt.Errorf("marshal similar_documents: %w", err)
	}
	gaps := record.Gaps
	if gaps == nil {
		gaps = []string{}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	patent_id,
	title,
	status,
	assignee,
	inventor,
	url,
	citations,
	cited_by,
	similar_documents,
	extraction_gaps,
	page_hash,
	last_updated
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (patent_id) DO UPDATE SET
	title = EXCLUDED.title,
	status = EXCLUDED.status,
	assignee = EXCLUDED.assignee,
	inventor = EXCLUDED.inventor,
	url = EXCLUDED.url,
	citations = EXCLUDED.citations,
	cited_by = EXCLUDED.cited_by,
	similar_documents = EXCLUDED.similar_documents,
	extraction_gaps = EXCLUDED.extraction_gaps,
	page_hash = EXCLUDED.page_hash,
	last_updated = EXCLUDED.last_updated
`, s.table)

	_, err = s.pool.Exec(ctx, query,
		record.ID,
		record.Title,
		record.Status,
		record.Assignee,
		record.Inventor,
		record.URL,
		citations,
		citedBy,
		similar,
		gaps,
		pageHash,
		record.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert patent %s: %w", record.ID, err)
	}
	return nil
}
