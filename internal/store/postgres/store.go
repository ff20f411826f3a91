// Package postgres provides Postgres-backed persistence for candidate
// references and extracted job postings.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/crawler"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/extractor"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store persists candidates and postings. The candidate URL is the identity
// key across scans; the posting slug is the identity key across extractions.
type Store struct {
	pool dbConn
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
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
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool dbConn) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertCandidateSQL = `
INSERT INTO candidates (source_id, title, url, discovered_at, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO NOTHING`

// UpsertCandidate stores one candidate reference. A URL seen in a previous
// scan is left untouched, preserving whatever triage status it has reached.
func (s *Store) UpsertCandidate(ctx context.Context, c crawler.CandidateReference) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store is not configured")
	}
	if c.URL == "" {
		return fmt.Errorf("candidate url is required")
	}
	if _, err := s.pool.Exec(ctx, upsertCandidateSQL,
		c.SourceID, c.Title, c.URL, c.DiscoveredAt, string(c.Status)); err != nil {
		return fmt.Errorf("upsert candidate: %w", err)
	}
	return nil
}

// UpsertCandidates stores a batch of candidates and reports how many were new
// rows. It stops at the first failure.
func (s *Store) UpsertCandidates(ctx context.Context, cs []crawler.CandidateReference) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("store is not configured")
	}
	stored := 0
	for _, c := range cs {
		if c.URL == "" {
			return stored, fmt.Errorf("candidate url is required")
		}
		tag, err := s.pool.Exec(ctx, upsertCandidateSQL,
			c.SourceID, c.Title, c.URL, c.DiscoveredAt, string(c.Status))
		if err != nil {
			return stored, fmt.Errorf("upsert candidate %s: %w", c.URL, err)
		}
		stored += int(tag.RowsAffected())
	}
	return stored, nil
}

// AdvanceCandidate moves a candidate to a new triage status.
func (s *Store) AdvanceCandidate(ctx context.Context, url string, status crawler.TriageStatus) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store is not configured")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET status = $1 WHERE url = $2`,
		string(status), url)
	if err != nil {
		return fmt.Errorf("advance candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("candidate %s not found", url)
	}
	return nil
}

// ListCandidates returns up to limit candidates in the given status, oldest
// first, so untriaged discoveries are worked in arrival order.
func (s *Store) ListCandidates(ctx context.Context, status crawler.TriageStatus, limit int) ([]crawler.CandidateReference, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
SELECT source_id, title, url, discovered_at, status
FROM candidates
WHERE status = $1
ORDER BY discovered_at ASC
LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []crawler.CandidateReference
	for rows.Next() {
		var c crawler.CandidateReference
		var st string
		if err := rows.Scan(&c.SourceID, &c.Title, &c.URL, &c.DiscoveredAt, &st); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Status = crawler.TriageStatus(st)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return out, nil
}

// UpsertJob stores an extracted posting under its slug. Re-extracting the
// same notification replaces the stored payload instead of duplicating it.
func (s *Store) UpsertJob(ctx context.Context, slug string, posting extractor.JobPosting) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store is not configured")
	}
	if slug == "" {
		return fmt.Errorf("job slug is required")
	}
	payload, err := json.Marshal(posting)
	if err != nil {
		return fmt.Errorf("marshal posting: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
INSERT INTO jobs (slug, title, organization, category, payload, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (slug) DO UPDATE SET
	title = EXCLUDED.title,
	organization = EXCLUDED.organization,
	category = EXCLUDED.category,
	payload = EXCLUDED.payload,
	updated_at = now()`,
		slug, posting.Title, posting.Organization, posting.Category, payload); err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}
