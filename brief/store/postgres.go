package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theimaginaryfoundation/casebrief/brief"
)

// pgxPool is the subset of *pgxpool.Pool the cache uses; pgxmock pools satisfy it too.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

const (
	createCaseMetaSQL = `CREATE TABLE IF NOT EXISTS case_meta (docid TEXT PRIMARY KEY, query TEXT, modified_query TEXT, summary TEXT)`
	selectCaseMetaSQL = `SELECT docid, COALESCE(query, ''), COALESCE(modified_query, ''), COALESCE(summary, '') FROM case_meta WHERE docid = $1`
	upsertSummarySQL  = `INSERT INTO case_meta (docid, summary) VALUES ($1, $2) ON CONFLICT (docid) DO UPDATE SET summary = EXCLUDED.summary`
	upsertQuerySQL    = `INSERT INTO case_meta (docid, query, modified_query) VALUES ($1, $2, $3) ON CONFLICT (docid) DO UPDATE SET query = EXCLUDED.query, modified_query = EXCLUDED.modified_query`
)

// Postgres stores records in the case_meta table.
type Postgres struct {
	pool pgxPool
}

// NewPostgres opens a pool for dsn, checks it with a ping and makes sure case_meta exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.MaxConns = 4
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	p := NewPostgresFromPool(pool)
	if err := p.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgresFromPool(pool pgxPool) *Postgres {
	return &Postgres{pool: pool}
}

// Init creates case_meta when it does not exist.
func (p *Postgres) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createCaseMetaSQL); err != nil {
		return fmt.Errorf("create case_meta: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, docID string) (brief.Record, bool, error) {
	var rec brief.Record
	err := p.pool.QueryRow(ctx, selectCaseMetaSQL, docID).Scan(&rec.DocID, &rec.Query, &rec.ModifiedQuery, &rec.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return brief.Record{}, false, nil
	}
	if err != nil {
		return brief.Record{}, false, fmt.Errorf("select case_meta %s: %w", docID, err)
	}
	return rec, true, nil
}

func (p *Postgres) PutSummary(ctx context.Context, docID, summary string) error {
	if _, err := p.pool.Exec(ctx, upsertSummarySQL, docID, summary); err != nil {
		return fmt.Errorf("upsert summary %s: %w", docID, err)
	}
	return nil
}

func (p *Postgres) PutQuery(ctx context.Context, docID, query, modifiedQuery string) error {
	if _, err := p.pool.Exec(ctx, upsertQuerySQL, docID, query, modifiedQuery); err != nil {
		return fmt.Errorf("upsert query %s: %w", docID, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
