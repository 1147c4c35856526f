// Package pgstore keeps summaries and details as JSONB documents in Postgres,
// with UNIQUE columns for the natural and foreign keys.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"post-crawler/internal/post_crawler/model"
	"post-crawler/internal/post_crawler/store"
)

const (
	maxPageLimit   = 15
	uniqueViolated = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
  pk    BIGSERIAL PRIMARY KEY,
  id    TEXT UNIQUE,
  url   TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL DEFAULT '',
  doc   JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_title ON posts(title);
CREATE TABLE IF NOT EXISTS posts_details (
  pk                 BIGSERIAL PRIMARY KEY,
  post_id            TEXT NOT NULL UNIQUE,
  post_collection_id TEXT NOT NULL UNIQUE REFERENCES posts(id),
  url                TEXT NOT NULL,
  doc                JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_details_url ON posts_details(url);
`

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type Store struct {
	pool pgxIface
}

var _ store.Store = (*Store)(nil)

type Config struct {
	DSN      string
	MaxConns int32
}

// New connects a pool and creates the schema if needed.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool (primarily for testing).
func NewWithPool(pool pgxIface) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) FindSummary(ctx context.Context, q store.SummaryQuery) (model.Summary, error) {
	if q.Empty() {
		return model.Summary{}, store.ErrNotFound
	}
	var (
		where string
		args  []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		if where != "" {
			where += " AND "
		}
		where += col + " = $" + strconv.Itoa(len(args))
	}
	add("id", q.ID)
	add("title", q.Title)
	add("url", q.URL)

	row := s.pool.QueryRow(ctx, `SELECT pk, doc FROM posts WHERE `+where+` ORDER BY pk LIMIT 1`, args...)
	return scanSummary(row)
}

func (s *Store) InsertSummary(ctx context.Context, sum model.Summary) (model.Summary, error) {
	sum.Key = ""
	raw, err := json.Marshal(sum)
	if err != nil {
		return model.Summary{}, fmt.Errorf("marshal summary: %w", err)
	}
	var pk int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO posts (id, url, title, doc) VALUES (NULLIF($1, ''), $2, $3, $4) RETURNING pk`,
		sum.ID, sum.URL, sum.Title, raw,
	).Scan(&pk)
	if err != nil {
		return model.Summary{}, translate(err)
	}
	sum.Key = strconv.FormatInt(pk, 10)
	return sum, nil
}

func (s *Store) ListSummaries(ctx context.Context, page, limit int) ([]model.Summary, int64, error) {
	skip, lim := store.Page(page, limit, maxPageLimit)
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	rows, err := s.pool.Query(ctx, `SELECT pk, doc FROM posts ORDER BY pk LIMIT $1 OFFSET $2`, lim, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	out, err := collectSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) SummaryRefs(ctx context.Context) ([]model.SummaryRef, error) {
	rows, err := s.pool.Query(ctx, `SELECT coalesce(id, ''), url FROM posts ORDER BY pk`)
	if err != nil {
		return nil, fmt.Errorf("list post refs: %w", err)
	}
	defer rows.Close()
	var out []model.SummaryRef
	for rows.Next() {
		var ref model.SummaryRef
		if err := rows.Scan(&ref.ID, &ref.URL); err != nil {
			return nil, fmt.Errorf("scan post ref: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *Store) SummariesMissingID(ctx context.Context) ([]model.Summary, error) {
	rows, err := s.pool.Query(ctx, `SELECT pk, doc FROM posts WHERE id IS NULL ORDER BY pk`)
	if err != nil {
		return nil, fmt.Errorf("list posts without id: %w", err)
	}
	return collectSummaries(rows)
}

func (s *Store) SetSummaryID(ctx context.Context, key, id string) error {
	pk, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return fmt.Errorf("parse post key %q: %w", key, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE posts SET id = $1, doc = jsonb_set(doc, '{id}', to_jsonb($1::text)) WHERE pk = $2 AND id IS NULL`,
		id, pk,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindDetailByURL(ctx context.Context, url string) (model.Detail, error) {
	return s.findDetail(ctx, "url", url)
}

func (s *Store) FindDetailByCollectionID(ctx context.Context, postCollectionID string) (model.Detail, error) {
	return s.findDetail(ctx, "post_collection_id", postCollectionID)
}

func (s *Store) FindDetailByPostID(ctx context.Context, postID string) (model.Detail, error) {
	return s.findDetail(ctx, "post_id", postID)
}

func (s *Store) findDetail(ctx context.Context, col, val string) (model.Detail, error) {
	var (
		pk  int64
		raw []byte
		out model.Detail
	)
	err := s.pool.QueryRow(ctx, `SELECT pk, doc FROM posts_details WHERE `+col+` = $1 ORDER BY pk LIMIT 1`, val).Scan(&pk, &raw)
	if err != nil {
		return model.Detail{}, translate(err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.Detail{}, fmt.Errorf("decode detail: %w", err)
	}
	out.Key = strconv.FormatInt(pk, 10)
	return out, nil
}

func (s *Store) InsertDetail(ctx context.Context, d model.Detail) (model.Detail, error) {
	d.Key = ""
	raw, err := json.Marshal(d)
	if err != nil {
		return model.Detail{}, fmt.Errorf("marshal detail: %w", err)
	}
	var pk int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO posts_details (post_id, post_collection_id, url, doc) VALUES ($1, $2, $3, $4) RETURNING pk`,
		d.PostID, d.PostCollectionID, d.URL, raw,
	).Scan(&pk)
	if err != nil {
		return model.Detail{}, translate(err)
	}
	d.Key = strconv.FormatInt(pk, 10)
	return d, nil
}

func scanSummary(row pgx.Row) (model.Summary, error) {
	var (
		pk  int64
		raw []byte
		out model.Summary
	)
	if err := row.Scan(&pk, &raw); err != nil {
		return model.Summary{}, translate(err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	out.Key = strconv.FormatInt(pk, 10)
	return out, nil
}

func collectSummaries(rows pgx.Rows) ([]model.Summary, error) {
	defer rows.Close()
	out := []model.Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolated {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
