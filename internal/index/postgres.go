package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// validTableName restricts collection table names to plain identifiers,
// because the name is interpolated into DDL and queries.
var validTableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Postgres is a pgvector-backed Collection. One instance owns one table;
// the catalog and content collections use two tables in the same database.
//
// Safe for concurrent use; pgxpool handles connection sharing.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// NewPostgres creates a collection over the given table. The pool is owned
// by the caller. dim must match the embedder's output dimension.
func NewPostgres(pool *pgxpool.Pool, table string, dim int) (*Postgres, error) {
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid collection table name %q", table)
	}
	if dim < 1 {
		return nil, fmt.Errorf("invalid vector dimension %d", dim)
	}
	return &Postgres{pool: pool, table: table, dim: dim}, nil
}

// Migrate creates the vector extension and the collection table if they do
// not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
  seq        BIGSERIAL,
  id         TEXT PRIMARY KEY,
  content    TEXT NOT NULL,
  metadata   JSONB NOT NULL DEFAULT '{}',
  embedding  vector(%[2]d) NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS %[1]s_metadata_gin ON %[1]s USING GIN (metadata);
`, p.table, p.dim)
	if _, err := p.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("migrating collection %s: %w", p.table, err)
	}
	return nil
}

// Add upserts the batch inside one transaction.
func (p *Postgres) Add(ctx context.Context, records []Record) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	q := fmt.Sprintf(`
INSERT INTO %s (id, content, metadata, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
  content   = EXCLUDED.content,
  metadata  = EXCLUDED.metadata,
  embedding = EXCLUDED.embedding`, p.table)

	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %q: %w", rec.ID, err)
		}
		vec := pgvector.NewVector(rec.Embedding)
		if _, err := tx.Exec(ctx, q, rec.ID, rec.Content, meta, vec); err != nil {
			return fmt.Errorf("upsert %q: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the record with the given ID.
func (p *Postgres) Get(ctx context.Context, id string) (Record, bool, error) {
	q := fmt.Sprintf(`SELECT id, content, metadata, embedding FROM %s WHERE id = $1`, p.table)

	var rec Record
	var meta []byte
	var vec pgvector.Vector
	err := p.pool.QueryRow(ctx, q, id).Scan(&rec.ID, &rec.Content, &meta, &vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("get %q: %w", id, err)
	}
	if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
		return Record{}, false, fmt.Errorf("%w: unreadable metadata for %q: %w", ErrCorruptIndex, id, err)
	}
	rec.Embedding = vec.Slice()
	return rec, true, nil
}

// Search runs a cosine nearest-neighbor query, optionally restricted by a
// JSONB containment filter. Ties are broken by insertion order (seq).
func (p *Postgres) Search(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(embedding)
	where := ""
	args := []any{vec, k}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		where = "WHERE metadata @> $3"
		args = append(args, filterJSON)
	}

	q := fmt.Sprintf(`
SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM %s
%s
ORDER BY similarity DESC, seq ASC
LIMIT $2`, p.table, where)

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", p.table, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var meta []byte
		var sim float64
		if err := rows.Scan(&hit.ID, &hit.Content, &meta, &sim); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
			return nil, fmt.Errorf("%w: unreadable metadata for %q: %w", ErrCorruptIndex, hit.ID, err)
		}
		hit.Similarity = float32(sim)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Count returns the number of stored records.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT count(*) FROM %s`, p.table)
	if err := p.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", p.table, err)
	}
	return n, nil
}

// IDs returns all record IDs in insertion order.
func (p *Postgres) IDs(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT id FROM %s ORDER BY seq`, p.table)
	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes all records from the collection.
func (p *Postgres) Clear(ctx context.Context) error {
	q := fmt.Sprintf(`DELETE FROM %s`, p.table)
	if _, err := p.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("clear %s: %w", p.table, err)
	}
	return nil
}
