package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/rag-explorer/domain"
)

// PostgresIndex stores collections in the rag_collections and rag_chunks
// tables and ranks them with the pgvector cosine distance operator. The schema
// is created by database.EnsureRAGSchema.
type PostgresIndex struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *log.Logger

	locks sync.Map // collection name -> *sync.Mutex
}

func NewPostgresIndex(pool *pgxpool.Pool, dimension int, logger *log.Logger) *PostgresIndex {
	if logger == nil {
		logger = log.Default()
	}
	return &PostgresIndex{pool: pool, dimension: dimension, logger: logger}
}

func (p *PostgresIndex) lock(name string) func() {
	v, _ := p.locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (p *PostgresIndex) Upsert(ctx context.Context, name string, records []Record) (err error) {
	if p.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if err := validate(name, records); err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Vector) != p.dimension {
			return fmt.Errorf("chunk %d has dimension %d, want %d: %w", r.ChunkID, len(r.Vector), p.dimension, domain.ErrInvalidInput)
		}
	}

	unlock := p.lock(name)
	defer unlock()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				p.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", name); err != nil {
		return fmt.Errorf("lock collection %s: %w", name, err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO rag_collections (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
	`, name); err != nil {
		return fmt.Errorf("upsert collection: %w", err)
	}

	if _, err = tx.Exec(ctx, "DELETE FROM rag_chunks WHERE collection = $1", name); err != nil {
		return fmt.Errorf("clear existing chunks: %w", err)
	}

	if len(records) > 0 {
		batch := &pgx.Batch{}
		for _, r := range records {
			meta := r.Metadata
			if meta == nil {
				meta = map[string]string{}
			}
			batch.Queue(`
				INSERT INTO rag_chunks (id, collection, chunk_id, content, metadata, embedding, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, NOW())
			`, uuid.New(), name, r.ChunkID, r.Text, meta, pgvector.NewVector(r.Vector))
		}
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresIndex) Query(ctx context.Context, name string, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if err := validateQuery(name, vector, k); err != nil {
		return nil, err
	}

	// count and ranking must come from the same snapshot
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Printf("rollback error: %v", rbErr)
		}
	}()

	count, err := countChunks(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("query %s: %w", name, domain.ErrCollectionEmpty)
	}

	rows, err := tx.Query(ctx, similarChunksSQL, name, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]domain.RetrievedChunk, 0, min(k, count))
	for rows.Next() {
		var (
			item       domain.RetrievedChunk
			similarity *float64
		)
		if scanErr := rows.Scan(&item.ChunkID, &item.Text, &item.Metadata, &similarity); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		if similarity != nil {
			item.SimilarityScore = score(*similarity)
		}
		item.SourceCollection = name
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	sortResults(results)
	return results, nil
}

// similarChunksSQL ranks on the same clamped, four decimal score the memory
// index uses, so chunks that tie after rounding are cut at k by chunk id.
const similarChunksSQL = `
	WITH scored AS (
		SELECT chunk_id, content, metadata, 1 - (embedding <=> $2::vector) AS similarity
		FROM rag_chunks
		WHERE collection = $1
	)
	SELECT chunk_id, content, metadata, similarity
	FROM scored
	ORDER BY
		CASE
			WHEN similarity = 'NaN'::float8 OR similarity < 0 THEN 0
			ELSE round(LEAST(similarity, 1)::numeric, 4)
		END DESC,
		chunk_id
	LIMIT $3
`

func (p *PostgresIndex) List(ctx context.Context) ([]Collection, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	rows, err := p.pool.Query(ctx, `
		SELECT col.name, COUNT(c.chunk_id)
		FROM rag_collections col
		LEFT JOIN rag_chunks c ON c.collection = col.name
		GROUP BY col.name
		ORDER BY col.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := make([]Collection, 0)
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Chunks); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresIndex) Count(ctx context.Context, name string) (int, error) {
	if p.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	return countChunks(ctx, p.pool, name)
}

func (p *PostgresIndex) Delete(ctx context.Context, name string) error {
	if p.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	unlock := p.lock(name)
	defer unlock()

	tag, err := p.pool.Exec(ctx, "DELETE FROM rag_collections WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", name, domain.ErrCollectionNotFound)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countChunks(ctx context.Context, q querier, name string) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT COUNT(c.chunk_id)
		FROM rag_collections col
		LEFT JOIN rag_chunks c ON c.collection = col.name
		WHERE col.name = $1
		GROUP BY col.name
	`, name).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("count %s: %w", name, domain.ErrCollectionNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

var _ Index = (*PostgresIndex)(nil)
