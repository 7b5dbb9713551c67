package vector_index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVectorBackend stores each collection in its own table of a PostgreSQL
// database with the vector extension installed. The pool is owned by the
// caller and is not closed by the backend.
type PGVectorBackend struct {
	db           *pgxpool.Pool
	logger       *slog.Logger
	indexManager *IndexManager
}

func NewPGVectorBackend(db *pgxpool.Pool, logger *slog.Logger) *PGVectorBackend {
	return &PGVectorBackend{
		db:           db,
		logger:       logger,
		indexManager: NewIndexManager(db, logger),
	}
}

func tableName(collection string) string {
	return "kb_" + collection
}

func (b *PGVectorBackend) Location() string {
	cfg := b.db.Config().ConnConfig
	return fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
}

func (b *PGVectorBackend) Open(ctx context.Context, collection string, dimension int) (Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	table := tableName(collection)
	ident := pgx.Identifier{table}.Sanitize()

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         text PRIMARY KEY,
			content    text NOT NULL,
			metadata   jsonb NOT NULL DEFAULT '{}',
			embedding  vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, ident, dimension)
	if _, err := b.db.Exec(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}

	// For vector(n) columns atttypmod holds n.
	var stored int
	err := b.db.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'
	`, ident).Scan(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding column of %s: %w", table, err)
	}
	if stored != dimension {
		return nil, fmt.Errorf("%w: table %s was created with dimension %d, embeddings have %d",
			ErrDimensionMismatch, table, stored, dimension)
	}

	if err := b.indexManager.EnsureIndex(ctx, table); err != nil {
		return nil, err
	}

	b.logger.Info("Opened pgvector index",
		slog.String("table", table),
		slog.Int("dimension", dimension))

	return &pgIndex{
		db:        b.db,
		table:     ident,
		dimension: dimension,
	}, nil
}

func (b *PGVectorBackend) Destroy(ctx context.Context, collection string) error {
	ident := pgx.Identifier{tableName(collection)}.Sanitize()
	if _, err := b.db.Exec(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return fmt.Errorf("failed to drop %s: %w", ident, err)
	}
	return nil
}

type pgIndex struct {
	db        *pgxpool.Pool
	table     string
	dimension int
}

func (i *pgIndex) Upsert(ctx context.Context, records []Record) error {
	for _, r := range records {
		if err := checkDimension(r.Embedding, i.dimension); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}

	tx, err := i.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, i.table)

	batch := &pgx.Batch{}
	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of %s: %w", r.ID, err)
		}
		batch.Queue(query, r.ID, r.Content, string(metadata), pgvector.NewVector(r.Embedding))
	}

	results := tx.SendBatch(ctx, batch)
	for _, r := range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to store %s: %w", r.ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (i *pgIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := checkDimension(vector, i.dimension); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata::text, embedding, embedding <-> $1 AS distance
		FROM %s
		ORDER BY embedding <-> $1
		LIMIT $2`, i.table)
	rows, err := i.db.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m         Match
			metadata  string
			embedding pgvector.Vector
			distance  float64
		)
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &embedding, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if m.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata of %s: %w", m.ID, err)
		}
		m.Embedding = embedding.Slice()
		// <-> is the Euclidean distance; square it to match SquaredL2.
		m.Distance = distance * distance
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return matches, nil
}

func (i *pgIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := i.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+i.table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Close is a no-op: the pool outlives index handles.
func (i *pgIndex) Close() error {
	return nil
}
