package vector_index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IndexManager handles the approximate-nearest-neighbour index on a
// collection table.
type IndexManager struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewIndexManager(db *pgxpool.Pool, logger *slog.Logger) *IndexManager {
	return &IndexManager{
		db:     db,
		logger: logger,
	}
}

func indexName(table string) string {
	return "idx_" + table + "_embedding"
}

// EnsureIndex creates the HNSW index on the embedding column if it is missing.
// HNSW needs no training data, so it can be built on an empty table.
func (im *IndexManager) EnsureIndex(ctx context.Context, table string) error {
	var exists bool
	err := im.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_class WHERE relname = $1)`, indexName(table)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up index: %w", err)
	}
	if exists {
		return nil
	}

	createIndexSQL := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding vector_l2_ops)
	`, pgx.Identifier{indexName(table)}.Sanitize(), pgx.Identifier{table}.Sanitize())

	if _, err := im.db.Exec(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	im.logger.Info("Vector index created",
		slog.String("table", table),
		slog.String("index", indexName(table)))

	return nil
}
