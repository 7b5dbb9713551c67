package vector_index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteFileName = "index.sqlite3"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		name      TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS embeddings (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		collection TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL,
		embedding  BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_collection ON embeddings(collection)`,
}

// SQLiteBackend keeps every collection in a single SQLite file inside dir.
// Search is exact: all vectors of the collection are scanned.
type SQLiteBackend struct {
	dir    string
	logger *slog.Logger
}

func NewSQLiteBackend(dir string, logger *slog.Logger) *SQLiteBackend {
	return &SQLiteBackend{
		dir:    dir,
		logger: logger,
	}
}

func (b *SQLiteBackend) Location() string {
	return b.dir
}

func (b *SQLiteBackend) Open(ctx context.Context, collection string, dimension int) (Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating persist directory: %w", err)
	}

	dbPath := filepath.Join(b.dir, sqliteFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO collections (name, dimension) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		collection, dimension); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering collection: %w", err)
	}

	var stored int
	if err := db.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, collection).Scan(&stored); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading collection: %w", err)
	}
	if stored != dimension {
		db.Close()
		return nil, fmt.Errorf("%w: collection %q was created with dimension %d, embeddings have %d",
			ErrDimensionMismatch, collection, stored, dimension)
	}

	b.logger.Info("Opened SQLite vector index",
		slog.String("path", dbPath),
		slog.String("collection", collection),
		slog.Int("dimension", dimension))

	return &sqliteIndex{
		db:         db,
		collection: collection,
		dimension:  dimension,
	}, nil
}

// Destroy removes the whole persist directory, as the collection is its only
// tenant.
func (b *SQLiteBackend) Destroy(_ context.Context, _ string) error {
	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("removing persist directory: %w", err)
	}
	return nil
}

type sqliteIndex struct {
	db         *sql.DB
	collection string
	dimension  int
}

func (i *sqliteIndex) Upsert(ctx context.Context, records []Record) error {
	for _, r := range records {
		if err := checkDimension(r.Embedding, i.dimension); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (id, collection, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, i.collection, r.Content, string(metadata), encodeVector(r.Embedding)); err != nil {
			return fmt.Errorf("inserting %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (i *sqliteIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := checkDimension(vector, i.dimension); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := i.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding FROM embeddings WHERE collection = ? ORDER BY seq`,
		i.collection)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m        Match
			metadata string
			blob     []byte
		)
		if err := rows.Scan(&m.ID, &m.Content, &metadata, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if m.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", m.ID, err)
		}
		if m.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding of %s: %w", m.ID, err)
		}
		m.Distance = SquaredL2(vector, m.Embedding)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading embeddings: %w", err)
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (i *sqliteIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE collection = ?`, i.collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return count, nil
}

func (i *sqliteIndex) Close() error {
	return i.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errors.New("blob length is not a multiple of 4")
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
