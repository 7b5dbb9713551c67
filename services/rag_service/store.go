package rag_service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serisow/lesocle-kb/kb_type"
	"github.com/serisow/lesocle-kb/services/vector_index"
)

var errStoreClosed = errors.New("vector store is not open")

// VectorStore pairs an Embedder with one collection of a vector index. The
// index handle is replaced by Reset, so Reset holds the write lock while every
// other operation holds the read lock.
type VectorStore struct {
	mu         sync.RWMutex
	index      vector_index.Index
	backend    vector_index.Backend
	embedder   Embedder
	collection string
	dimension  int
	logger     *slog.Logger
}

// NewVectorStore opens (creating if needed) collection in backend. dimension
// is the embedding dimension measured at startup by ProbeDimension.
func NewVectorStore(ctx context.Context, backend vector_index.Backend, embedder Embedder, collection string, dimension int, logger *slog.Logger) (*VectorStore, error) {
	index, err := backend.Open(ctx, collection, dimension)
	if err != nil {
		return nil, newKBError(ErrIndex, fmt.Errorf("failed to open collection %s: %w", collection, err))
	}
	return &VectorStore{
		index:      index,
		backend:    backend,
		embedder:   embedder,
		collection: collection,
		dimension:  dimension,
		logger:     logger,
	}, nil
}

func (s *VectorStore) Dimension() int {
	return s.dimension
}

// Location is where the records are persisted.
func (s *VectorStore) Location() string {
	return s.backend.Location()
}

// Add embeds chunks and stores them under fresh ids. Nothing is stored unless
// every chunk was embedded and written.
func (s *VectorStore) Add(ctx context.Context, chunks []kb_type.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return newKBError(ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return newKBError(ErrEmbedding, fmt.Errorf("expected %d embeddings, received %d", len(chunks), len(vectors)))
	}

	records := make([]vector_index.Record, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != s.dimension {
			return newKBError(ErrEmbedding, fmt.Errorf("chunk %d: embedding has dimension %d, want %d", i, len(vectors[i]), s.dimension))
		}
		records[i] = vector_index.Record{
			ID:        uuid.NewString(),
			Content:   c.Content,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return newKBError(ErrIndex, errStoreClosed)
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		return newKBError(ErrIndex, err)
	}

	s.logger.Info("Chunks added to vector store",
		slog.String("collection", s.collection),
		slog.Int("chunks", len(records)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *VectorStore) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, newKBError(ErrEmbedding, err)
	}
	if len(vector) != s.dimension {
		return nil, newKBError(ErrEmbedding, fmt.Errorf("query embedding has dimension %d, want %d", len(vector), s.dimension))
	}
	return vector, nil
}

func (s *VectorStore) nearest(ctx context.Context, vector []float32, k int) ([]vector_index.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, newKBError(ErrIndex, errStoreClosed)
	}
	matches, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return nil, newKBError(ErrIndex, err)
	}
	return matches, nil
}

// SearchWithScore returns the k records nearest to query, closest first, with
// their raw distance.
func (s *VectorStore) SearchWithScore(ctx context.Context, query string, k int) ([]kb_type.ScoredChunk, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.nearest(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	results := make([]kb_type.ScoredChunk, len(matches))
	for i, m := range matches {
		results[i] = kb_type.ScoredChunk{
			Chunk:    kb_type.Chunk{Content: m.Content, Metadata: m.Metadata},
			Distance: m.Distance,
		}
	}
	return results, nil
}

// SearchDiverse fetches the fetchK nearest records and keeps k of them by
// maximal marginal relevance. weight 1 means pure relevance, 0 pure diversity.
func (s *VectorStore) SearchDiverse(ctx context.Context, query string, k, fetchK int, weight float64) ([]kb_type.Chunk, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.nearest(ctx, vector, max(k, fetchK))
	if err != nil {
		return nil, err
	}

	candidates := make([][]float32, len(matches))
	for i, m := range matches {
		candidates[i] = m.Embedding
	}

	picked := maximalMarginalRelevance(vector, candidates, k, weight)
	results := make([]kb_type.Chunk, len(picked))
	for i, idx := range picked {
		results[i] = kb_type.Chunk{Content: matches[idx].Content, Metadata: matches[idx].Metadata}
	}
	return results, nil
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0, newKBError(ErrIndex, errStoreClosed)
	}
	count, err := s.index.Count(ctx)
	if err != nil {
		return 0, newKBError(ErrIndex, err)
	}
	return count, nil
}

// Reset drops every record and the persisted collection, then reopens an
// empty collection under the same name. If reopening fails the store stays
// closed and every later call fails until a Reset succeeds.
func (s *VectorStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Warn("Failed to close index before reset", slog.String("error", err.Error()))
		}
		s.index = nil
	}

	if err := s.backend.Destroy(ctx, s.collection); err != nil {
		return newKBError(ErrLifecycle, fmt.Errorf("failed to destroy collection %s: %w", s.collection, err))
	}

	index, err := s.backend.Open(ctx, s.collection, s.dimension)
	if err != nil {
		return newKBError(ErrLifecycle, fmt.Errorf("failed to recreate collection %s: %w", s.collection, err))
	}
	s.index = index

	s.logger.Info("Vector store reset",
		slog.String("collection", s.collection),
		slog.String("location", s.backend.Location()))
	return nil
}

func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
