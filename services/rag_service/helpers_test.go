package rag_service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/serisow/lesocle-kb/services/file_store"
	"github.com/serisow/lesocle-kb/services/vector_index"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keywordVocabulary gives the keyword embedder one dimension per word.
var keywordVocabulary = []string{
	"alice", "acme", "work", "bob", "paris", "live", "cat", "dog", "python", "golang",
}

// keywordEmbedder maps text to a unit vector with a 1 for every vocabulary
// word the lowercased text contains, so texts sharing words are close.
type keywordEmbedder struct {
	mu        sync.Mutex
	err       error
	docCalls  int
	queryCall int
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(keywordVocabulary))
	var norm float64
	for i, w := range keywordVocabulary {
		if strings.Contains(lower, w) {
			v[i] = 1
			norm++
		}
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e *keywordEmbedder) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queryCall++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docCalls++
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = e.vector(t)
	}
	return vectors, nil
}

var errEmbedderDown = errors.New("connection refused")

func newTestStore(t *testing.T, embedder Embedder) *VectorStore {
	t.Helper()
	backend := vector_index.NewSQLiteBackend(filepath.Join(t.TempDir(), "knowledge_base"), testLogger())
	store, err := NewVectorStore(context.Background(), backend, embedder, "knowledge_base", len(keywordVocabulary), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestUploads(t *testing.T) *file_store.Store {
	t.Helper()
	files, err := file_store.New(filepath.Join(t.TempDir(), "uploads"), testLogger())
	require.NoError(t, err)
	return files
}
