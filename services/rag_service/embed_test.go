package rag_service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers every text with [len(text), position in batch],
// listing the data entries in reverse order.
func embeddingServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var resp EmbeddingResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(len(req.Input[i])), float32(i)}})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbeddingsURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:9997/v1/embeddings", embeddingsURL("http://127.0.0.1:9997"))
	assert.Equal(t, "http://127.0.0.1:9997/v1/embeddings", embeddingsURL("http://127.0.0.1:9997/"))
	assert.Equal(t, "http://127.0.0.1:9997/v1/embeddings", embeddingsURL("http://127.0.0.1:9997/v1"))
}

func TestOpenAIEmbedder_EmbedDocumentsBatches(t *testing.T) {
	var requests atomic.Int32
	server := embeddingServer(t, &requests)
	defer server.Close()

	embedder := NewOpenAIEmbedder(EmbedderConfig{
		BaseURL:     server.URL,
		Model:       "m3e-large",
		BatchSize:   2,
		Concurrency: 2,
	}, testLogger())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := embedder.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		assert.Equal(t, float32(len(texts[i])), v[0], "vector %d out of order", i)
	}
	assert.Equal(t, int32(3), requests.Load())
}

func TestOpenAIEmbedder_EmbedQuery(t *testing.T) {
	var requests atomic.Int32
	server := embeddingServer(t, &requests)
	defer server.Close()

	embedder := NewOpenAIEmbedder(EmbedderConfig{BaseURL: server.URL + "/v1"}, testLogger())
	v, err := embedder.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, v)
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
		},
		{
			name: "wrong count",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"data":[]}`)
			},
		},
		{
			name: "empty vector",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"data":[{"index":0,"embedding":[]}]}`)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"data":`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			embedder := NewOpenAIEmbedder(EmbedderConfig{BaseURL: server.URL}, testLogger())
			_, err := embedder.EmbedDocuments(context.Background(), []string{"text"})
			assert.ErrorIs(t, err, ErrEmbedding)
		})
	}
}

func TestOpenAIEmbedder_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	embedder := NewOpenAIEmbedder(EmbedderConfig{BaseURL: url}, testLogger())
	_, err := ProbeDimension(context.Background(), embedder)
	assert.ErrorIs(t, err, ErrEmbedding)
}

type staticEmbedder struct {
	vector []float32
	err    error
}

func (s staticEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return s.vector, s.err
}

func (s staticEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("not used")
}

func TestProbeDimension(t *testing.T) {
	dim, err := ProbeDimension(context.Background(), staticEmbedder{vector: make([]float32, 1024)})
	require.NoError(t, err)
	assert.Equal(t, 1024, dim)

	_, err = ProbeDimension(context.Background(), staticEmbedder{vector: []float32{}})
	assert.ErrorIs(t, err, ErrEmbedding)

	_, err = ProbeDimension(context.Background(), staticEmbedder{err: errEmbedderDown})
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.ErrorIs(t, err, errEmbedderDown)
}
