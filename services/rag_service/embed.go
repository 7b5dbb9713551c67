package rag_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type EmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type EmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Object string `json:"object"`
}

type EmbedderConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	BatchSize   int
	Concurrency int
	Timeout     time.Duration
}

// OpenAIEmbedder talks to any server exposing the OpenAI /v1/embeddings API
// (OpenAI, Xinference, Ollama, vLLM).
type OpenAIEmbedder struct {
	url         string
	apiKey      string
	model       string
	batchSize   int
	concurrency int
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewOpenAIEmbedder(cfg EmbedderConfig, logger *slog.Logger) *OpenAIEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OpenAIEmbedder{
		url:         embeddingsURL(cfg.BaseURL),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

func embeddingsURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/embeddings"
	}
	return base + "/v1/embeddings"
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts in batches, running up to the configured number
// of batches at once. Either every text gets a vector or an error is returned.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		start := start // per-iteration copy; go.mod targets go 1.21 loop semantics
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			batch, err := e.embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(EmbeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, newKBError(ErrEmbedding, fmt.Errorf("failed to marshal embedding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, newKBError(ErrEmbedding, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, newKBError(ErrEmbedding, fmt.Errorf("failed to send HTTP request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newKBError(ErrEmbedding, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var embeddingResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, newKBError(ErrEmbedding, fmt.Errorf("failed to decode embedding response: %w", err))
	}
	if len(embeddingResp.Data) != len(texts) {
		return nil, newKBError(ErrEmbedding, fmt.Errorf("expected %d embeddings, received %d", len(texts), len(embeddingResp.Data)))
	}

	sort.SliceStable(embeddingResp.Data, func(i, j int) bool {
		return embeddingResp.Data[i].Index < embeddingResp.Data[j].Index
	})
	vectors := make([][]float32, len(texts))
	for i, d := range embeddingResp.Data {
		if len(d.Embedding) == 0 {
			return nil, newKBError(ErrEmbedding, fmt.Errorf("empty embedding at position %d", i))
		}
		vectors[i] = d.Embedding
	}

	e.logger.Debug("Embedded batch",
		slog.Int("texts", len(texts)),
		slog.Int("total_tokens", embeddingResp.Usage.TotalTokens),
		slog.Duration("elapsed", time.Since(start)))

	return vectors, nil
}

// ProbeDimension embeds a fixed sentence and returns the vector dimension.
// It is called once at startup; an error means the service must not start.
func ProbeDimension(ctx context.Context, embedder Embedder) (int, error) {
	vector, err := embedder.EmbedQuery(ctx, "This is a test query")
	if err != nil {
		return 0, newKBError(ErrEmbedding, fmt.Errorf("embedding service probe failed: %w", err))
	}
	if len(vector) == 0 {
		return 0, newKBError(ErrEmbedding, fmt.Errorf("embedding service probe returned an empty vector"))
	}
	return len(vector), nil
}
