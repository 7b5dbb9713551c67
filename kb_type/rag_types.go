package kb_type

import (
	"encoding/json"
	"fmt"
)

// Block is one page- or section-granular piece of text extracted from an
// uploaded document, before chunking.
type Block struct {
	Content  string
	Metadata map[string]any
}

// Chunk is a bounded-length text segment stored in the vector index.
type Chunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// ScoredChunk is a chunk returned by a similarity search together with the
// raw distance reported by the index.
type ScoredChunk struct {
	Chunk
	Distance float64
}

// SourceExcerpt is a cited passage in a query response.
type SourceExcerpt struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ChatTurn is a prior (question, answer) exchange replayed by the caller.
// On the wire it is a two-element array: ["question", "answer"].
type ChatTurn struct {
	Question string
	Answer   string
}

func (t ChatTurn) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Question, t.Answer})
}

func (t *ChatTurn) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("chat turn must be an array of strings: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("chat turn must have exactly 2 elements, got %d", len(pair))
	}
	t.Question, t.Answer = pair[0], pair[1]
	return nil
}

type QueryRequest struct {
	Query       string     `json:"query"`
	ChatHistory []ChatTurn `json:"chat_history"`
}

type QueryResponse struct {
	Answer  string          `json:"answer"`
	Sources []SourceExcerpt `json:"sources"`
}

// Status describes the knowledge base as reported by GET /knowledge_base/status.
type Status struct {
	DocumentCount    int      `json:"document_count"`
	UploadedFiles    []string `json:"uploaded_files"`
	PersistDirectory string   `json:"persist_directory"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// IngestResult summarises one processed upload. It is logged and printed by
// the CLI; the HTTP surface only returns a message.
type IngestResult struct {
	Filename   string  `json:"filename"`
	StoredPath string  `json:"stored_path"`
	BlockCount int     `json:"block_count"`
	ChunkCount int     `json:"chunk_count"`
	WordCount  int     `json:"word_count"`
	Extraction float64 `json:"extraction_time"`
	Embedding  float64 `json:"embedding_time"`
}
