package rag_service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/serisow/lesocle-kb/kb_type"
)

// UploadStore keeps the raw uploaded files.
type UploadStore interface {
	Save(name string, r io.Reader) (string, error)
	List() ([]string, error)
	Wipe() error
}

// Processor is the ingestion pipeline: store the raw upload, extract its
// text, chunk it and add the chunks to the vector store.
type Processor struct {
	files    UploadStore
	loader   *DocumentLoader
	splitter *TextSplitter
	store    *VectorStore
	logger   *slog.Logger
}

func NewProcessor(files UploadStore, store *VectorStore, splitter *TextSplitter, logger *slog.Logger) *Processor {
	return &Processor{
		files:    files,
		loader:   NewDocumentLoader(logger),
		splitter: splitter,
		store:    store,
		logger:   logger,
	}
}

// Ingest processes one upload named filename. The extension is checked
// before anything is written. The stored raw file is kept even when a later
// step fails.
func (p *Processor) Ingest(ctx context.Context, filename string, content io.Reader) (*kb_type.IngestResult, error) {
	name := filepath.Base(filename)
	if !SupportedExtension(name) {
		return nil, &KBError{Kind: ErrUnsupportedFormat, Err: fmt.Errorf("%q", name)}
	}

	path, err := p.files.Save(name, content)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	result := &kb_type.IngestResult{
		Filename:   name,
		StoredPath: path,
	}

	extractStart := time.Now()
	blocks, err := p.loader.Load(path)
	if err != nil {
		p.logger.Error("Text extraction failed",
			slog.String("filename", name),
			slog.String("error", err.Error()))
		return nil, err
	}
	result.Extraction = time.Since(extractStart).Seconds()
	result.BlockCount = len(blocks)
	for _, b := range blocks {
		result.WordCount += len(strings.Fields(b.Content))
	}

	chunks := p.splitter.SplitBlocks(blocks)
	result.ChunkCount = len(chunks)
	if len(chunks) == 0 {
		p.logger.Warn("Document has no text to index", slog.String("filename", name))
	}

	embedStart := time.Now()
	if err := p.store.Add(ctx, chunks); err != nil {
		p.logger.Error("Failed to index document",
			slog.String("filename", name),
			slog.Int("chunks", len(chunks)),
			slog.String("error", err.Error()))
		return nil, err
	}
	result.Embedding = time.Since(embedStart).Seconds()

	p.logger.Info("Document processed successfully",
		slog.String("filename", name),
		slog.Int("blocks", result.BlockCount),
		slog.Int("chunks", result.ChunkCount),
		slog.Int("words", result.WordCount),
		slog.Float64("extraction_time", result.Extraction),
		slog.Float64("embedding_time", result.Embedding))

	return result, nil
}

// IngestFile ingests a file from the local filesystem, copying it into the
// upload store like an HTTP upload.
func (p *Processor) IngestFile(ctx context.Context, path string) (*kb_type.IngestResult, error) {
	if !SupportedExtension(path) {
		return nil, &KBError{Kind: ErrUnsupportedFormat, Err: fmt.Errorf("%q", filepath.Base(path))}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return p.Ingest(ctx, path, f)
}
