package rag_service

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
	"github.com/serisow/lesocle-kb/kb_type"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".docx": docxMimeType,
}

// SupportedExtension reports whether filename carries one of the extensions
// the loader can parse.
func SupportedExtension(filename string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// DocumentLoader turns a stored upload into text blocks. Nothing is cached;
// every call re-reads and re-parses the file.
type DocumentLoader struct {
	logger *slog.Logger
}

func NewDocumentLoader(logger *slog.Logger) *DocumentLoader {
	return &DocumentLoader{
		logger: logger,
	}
}

// Load extracts the text blocks of the file at path: one block per PDF page,
// one block for a text or Word document.
func (l *DocumentLoader) Load(path string) ([]kb_type.Block, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := mimeTypes[ext]; !ok {
		return nil, &KBError{Kind: ErrUnsupportedFormat, Err: fmt.Errorf("%q", ext)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newKBError(ErrExtraction, fmt.Errorf("failed to read %s: %w", path, err))
	}

	switch ext {
	case ".pdf":
		return l.loadPDF(path, data)
	case ".docx":
		return l.loadWord(path, data)
	default:
		return l.loadText(path, data)
	}
}

func (l *DocumentLoader) loadText(path string, data []byte) ([]kb_type.Block, error) {
	encoding := "utf-8"
	if !utf8.Valid(data) {
		// Regional fallback: legacy Windows text files are usually GBK.
		decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err == nil && bytes.ContainsRune(decoded, utf8.RuneError) {
			// The decoder substitutes U+FFFD for byte sequences GBK cannot map.
			err = fmt.Errorf("invalid gbk byte sequence")
		}
		if err != nil {
			l.logger.Error("Failed to decode text file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil, newKBError(ErrDecodeFailure, fmt.Errorf("%s is neither utf-8 nor gbk: %w", filepath.Base(path), err))
		}
		data = decoded
		encoding = "gbk"
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	l.logger.Debug("Loaded text file",
		slog.String("path", path),
		slog.String("encoding", encoding),
		slog.Int("text_length", len(text)))

	return []kb_type.Block{{
		Content:  text,
		Metadata: map[string]any{"source": path},
	}}, nil
}

func (l *DocumentLoader) loadPDF(path string, data []byte) (blocks []kb_type.Block, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			blocks = nil
			err = newKBError(ErrExtraction, fmt.Errorf("failed to parse PDF %s: %v", filepath.Base(path), r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		l.logger.Error("Failed to create PDF reader",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return nil, newKBError(ErrExtraction, fmt.Errorf("failed to create PDF reader: %w", err))
	}

	totalPage := reader.NumPage()
	l.logger.Debug("Starting PDF text extraction",
		slog.Int("total_pages", totalPage))

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			l.logger.Warn("Null page encountered",
				slog.Int("page_number", pageIndex))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Error("Failed to extract text from page",
				slog.Int("page_number", pageIndex),
				slog.String("error", err.Error()))
			return nil, newKBError(ErrExtraction, fmt.Errorf("failed to extract text from page %d: %w", pageIndex, err))
		}

		blocks = append(blocks, kb_type.Block{
			Content: text,
			Metadata: map[string]any{
				"source": path,
				"page":   pageIndex - 1,
			},
		})
	}

	if len(blocks) == 0 {
		return nil, newKBError(ErrExtraction, fmt.Errorf("no pages extracted from PDF %s", filepath.Base(path)))
	}

	l.logger.Info("Successfully extracted text from PDF",
		slog.Int("total_pages", totalPage),
		slog.Int("block_count", len(blocks)))

	return blocks, nil
}

func (l *DocumentLoader) loadWord(path string, data []byte) ([]kb_type.Block, error) {
	l.logger.Debug("Starting Word document text extraction",
		slog.Int("data_size", len(data)))

	result, err := docconv.Convert(bytes.NewReader(data), docxMimeType, false)
	if err != nil {
		l.logger.Error("Failed to convert Word document",
			slog.String("error", err.Error()),
			slog.Int("data_size", len(data)))
		return nil, newKBError(ErrExtraction, fmt.Errorf("failed to convert Word document: %w", err))
	}

	l.logger.Info("Successfully extracted text from Word document",
		slog.Int("text_length", len(result.Body)))

	return []kb_type.Block{{
		Content:  result.Body,
		Metadata: map[string]any{"source": path},
	}}, nil
}
