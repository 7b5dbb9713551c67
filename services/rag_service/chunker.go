package rag_service

import (
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/serisow/lesocle-kb/kb_type"
)

const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 100
)

// DefaultSeparators are tried in order: paragraphs, lines, CJK then Latin
// sentence endings, words, and finally single characters.
var DefaultSeparators = []string{"\n\n", "\n", "。", "！", "？", ".", "!", "?", " ", ""}

// TextSplitter cuts text into chunks of at most chunkSize characters, with
// consecutive chunks sharing up to chunkOverlap characters. Lengths are
// counted in runes.
type TextSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

type SplitterOption func(*TextSplitter)

func WithChunkSize(size int) SplitterOption {
	return func(s *TextSplitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

func WithChunkOverlap(overlap int) SplitterOption {
	return func(s *TextSplitter) {
		if overlap >= 0 {
			s.chunkOverlap = overlap
		}
	}
}

func WithSeparators(separators []string) SplitterOption {
	return func(s *TextSplitter) {
		if len(separators) > 0 {
			s.separators = separators
		}
	}
}

func NewTextSplitter(opts ...SplitterOption) *TextSplitter {
	s := &TextSplitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunkOverlap >= s.chunkSize {
		s.chunkOverlap = s.chunkSize / 4
	}
	return s
}

// SplitBlocks splits every block independently; each chunk gets a copy of
// its block's metadata. Chunks never span two blocks.
func (s *TextSplitter) SplitBlocks(blocks []kb_type.Block) []kb_type.Chunk {
	var chunks []kb_type.Chunk
	for _, block := range blocks {
		for _, text := range s.SplitText(block.Content) {
			chunks = append(chunks, kb_type.Chunk{
				Content:  text,
				Metadata: maps.Clone(block.Metadata),
			})
		}
	}
	return chunks
}

func (s *TextSplitter) SplitText(text string) []string {
	return s.splitText(text, s.separators)
}

func (s *TextSplitter) splitText(text string, separators []string) []string {
	// Pick the first separator present in the text; the rest are kept for
	// pieces that are still too long.
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.mergeSplits(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.splitText(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.mergeSplits(good)...)
	}
	return final
}

// mergeSplits packs small pieces into chunks no longer than chunkSize. When a
// chunk is emitted, pieces are dropped from its front until what is left fits
// within chunkOverlap; that tail starts the next chunk.
func (s *TextSplitter) mergeSplits(splits []string) []string {
	var docs, current []string
	total := 0
	for _, piece := range splits {
		n := runeLen(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			if doc := joinPieces(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := joinPieces(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepingSeparator splits text on sep and re-attaches sep to the start
// of every piece after the first. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	for i, part := range strings.Split(text, sep) {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
