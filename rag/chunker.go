package rag

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// SentenceSplitter splits extracted document text into overlapping segments.
// Splits happen preferentially at sentence boundaries; a sentence longer than
// the chunk budget is hard-truncated at the nearest whitespace.
type SentenceSplitter struct {
	logger *zap.Logger
}

// NewSentenceSplitter creates a splitter.
func NewSentenceSplitter(logger *zap.Logger) *SentenceSplitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SentenceSplitter{logger: logger.With(zap.String("component", "sentence_splitter"))}
}

// Split chunks the ordered text blocks of one source document into segments
// tagged with sourceFile. Adjacent segments share a trailing/leading span of
// exactly cfg.ChunkOverlap characters whenever the preceding segment is long
// enough to supply it.
//
// Only the structural constraint (0 <= overlap < size) is checked here: the
// [MinChunkSize, MaxChunkSize] range applies to caller-supplied settings and
// is enforced where those enter, while the automatic size tiers may exceed
// MaxChunkSize for very large documents.
func (s *SentenceSplitter) Split(blocks []string, sourceFile string, cfg types.ChunkSettings) ([]types.Segment, error) {
	if cfg.ChunkSize <= 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, types.NewValidation("chunk_overlap %d must be in [0, chunk_size %d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	// Base pieces are budgeted to size-overlap runes so that prepending the
	// overlap span never pushes a segment past ChunkSize.
	budget := cfg.ChunkSize - cfg.ChunkOverlap

	var pieces []string
	for _, block := range blocks {
		pieces = append(pieces, s.splitBlock(block, budget)...)
	}

	segments := make([]types.Segment, 0, len(pieces))
	var prev []rune
	for _, piece := range pieces {
		text := piece
		if cfg.ChunkOverlap > 0 && prev != nil {
			text = overlapSpan(prev, cfg.ChunkOverlap) + text
		}
		segments = append(segments, types.Segment{
			ID:         uuid.NewString(),
			Text:       text,
			SourceFile: sourceFile,
			Position:   len(segments),
		})
		prev = []rune(piece)
	}

	s.logger.Debug("document chunked",
		zap.String("source_file", sourceFile),
		zap.Int("segments", len(segments)),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("chunk_overlap", cfg.ChunkOverlap))

	return segments, nil
}

// splitBlock cuts one text block into pieces of at most budget runes,
// preferring sentence boundaries.
func (s *SentenceSplitter) splitBlock(block string, budget int) []string {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}

	var pieces []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			pieces = append(pieces, text)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range splitIntoSentences(block) {
		runes := []rune(sentence)
		if len(runes) > budget {
			// Oversized sentence: flush what we have and hard-split it.
			flush()
			for _, part := range hardSplit(runes, budget) {
				pieces = append(pieces, part)
			}
			continue
		}
		if currentLen+len(runes) > budget {
			flush()
		}
		current.WriteString(sentence)
		currentLen += len(runes)
	}
	flush()

	return pieces
}

// overlapSpan returns the trailing overlap runes of prev, or all of prev when
// it is shorter than the overlap.
func overlapSpan(prev []rune, overlap int) string {
	if len(prev) <= overlap {
		return string(prev)
	}
	return string(prev[len(prev)-overlap:])
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
	'\n': true,
}

// splitIntoSentences splits text into sentences, each keeping its trailing
// delimiter and whitespace so that rejoining the parts reproduces the input.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if !sentenceEnders[r] {
			continue
		}
		// Only treat the delimiter as a boundary when followed by
		// whitespace, so "3.14" stays intact.
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// hardSplit cuts an oversized sentence into budget-sized parts, backing off
// to the last whitespace in the rear half of a part when one exists.
func hardSplit(runes []rune, budget int) []string {
	var parts []string
	for len(runes) > 0 {
		if len(runes) <= budget {
			part := strings.TrimSpace(string(runes))
			if part != "" {
				parts = append(parts, part)
			}
			break
		}

		cut := budget
		for i := budget - 1; i >= budget/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}

		part := strings.TrimSpace(string(runes[:cut]))
		if part != "" {
			parts = append(parts, part)
		}
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	return parts
}
