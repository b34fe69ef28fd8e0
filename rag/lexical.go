package rag

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// BM25 parameters. k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// LexicalIndex is the keyword half of the index store: an in-memory BM25
// structure over the same segment set the vector store holds. It recomputes
// its corpus statistics on every mutation, which is fine at session scale.
type LexicalIndex struct {
	mu       sync.RWMutex
	segments []types.Segment
	docLens  []int
	avgLen   float64
	idf      map[string]float64
	logger   *zap.Logger
}

// NewLexicalIndex creates an empty lexical index.
func NewLexicalIndex(logger *zap.Logger) *LexicalIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LexicalIndex{
		idf:    make(map[string]float64),
		logger: logger.With(zap.String("component", "lexical_index")),
	}
}

// Add indexes the given segments.
func (x *LexicalIndex) Add(segments []types.Segment) {
	if len(segments) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	x.segments = append(x.segments, segments...)
	x.recompute()

	x.logger.Debug("segments indexed",
		zap.Int("added", len(segments)),
		zap.Int("total", len(x.segments)))
}

// RemoveSource drops every segment belonging to sourceFile and returns the
// number removed.
func (x *LexicalIndex) RemoveSource(sourceFile string) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	kept := x.segments[:0]
	for _, seg := range x.segments {
		if seg.SourceFile != sourceFile {
			kept = append(kept, seg)
		}
	}
	removed := len(x.segments) - len(kept)
	x.segments = kept
	x.recompute()
	return removed
}

// Reset discards all indexed segments and statistics.
func (x *LexicalIndex) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.segments = nil
	x.docLens = nil
	x.avgLen = 0
	x.idf = make(map[string]float64)
}

// Count returns the number of indexed segments.
func (x *LexicalIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.segments)
}

// Search ranks segments against the query by BM25 score. Segments scoring
// zero (no term overlap) are omitted.
func (x *LexicalIndex) Search(query string, topK int) []types.ScoredSegment {
	if topK <= 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || len(x.segments) == 0 {
		return nil
	}

	results := make([]types.ScoredSegment, 0, len(x.segments))
	for i, seg := range x.segments {
		termFreq := make(map[string]int)
		for _, term := range tokenize(seg.Text) {
			termFreq[term]++
		}

		score := 0.0
		docLen := float64(x.docLens[i])
		for _, q := range queryTerms {
			tf, ok := termFreq[q]
			if !ok {
				continue
			}
			idf := x.idf[q]
			num := float64(tf) * (bm25K1 + 1.0)
			den := float64(tf) + bm25K1*(1.0-bm25B+bm25B*(docLen/x.avgLen))
			score += idf * (num / den)
		}
		if score > 0 {
			results = append(results, types.ScoredSegment{Segment: seg, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// recompute rebuilds document lengths and IDF. Caller holds the write lock.
func (x *LexicalIndex) recompute() {
	totalLen := 0
	x.docLens = make([]int, len(x.segments))
	termDocCount := make(map[string]int)

	for i, seg := range x.segments {
		terms := tokenize(seg.Text)
		x.docLens[i] = len(terms)
		totalLen += len(terms)

		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			if !seen[term] {
				termDocCount[term]++
				seen[term] = true
			}
		}
	}

	x.avgLen = 0
	if len(x.segments) > 0 {
		x.avgLen = float64(totalLen) / float64(len(x.segments))
	}

	x.idf = make(map[string]float64, len(termDocCount))
	n := float64(len(x.segments))
	for term, df := range termDocCount {
		x.idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}
}

// tokenize lowercases and splits on non-letter/non-digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
