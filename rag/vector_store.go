package rag

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// VectorStore is the dense half of the index store: a persistent backend
// holding one point per segment, addressable by source-document metadata.
// These operations are exactly what the Qdrant REST driver exposes; the
// in-memory implementation exists for tests and single-process deployments.
type VectorStore interface {
	// AddSegments upserts one point per segment. vectors[i] embeds
	// segments[i]; the two slices must be the same length.
	AddSegments(ctx context.Context, segments []types.Segment, vectors [][]float64) error

	// Search ranks stored segments by similarity to the query vector.
	Search(ctx context.Context, queryVector []float64, topK int) ([]types.ScoredSegment, error)

	// DeleteBySourceFile removes every point whose source-file metadata
	// matches. Deleting an absent source is not an error.
	DeleteBySourceFile(ctx context.Context, sourceFile string) error

	// ListSourceFiles scans stored point metadata and returns the
	// deduplicated source filenames. This is the authoritative view used
	// to reconcile the session registry.
	ListSourceFiles(ctx context.Context) ([]string, error)

	// Count returns the number of stored points.
	Count(ctx context.Context) (int, error)

	// Recreate destroys the underlying collection and rebuilds it empty,
	// rather than deleting points one by one.
	Recreate(ctx context.Context) error
}

// MemoryVectorStore is an in-memory VectorStore with exact cosine ranking.
type MemoryVectorStore struct {
	mu       sync.RWMutex
	segments []types.Segment
	vectors  [][]float64
	logger   *zap.Logger
}

// NewMemoryVectorStore creates an empty in-memory store.
func NewMemoryVectorStore(logger *zap.Logger) *MemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryVectorStore{logger: logger.With(zap.String("component", "memory_vector_store"))}
}

// AddSegments stores segments with their vectors.
func (s *MemoryVectorStore) AddSegments(ctx context.Context, segments []types.Segment, vectors [][]float64) error {
	if len(segments) != len(vectors) {
		return types.NewValidation("segments/vectors length mismatch: %d vs %d", len(segments), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range segments {
		if len(vectors[i]) == 0 {
			return types.NewValidation("segment %s has an empty vector", segments[i].ID)
		}
		s.segments = append(s.segments, segments[i])
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Search returns the topK most similar segments by cosine similarity.
func (s *MemoryVectorStore) Search(ctx context.Context, queryVector []float64, topK int) ([]types.ScoredSegment, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]types.ScoredSegment, 0, len(s.segments))
	for i, seg := range s.segments {
		results = append(results, types.ScoredSegment{
			Segment: seg,
			Score:   cosineSimilarity(queryVector, s.vectors[i]),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteBySourceFile removes all segments of the given source document.
func (s *MemoryVectorStore) DeleteBySourceFile(ctx context.Context, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keptSegs := s.segments[:0]
	keptVecs := s.vectors[:0]
	for i, seg := range s.segments {
		if seg.SourceFile != sourceFile {
			keptSegs = append(keptSegs, seg)
			keptVecs = append(keptVecs, s.vectors[i])
		}
	}
	s.segments = keptSegs
	s.vectors = keptVecs
	return nil
}

// ListSourceFiles returns the deduplicated, sorted source filenames.
func (s *MemoryVectorStore) ListSourceFiles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	files := make([]string, 0)
	for _, seg := range s.segments {
		if !seen[seg.SourceFile] {
			seen[seg.SourceFile] = true
			files = append(files, seg.SourceFile)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Count returns the stored segment count.
func (s *MemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments), nil
}

// Recreate drops everything.
func (s *MemoryVectorStore) Recreate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = nil
	s.vectors = nil
	return nil
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when dimensions mismatch or either vector is zero.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
