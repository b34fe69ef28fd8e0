package rag

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/docqa/types"
)

// embedConcurrency caps parallel embedding calls during ingestion.
const embedConcurrency = 4

// IndexStats is a snapshot of the index for the stats endpoint.
type IndexStats struct {
	Documents    int    `json:"documents"`
	Segments     int    `json:"segments"`
	VectorPoints int    `json:"vector_points"`
	VectorStatus string `json:"vector_status"`
}

// IndexStore keeps the vector store, the lexical index and the session
// registry in lockstep. All mutations go through it; a mutation either lands
// in all three structures or in none.
//
// Embedding calls run outside the mutation lock, so a slow embedding backend
// never blocks concurrent reads.
type IndexStore struct {
	vectors  VectorStore
	lexical  *LexicalIndex
	registry *SessionRegistry
	embedder Embedder
	logger   *zap.Logger

	mu sync.RWMutex
}

// NewIndexStore wires the three index structures behind one mutation
// boundary.
func NewIndexStore(vectors VectorStore, embedder Embedder, logger *zap.Logger) *IndexStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexStore{
		vectors:  vectors,
		lexical:  NewLexicalIndex(logger),
		registry: NewSessionRegistry(),
		embedder: embedder,
		logger:   logger.With(zap.String("component", "index_store")),
	}
}

// Ingest embeds the segments and stores them in both index structures.
// The vector store is written first; the lexical index and the registry only
// see segments the vector store accepted.
func (s *IndexStore) Ingest(ctx context.Context, segments []types.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	vectors, err := s.embedAll(ctx, segments)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock. Callers pre-check for duplicates, but two
	// concurrent uploads of the same file can both pass that check.
	if s.registry.Contains(segments[0].SourceFile) {
		return types.NewValidation("document %q is already indexed, remove it first",
			segments[0].SourceFile).WithStage("ingest")
	}

	if err := s.vectors.AddSegments(ctx, segments, vectors); err != nil {
		return err
	}
	s.lexical.Add(segments)
	for _, seg := range segments {
		s.registry.Add(seg.SourceFile)
	}

	s.logger.Info("segments ingested",
		zap.Int("segments", len(segments)),
		zap.String("file_name", segments[0].SourceFile))
	return nil
}

// embedAll computes one vector per segment with bounded parallelism.
func (s *IndexStore) embedAll(ctx context.Context, segments []types.Segment) ([][]float64, error) {
	vectors := make([][]float64, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, seg.Text)
			if err != nil {
				return types.NewBackendUnavailable("ingest",
					fmt.Sprintf("embed segment %d of %s", seg.Position, seg.SourceFile)).WithCause(err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Remove drops every segment of the given source file from both structures.
func (s *IndexStore) Remove(ctx context.Context, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registry.Contains(sourceFile) {
		return types.NewNotFound("document %q is not indexed", sourceFile).WithStage("delete")
	}

	if err := s.vectors.DeleteBySourceFile(ctx, sourceFile); err != nil {
		return err
	}
	removed := s.lexical.RemoveSource(sourceFile)
	s.registry.Remove(sourceFile)

	s.logger.Info("document removed",
		zap.String("file_name", sourceFile),
		zap.Int("segments", removed))
	return nil
}

// Clear recreates the vector collection and resets the in-memory structures.
// Clearing an already empty index succeeds.
func (s *IndexStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vectors.Recreate(ctx); err != nil {
		return err
	}
	s.lexical.Reset()
	s.registry.Clear()

	s.logger.Info("index cleared")
	return nil
}

// HasDocument reports whether the source file is indexed.
func (s *IndexStore) HasDocument(sourceFile string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Contains(sourceFile)
}

// SourceDocuments lists the indexed file names sorted lexically.
func (s *IndexStore) SourceDocuments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.List()
}

// SearchLexical runs a BM25 search over the indexed segments.
func (s *IndexStore) SearchLexical(query string, topK int) []types.ScoredSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lexical.Search(query, topK)
}

// SearchDense ranks indexed segments against an already-embedded query.
func (s *IndexStore) SearchDense(ctx context.Context, queryVector []float64, topK int) ([]types.ScoredSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectors.Search(ctx, queryVector, topK)
}

// Embed exposes the store's embedder for retrieval strategies.
func (s *IndexStore) Embed(ctx context.Context, text string) ([]float64, error) {
	return s.embedder.Embed(ctx, text)
}

// Reconcile resyncs the registry from a vector store scan. The vector store
// is the durable side, so its file list wins.
func (s *IndexStore) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.vectors.ListSourceFiles(ctx)
	if err != nil {
		return err
	}
	s.registry.Reconcile(files)

	s.logger.Info("registry reconciled", zap.Int("documents", len(files)))
	return nil
}

// Stats reports index counts. A vector store failure is reported in
// VectorStatus instead of failing the whole snapshot.
func (s *IndexStore) Stats(ctx context.Context) IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := IndexStats{
		Documents:    s.registry.Len(),
		Segments:     s.lexical.Count(),
		VectorStatus: "ok",
	}

	points, err := s.vectors.Count(ctx)
	if err != nil {
		stats.VectorStatus = fmt.Sprintf("error: %v", err)
		return stats
	}
	stats.VectorPoints = points
	return stats
}
