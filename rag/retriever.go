package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// Retriever ranks indexed segments against a natural-language query.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query string, topK int) ([]types.ScoredSegment, error)
}

// LexicalRetriever answers keyword-style queries through BM25.
type LexicalRetriever struct {
	store *IndexStore
}

// NewLexicalRetriever creates a BM25-backed retriever.
func NewLexicalRetriever(store *IndexStore) *LexicalRetriever {
	return &LexicalRetriever{store: store}
}

func (r *LexicalRetriever) Name() string { return StrategyLexical }

func (r *LexicalRetriever) Retrieve(_ context.Context, query string, topK int) ([]types.ScoredSegment, error) {
	return r.store.SearchLexical(query, topK), nil
}

// DenseRetriever embeds the query and ranks segments by vector similarity.
type DenseRetriever struct {
	store *IndexStore
}

// NewDenseRetriever creates an embedding-backed retriever.
func NewDenseRetriever(store *IndexStore) *DenseRetriever {
	return &DenseRetriever{store: store}
}

func (r *DenseRetriever) Name() string { return StrategyDense }

func (r *DenseRetriever) Retrieve(ctx context.Context, query string, topK int) ([]types.ScoredSegment, error) {
	vec, err := r.store.Embed(ctx, query)
	if err != nil {
		return nil, types.NewBackendUnavailable("query", "embed query").WithCause(err)
	}
	return r.store.SearchDense(ctx, vec, topK)
}

// hypothesisPrompt asks the model to imagine the passage that would answer
// the question. The imagined passage lives in embedding space close to the
// real answer even when the question itself does not.
const hypothesisPrompt = `Write a short passage that answers the question below.
Include as many concrete details as possible. Do not say the answer is unknown.

Question: %s

Passage:`

// HyDERetriever searches with a hypothetical answer. The query and the
// generated hypothesis are embedded separately and averaged, so the original
// wording still anchors the search.
type HyDERetriever struct {
	store  *IndexStore
	llm    LLM
	logger *zap.Logger
}

// NewHyDERetriever creates a hypothesis-augmented dense retriever.
func NewHyDERetriever(store *IndexStore, llm LLM, logger *zap.Logger) *HyDERetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HyDERetriever{
		store:  store,
		llm:    llm,
		logger: logger.With(zap.String("component", "hyde_retriever")),
	}
}

func (r *HyDERetriever) Name() string { return StrategyHyDE }

func (r *HyDERetriever) Retrieve(ctx context.Context, query string, topK int) ([]types.ScoredSegment, error) {
	hypothesis, err := r.llm.Complete(ctx, fmt.Sprintf(hypothesisPrompt, query))
	if err != nil {
		return nil, types.NewBackendUnavailable("query", "generate hypothesis").WithCause(err)
	}
	hypothesis = strings.TrimSpace(hypothesis)
	r.logger.Debug("hypothesis generated", zap.Int("length", len(hypothesis)))

	queryVec, err := r.store.Embed(ctx, query)
	if err != nil {
		return nil, types.NewBackendUnavailable("query", "embed query").WithCause(err)
	}

	searchVec := queryVec
	if hypothesis != "" {
		hypVec, err := r.store.Embed(ctx, hypothesis)
		if err != nil {
			return nil, types.NewBackendUnavailable("query", "embed hypothesis").WithCause(err)
		}
		searchVec = meanVector(queryVec, hypVec)
	}

	return r.store.SearchDense(ctx, searchVec, topK)
}

// meanVector averages vectors of equal dimension. Mismatched inputs fall
// back to the first vector.
func meanVector(a, b []float64) []float64 {
	if len(a) != len(b) {
		return a
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = (a[i] + b[i]) / 2
	}
	return out
}
