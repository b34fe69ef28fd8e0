package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/docqa/types"
)

// Retrieval strategy names. They double as router choice identifiers.
const (
	StrategyLexical = "lexical"
	StrategyDense   = "dense"
	StrategyHyDE    = "hyde"
)

// strategyDescriptions tell the routing model when each strategy pays off.
var strategyDescriptions = map[string]string{
	StrategyLexical: "Useful for questions that mention exact terms, names, codes, numbers or quoted phrases that should appear verbatim in the documents.",
	StrategyDense:   "Useful for questions about the meaning or content of the documents, phrased in the reader's own words.",
	StrategyHyDE:    "Useful for vague, broad or indirectly phrased questions where the answer wording likely differs a lot from the question wording.",
}

const selectPrompt = `You route a question to one or more retrieval strategies.
The numbered list below describes each strategy:

%s
Question: %s

Reply with a JSON array of the strategies worth running, most relevant first.
Each element is an object with a "choice" number from the list and a short
"reason". Reply with the JSON array only.`

// Router picks retrieval strategies for a question and runs the chosen ones
// in parallel. When the routing model is unavailable or answers nonsense,
// the dense strategy runs alone.
type Router struct {
	llm        LLM
	order      []string
	retrievers map[string]Retriever
	logger     *zap.Logger
}

// NewRouter wires the retrievers behind an LLM selector. Retriever names
// must be unique; routing choices are numbered in argument order.
func NewRouter(llm LLM, logger *zap.Logger, retrievers ...Retriever) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		llm:        llm,
		retrievers: make(map[string]Retriever, len(retrievers)),
		logger:     logger.With(zap.String("component", "router")),
	}
	for _, ret := range retrievers {
		if _, dup := r.retrievers[ret.Name()]; dup {
			continue
		}
		r.order = append(r.order, ret.Name())
		r.retrievers[ret.Name()] = ret
	}
	return r
}

// Route returns the strategy names selected for the query, in selection
// order. The result is never empty while at least one retriever exists.
func (r *Router) Route(ctx context.Context, query string) []string {
	if len(r.order) == 0 {
		return nil
	}

	var choices strings.Builder
	for i, name := range r.order {
		desc := strategyDescriptions[name]
		if desc == "" {
			desc = name
		}
		fmt.Fprintf(&choices, "(%d) %s: %s\n", i+1, name, desc)
	}

	raw, err := r.llm.Complete(ctx, fmt.Sprintf(selectPrompt, choices.String(), query))
	if err != nil {
		r.logger.Warn("routing model unavailable, falling back to dense", zap.Error(err))
		return r.fallback()
	}

	selected, err := r.parseSelections(raw)
	if err != nil {
		r.logger.Warn("unusable routing answer, falling back to dense",
			zap.Error(err),
			zap.String("answer", raw))
		return r.fallback()
	}

	r.logger.Debug("strategies selected", zap.Strings("strategies", selected))
	return selected
}

// parseSelections extracts the JSON array from the model answer and maps
// choice numbers back to strategy names. Out-of-range numbers and
// duplicates are dropped; an empty result is an error.
func (r *Router) parseSelections(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in answer")
	}

	var picks []struct {
		Choice int    `json:"choice"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &picks); err != nil {
		return nil, fmt.Errorf("decode selections: %w", err)
	}

	seen := make(map[string]bool)
	var selected []string
	for _, p := range picks {
		if p.Choice < 1 || p.Choice > len(r.order) {
			continue
		}
		name := r.order[p.Choice-1]
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, name)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no valid choices in answer")
	}
	return selected, nil
}

// fallback prefers the dense strategy and otherwise runs everything.
func (r *Router) fallback() []string {
	if _, ok := r.retrievers[StrategyDense]; ok {
		return []string{StrategyDense}
	}
	return append([]string(nil), r.order...)
}

// Retrieve routes the query, runs the selected strategies in parallel and
// merges their results. A segment found by several strategies keeps its
// highest score. The merged list is sorted by score and capped at topK.
func (r *Router) Retrieve(ctx context.Context, query string, topK int) ([]types.ScoredSegment, []string, error) {
	selected := r.Route(ctx, query)
	if len(selected) == 0 {
		return nil, nil, types.NewError(types.KindInternal, "no retrieval strategies configured")
	}

	results := make([][]types.ScoredSegment, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range selected {
		i := i
		ret := r.retrievers[name]
		g.Go(func() error {
			segs, err := ret.Retrieve(gctx, query, topK)
			if err != nil {
				return err
			}
			results[i] = segs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, selected, err
	}

	merged := mergeScored(results, topK)
	r.logger.Debug("retrieval complete",
		zap.Strings("strategies", selected),
		zap.Int("segments", len(merged)))
	return merged, selected, nil
}

// mergeScored deduplicates by segment ID keeping the best score, sorts by
// score descending and truncates to topK.
func mergeScored(results [][]types.ScoredSegment, topK int) []types.ScoredSegment {
	best := make(map[string]types.ScoredSegment)
	for _, set := range results {
		for _, s := range set {
			cur, ok := best[s.Segment.ID]
			if !ok || s.Score > cur.Score {
				best[s.Segment.ID] = s
			}
		}
	}

	merged := make([]types.ScoredSegment, 0, len(best))
	for _, s := range best {
		merged = append(merged, s)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Segment.ID < merged[j].Segment.ID
	})
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
