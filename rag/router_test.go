package rag

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/BaSui01/docqa/types"
)

func routerFixture(t *testing.T, llm LLM) (*Router, *IndexStore) {
	t.Helper()

	store, _ := indexFixture(t)
	router := NewRouter(llm, nil,
		NewLexicalRetriever(store),
		NewDenseRetriever(store),
		NewHyDERetriever(store, llm, nil),
	)
	return router, store
}

func TestRouter_RouteParsesSelections(t *testing.T) {
	t.Parallel()

	llm := newScriptedLLM(`Here is my selection:
[{"choice": 2, "reason": "semantic question"}, {"choice": 1, "reason": "has keywords"}]`)
	router, _ := routerFixture(t, llm)

	got := router.Route(context.Background(), "how are turbine blades maintained")
	want := []string{StrategyDense, StrategyLexical}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Route() = %v, want %v", got, want)
	}
	if !strings.Contains(llm.lastPrompt(), "how are turbine blades maintained") {
		t.Fatalf("selection prompt should carry the question")
	}
}

func TestRouter_RouteSkipsInvalidAndDuplicateChoices(t *testing.T) {
	t.Parallel()

	llm := newScriptedLLM(`[{"choice": 0}, {"choice": 9}, {"choice": 2}, {"choice": 2}]`)
	router, _ := routerFixture(t, llm)

	got := router.Route(context.Background(), "q")
	if !reflect.DeepEqual(got, []string{StrategyDense}) {
		t.Fatalf("Route() = %v, want [dense]", got)
	}
}

func TestRouter_FallbackToDense(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		llm  LLM
	}{
		{"llm failure", newScriptedLLM()},
		{"no json", newScriptedLLM("I would pick strategy number two.")},
		{"broken json", newScriptedLLM(`[{"choice": }]`)},
		{"all choices invalid", newScriptedLLM(`[{"choice": 42}]`)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router, _ := routerFixture(t, tc.llm)
			got := router.Route(context.Background(), "q")
			if !reflect.DeepEqual(got, []string{StrategyDense}) {
				t.Fatalf("Route() = %v, want [dense]", got)
			}
		})
	}
}

func TestRouter_RetrieveMergesStrategies(t *testing.T) {
	t.Parallel()

	// Both strategies selected; dense runs with the query embedding,
	// lexical with BM25. Results overlap on the turbine segment.
	llm := newScriptedLLM(`[{"choice": 1, "reason": "keywords"}, {"choice": 2, "reason": "semantics"}]`)
	router, _ := routerFixture(t, llm)

	merged, selected, err := router.Retrieve(context.Background(), "turbine blades are inspected monthly", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !reflect.DeepEqual(selected, []string{StrategyLexical, StrategyDense}) {
		t.Fatalf("unexpected selection: %v", selected)
	}
	if len(merged) == 0 || merged[0].Segment.ID != "p2" {
		t.Fatalf("expected p2 first, got %+v", merged)
	}

	seen := make(map[string]int)
	for _, s := range merged {
		seen[s.Segment.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("segment %s appears %d times in merged results", id, n)
		}
	}
}

func TestRouter_RetrieveTopKCap(t *testing.T) {
	t.Parallel()

	llm := newScriptedLLM(`[{"choice": 1}, {"choice": 2}]`)
	router, _ := routerFixture(t, llm)

	merged, _, err := router.Retrieve(context.Background(), "reactor turbine vacation", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(merged) > 1 {
		t.Fatalf("expected at most 1 result, got %d", len(merged))
	}
}

func TestRouter_RetrievePropagatesStrategyFailure(t *testing.T) {
	t.Parallel()

	store := NewIndexStore(NewMemoryVectorStore(nil), failEmbedder{}, nil)
	llm := newScriptedLLM(`[{"choice": 1}]`)
	router := NewRouter(llm, nil, NewDenseRetriever(store))

	_, _, err := router.Retrieve(context.Background(), "q", 3)
	if !types.IsBackendUnavailable(err) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestMergeScored(t *testing.T) {
	t.Parallel()

	a := []types.ScoredSegment{
		{Segment: types.Segment{ID: "s1"}, Score: 0.4},
		{Segment: types.Segment{ID: "s2"}, Score: 0.9},
	}
	b := []types.ScoredSegment{
		{Segment: types.Segment{ID: "s1"}, Score: 0.7},
		{Segment: types.Segment{ID: "s3"}, Score: 0.5},
	}

	merged := mergeScored([][]types.ScoredSegment{a, b}, 0)
	if len(merged) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(merged))
	}
	if merged[0].Segment.ID != "s2" {
		t.Fatalf("expected s2 first, got %s", merged[0].Segment.ID)
	}
	if merged[1].Segment.ID != "s1" || merged[1].Score != 0.7 {
		t.Fatalf("expected s1 with best score 0.7, got %+v", merged[1])
	}
}
