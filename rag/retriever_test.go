package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/BaSui01/docqa/types"
)

func TestLexicalRetriever(t *testing.T) {
	t.Parallel()

	store, _ := indexFixture(t)
	ret := NewLexicalRetriever(store)

	if ret.Name() != StrategyLexical {
		t.Fatalf("unexpected name: %s", ret.Name())
	}

	got, err := ret.Retrieve(context.Background(), "vacation days", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) == 0 || got[0].Segment.ID != "h1" {
		t.Fatalf("expected h1 first, got %+v", got)
	}
}

func TestDenseRetriever(t *testing.T) {
	t.Parallel()

	store, _ := indexFixture(t)
	ret := NewDenseRetriever(store)

	got, err := ret.Retrieve(context.Background(), "turbine blades are inspected monthly", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].Segment.ID != "p2" {
		t.Fatalf("expected p2, got %+v", got)
	}
}

func TestDenseRetriever_EmbedFailure(t *testing.T) {
	t.Parallel()

	store := NewIndexStore(NewMemoryVectorStore(nil), failEmbedder{}, nil)
	ret := NewDenseRetriever(store)

	_, err := ret.Retrieve(context.Background(), "anything", 3)
	if !types.IsBackendUnavailable(err) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestHyDERetriever_UsesHypothesis(t *testing.T) {
	t.Parallel()

	store, embedder := indexFixture(t)
	llm := newScriptedLLM("The reactor cooling uses borated water circulated through loops.")
	ret := NewHyDERetriever(store, llm, nil)

	if ret.Name() != StrategyHyDE {
		t.Fatalf("unexpected name: %s", ret.Name())
	}

	before := embedder.callCount()
	got, err := ret.Retrieve(context.Background(), "how is the core kept cold", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].Segment.ID != "p1" {
		t.Fatalf("expected p1, got %+v", got)
	}
	// Both the query and the hypothesis get embedded.
	if embedder.callCount()-before != 2 {
		t.Fatalf("expected 2 embedding calls, got %d", embedder.callCount()-before)
	}
	if !strings.Contains(llm.lastPrompt(), "how is the core kept cold") {
		t.Fatalf("hypothesis prompt should carry the question, got %q", llm.lastPrompt())
	}
}

func TestHyDERetriever_LLMFailure(t *testing.T) {
	t.Parallel()

	store, _ := indexFixture(t)
	ret := NewHyDERetriever(store, newScriptedLLM(), nil)

	_, err := ret.Retrieve(context.Background(), "anything", 3)
	if !types.IsBackendUnavailable(err) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestMeanVector(t *testing.T) {
	t.Parallel()

	got := meanVector([]float64{1, 3}, []float64{3, 5})
	if got[0] != 2 || got[1] != 4 {
		t.Fatalf("unexpected mean: %v", got)
	}

	a := []float64{1, 2}
	if got := meanVector(a, []float64{1}); &got[0] != &a[0] {
		t.Fatalf("mismatched dimensions should return the first vector")
	}
}
