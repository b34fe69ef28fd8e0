package rag

import (
	"testing"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

func lexicalFixture(t *testing.T) *LexicalIndex {
	t.Helper()
	idx := NewLexicalIndex(zap.NewNop())
	idx.Add([]types.Segment{
		{ID: "s1", Text: "The reactor coolant pump operates at 1500 rpm under normal load.", SourceFile: "plant.pdf"},
		{ID: "s2", Text: "Employees may request vacation through the HR portal.", SourceFile: "hr.pdf"},
		{ID: "s3", Text: "Coolant temperature must stay below 300 degrees celsius.", SourceFile: "plant.pdf"},
	})
	return idx
}

func TestLexicalIndex_Search(t *testing.T) {
	idx := lexicalFixture(t)

	results := idx.Search("coolant pump rpm", 5)
	if len(results) == 0 {
		t.Fatal("expected results for matching keywords")
	}
	if results[0].Segment.ID != "s1" {
		t.Errorf("top result = %s, want s1", results[0].Segment.ID)
	}
	for _, r := range results {
		if r.Segment.SourceFile == "hr.pdf" {
			t.Errorf("segment %s has no query terms, should be omitted", r.Segment.ID)
		}
	}
}

func TestLexicalIndex_SearchNoOverlap(t *testing.T) {
	idx := lexicalFixture(t)

	if got := idx.Search("quantum entanglement", 5); len(got) != 0 {
		t.Errorf("expected no results for unrelated query, got %d", len(got))
	}
	if got := idx.Search("", 5); len(got) != 0 {
		t.Errorf("expected no results for empty query, got %d", len(got))
	}
	if got := idx.Search("coolant", 0); len(got) != 0 {
		t.Errorf("expected no results for topK=0, got %d", len(got))
	}
}

func TestLexicalIndex_RemoveSource(t *testing.T) {
	idx := lexicalFixture(t)

	removed := idx.RemoveSource("plant.pdf")
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if idx.Count() != 1 {
		t.Errorf("count after removal = %d, want 1", idx.Count())
	}
	if got := idx.Search("coolant", 5); len(got) != 0 {
		t.Errorf("removed source still retrievable: %d results", len(got))
	}

	// Removing again is a no-op.
	if removed := idx.RemoveSource("plant.pdf"); removed != 0 {
		t.Errorf("second removal removed %d segments", removed)
	}
}

func TestLexicalIndex_Reset(t *testing.T) {
	idx := lexicalFixture(t)
	idx.Reset()

	if idx.Count() != 0 {
		t.Errorf("count after reset = %d, want 0", idx.Count())
	}
	if got := idx.Search("coolant", 5); len(got) != 0 {
		t.Errorf("reset index still returns %d results", len(got))
	}

	// Index is usable again after reset.
	idx.Add([]types.Segment{{ID: "s4", Text: "fresh content about turbines", SourceFile: "new.pdf"}})
	if got := idx.Search("turbines", 5); len(got) != 1 {
		t.Errorf("expected 1 result after re-adding, got %d", len(got))
	}
}

func TestLexicalIndex_TopK(t *testing.T) {
	idx := NewLexicalIndex(zap.NewNop())
	segs := make([]types.Segment, 10)
	for i := range segs {
		segs[i] = types.Segment{ID: string(rune('a' + i)), Text: "shared keyword content", SourceFile: "f.pdf"}
	}
	idx.Add(segs)

	if got := idx.Search("keyword", 3); len(got) != 3 {
		t.Errorf("topK not honored: got %d results, want 3", len(got))
	}
}
