package rag

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

func memStoreFixture(t *testing.T) *MemoryVectorStore {
	t.Helper()

	store := NewMemoryVectorStore(zap.NewNop())
	segments := []types.Segment{
		{ID: "seg1", Text: "reactor cooling procedure", SourceFile: "plant.pdf", Position: 0},
		{ID: "seg2", Text: "turbine maintenance schedule", SourceFile: "plant.pdf", Position: 1},
		{ID: "seg3", Text: "vacation policy for employees", SourceFile: "hr.pdf", Position: 0},
	}
	vectors := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	if err := store.AddSegments(context.Background(), segments, vectors); err != nil {
		t.Fatalf("AddSegments: %v", err)
	}
	return store
}

func TestMemoryVectorStore_SearchRanksByCosine(t *testing.T) {
	t.Parallel()

	store := memStoreFixture(t)

	results, err := store.Search(context.Background(), []float64{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Segment.ID != "seg1" {
		t.Fatalf("expected seg1 first, got %s", results[0].Segment.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected descending scores: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestMemoryVectorStore_DeleteBySourceFile(t *testing.T) {
	t.Parallel()

	store := memStoreFixture(t)
	ctx := context.Background()

	if err := store.DeleteBySourceFile(ctx, "plant.pdf"); err != nil {
		t.Fatalf("DeleteBySourceFile: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining point, got %d", n)
	}

	files, err := store.ListSourceFiles(ctx)
	if err != nil {
		t.Fatalf("ListSourceFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "hr.pdf" {
		t.Fatalf("expected [hr.pdf], got %v", files)
	}

	// Deleting an absent file is a no-op.
	if err := store.DeleteBySourceFile(ctx, "plant.pdf"); err != nil {
		t.Fatalf("repeat DeleteBySourceFile: %v", err)
	}
}

func TestMemoryVectorStore_Recreate(t *testing.T) {
	t.Parallel()

	store := memStoreFixture(t)
	ctx := context.Background()

	if err := store.Recreate(ctx); err != nil {
		t.Fatalf("Recreate: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty store, got %d points", n)
	}

	results, err := store.Search(ctx, []float64{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after Recreate, got %d", len(results))
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("cosineSimilarity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
