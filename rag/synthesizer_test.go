package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/BaSui01/docqa/types"
)

func scored(id, text string, score float64) types.ScoredSegment {
	return types.ScoredSegment{
		Segment: types.Segment{ID: id, Text: text, SourceFile: "doc.txt"},
		Score:   score,
	}
}

func TestSynthesizer_SingleCall(t *testing.T) {
	t.Parallel()

	llm := newScriptedLLM("Реактор охлаждается борированной водой.")
	syn := NewSynthesizer(llm, SynthesizerConfig{}, nil)

	answer, err := syn.Synthesize(context.Background(), "как охлаждается реактор?", []types.ScoredSegment{
		scored("s1", "Реактор охлаждается борированной водой через два контура.", 0.9),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if answer != "Реактор охлаждается борированной водой." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if llm.promptCount() != 1 {
		t.Fatalf("expected 1 model call, got %d", llm.promptCount())
	}

	prompt := llm.lastPrompt()
	if !strings.Contains(prompt, "борированной водой через два контура") {
		t.Fatalf("prompt is missing the context")
	}
	if !strings.Contains(prompt, "Russian") {
		t.Fatalf("prompt is missing the target language")
	}
	if !strings.Contains(prompt, "Empty Response") {
		t.Fatalf("prompt is missing the empty-response instruction")
	}
}

func TestSynthesizer_DedupSegments(t *testing.T) {
	t.Parallel()

	llm := newScriptedLLM("Полный ответ.")
	syn := NewSynthesizer(llm, SynthesizerConfig{}, nil)

	_, err := syn.Synthesize(context.Background(), "q", []types.ScoredSegment{
		scored("s1", "segment one text", 0.9),
		scored("s1", "segment one text", 0.7),
		scored("s2", "segment two text", 0.5),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := strings.Count(llm.lastPrompt(), "segment one text"); got != 1 {
		t.Fatalf("duplicated segment appears %d times in the prompt", got)
	}
}

func TestSynthesizer_EmptyContextSkipsModel(t *testing.T) {
	t.Parallel()

	llm := newScriptedLLM("should never be used")
	syn := NewSynthesizer(llm, SynthesizerConfig{}, nil)

	answer, err := syn.Synthesize(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if answer != DefaultNotFoundMessage {
		t.Fatalf("expected not-found message, got %q", answer)
	}
	if llm.promptCount() != 0 {
		t.Fatalf("expected no model calls, got %d", llm.promptCount())
	}
}

func TestSynthesizer_TreeReduce(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("reactor ", 60)
	llm := newScriptedLLM("Частичный ответ А.", "Частичный ответ Б.", "Итоговый ответ.")
	syn := NewSynthesizer(llm, SynthesizerConfig{ContextTokens: 40}, nil)

	answer, err := syn.Synthesize(context.Background(), "q", []types.ScoredSegment{
		scored("s1", big, 0.9),
		scored("s2", big, 0.8),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if answer != "Итоговый ответ." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	// Two partial calls plus one combining call.
	if llm.promptCount() != 3 {
		t.Fatalf("expected 3 model calls, got %d", llm.promptCount())
	}
	if !strings.Contains(llm.lastPrompt(), "Частичный ответ А.") || !strings.Contains(llm.lastPrompt(), "Частичный ответ Б.") {
		t.Fatalf("combining prompt is missing the partial answers")
	}
}

func TestSynthesizer_PostProcessFallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"blank", "   \n  "},
		{"marker", "Empty Response"},
		{"marker embedded", "The answer is: Empty Response."},
		{"too short", "Да."},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			llm := newScriptedLLM(tc.raw)
			syn := NewSynthesizer(llm, SynthesizerConfig{}, nil)

			answer, err := syn.Synthesize(context.Background(), "q", []types.ScoredSegment{
				scored("s1", "some context", 0.5),
			})
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if answer != DefaultNotFoundMessage {
				t.Fatalf("expected not-found message for %q, got %q", tc.raw, answer)
			}
		})
	}
}

func TestSynthesizer_CustomNotFoundMessage(t *testing.T) {
	t.Parallel()

	llm := newScriptedLLM("")
	syn := NewSynthesizer(llm, SynthesizerConfig{NotFoundMessage: "nothing here"}, nil)

	answer, err := syn.Synthesize(context.Background(), "q", []types.ScoredSegment{
		scored("s1", "ctx", 0.5),
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if answer != "nothing here" {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestSynthesizer_ModelFailure(t *testing.T) {
	t.Parallel()

	syn := NewSynthesizer(newScriptedLLM(), SynthesizerConfig{}, nil)

	_, err := syn.Synthesize(context.Background(), "q", []types.ScoredSegment{
		scored("s1", "ctx", 0.5),
	})
	if !types.IsBackendUnavailable(err) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}
