package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
)

// hashEmbedder is a deterministic test embedder. Each token bumps one
// dimension, so texts sharing words land close together under cosine
// similarity. 64 dimensions keep hash collisions rare enough that unrelated
// fixture texts rank clearly below related ones.
type hashEmbedder struct {
	dims int

	mu    sync.Mutex
	calls []string
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dims: 64}
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	vec := make([]float64, e.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := 0
		for _, r := range tok {
			h = h*31 + int(r)
		}
		if h < 0 {
			h = -h
		}
		vec[h%e.dims]++
	}
	return vec, nil
}

func (e *hashEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// failEmbedder always fails.
type failEmbedder struct{}

func (failEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedding backend down")
}

// scriptedLLM returns canned completions in order, then repeats the last
// one. A nil script fails every call.
type scriptedLLM struct {
	mu      sync.Mutex
	script  []string
	prompts []string
}

func newScriptedLLM(responses ...string) *scriptedLLM {
	return &scriptedLLM{script: responses}
}

func (l *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prompts = append(l.prompts, prompt)
	if len(l.script) == 0 {
		return "", errors.New("llm backend down")
	}
	resp := l.script[0]
	if len(l.script) > 1 {
		l.script = l.script[1:]
	}
	return resp, nil
}

func (l *scriptedLLM) promptCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

func (l *scriptedLLM) lastPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prompts) == 0 {
		return ""
	}
	return l.prompts[len(l.prompts)-1]
}
