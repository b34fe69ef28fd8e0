package rag

import "context"

// Embedder maps text into the fixed-dimension vector space shared by
// ingestion and querying. The same model instance must serve both sides.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// LLM generates a completion for a prompt. Used for HyDE hypothesis
// generation, router classification, and answer synthesis. Calls are
// synchronous with a bounded timeout enforced by the provider.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
