package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

const (
	// emptyResponseMarker is what the grounding prompt tells the model to
	// emit when the context holds no answer.
	emptyResponseMarker = "Empty Response"

	// minAnswerRunes is the shortest raw answer still treated as real.
	minAnswerRunes = 5

	// maxReduceRounds bounds the tree reduction so pathological partial
	// answers cannot loop forever.
	maxReduceRounds = 4

	tokenEncoding = "cl100k_base"
)

// DefaultNotFoundMessage is the fixed grounding-failure answer.
const DefaultNotFoundMessage = "В предоставленных документах нет информации по этому вопросу."

const groundingPrompt = `Context information is below.
---------------------
%s
---------------------
Using only the context information above and no prior knowledge, answer the
question. Do not invent facts that are not in the context. If the context does
not contain the answer, reply with exactly "Empty Response".
Answer in %s.

Question: %s
Answer:`

// SynthesizerConfig configures answer synthesis.
type SynthesizerConfig struct {
	// TargetLanguage is named inside the grounding prompt.
	TargetLanguage string `json:"target_language" yaml:"target_language"`
	// NotFoundMessage replaces empty or ungrounded model answers.
	NotFoundMessage string `json:"not_found_message" yaml:"not_found_message"`
	// ContextTokens caps the context packed into one model call.
	ContextTokens int `json:"context_tokens" yaml:"context_tokens"`
}

func (c *SynthesizerConfig) applyDefaults() {
	if c.TargetLanguage == "" {
		c.TargetLanguage = "Russian"
	}
	if c.NotFoundMessage == "" {
		c.NotFoundMessage = DefaultNotFoundMessage
	}
	if c.ContextTokens <= 0 {
		c.ContextTokens = 3000
	}
}

// Synthesizer turns retrieved segments into one grounded answer. When the
// combined context exceeds the token budget it reduces tree-style: partial
// answers per context chunk, then one combining pass over the partials.
type Synthesizer struct {
	llm     LLM
	cfg     SynthesizerConfig
	counter *tokenCounter
	logger  *zap.Logger
}

// NewSynthesizer creates a synthesizer over the given model.
func NewSynthesizer(llm LLM, cfg SynthesizerConfig, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Synthesizer{
		llm:     llm,
		cfg:     cfg,
		counter: newTokenCounter(logger),
		logger:  logger.With(zap.String("component", "synthesizer")),
	}
}

// NotFoundMessage returns the configured grounding-failure answer.
func (s *Synthesizer) NotFoundMessage() string { return s.cfg.NotFoundMessage }

// Synthesize answers the question from the retrieved segments. Segments are
// deduplicated by ID first; an empty context yields the not-found message
// without a model call.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, segments []types.ScoredSegment) (string, error) {
	texts := dedupTexts(segments)
	if len(texts) == 0 {
		return s.cfg.NotFoundMessage, nil
	}

	for round := 0; ; round++ {
		chunks := s.packChunks(texts)
		if len(chunks) == 1 || round >= maxReduceRounds {
			if len(chunks) > 1 {
				s.logger.Warn("reduction budget exhausted, answering from first chunk",
					zap.Int("chunks_dropped", len(chunks)-1))
			}
			raw, err := s.ask(ctx, question, chunks[0])
			if err != nil {
				return "", err
			}
			return s.postProcess(raw), nil
		}

		s.logger.Debug("reducing context",
			zap.Int("round", round),
			zap.Int("chunks", len(chunks)))

		partials := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			partial, err := s.ask(ctx, question, chunk)
			if err != nil {
				return "", err
			}
			partials = append(partials, partial)
		}
		texts = partials
	}
}

func (s *Synthesizer) ask(ctx context.Context, question, contextText string) (string, error) {
	prompt := fmt.Sprintf(groundingPrompt, contextText, s.cfg.TargetLanguage, question)
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", types.NewBackendUnavailable("synthesize", "answer generation").WithCause(err)
	}
	return answer, nil
}

// packChunks greedily concatenates texts into chunks within the token
// budget. A single text over budget becomes its own chunk rather than being
// split mid-text.
func (s *Synthesizer) packChunks(texts []string) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	for _, text := range texts {
		n := s.counter.Count(text)
		if current.Len() > 0 && currentTokens+n > s.cfg.ContextTokens {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(text)
		currentTokens += n
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}

// postProcess applies the grounding-failure policy: whitespace-trimmed
// answers that are empty, carry the empty-response marker or are shorter
// than minAnswerRunes become the fixed not-found message.
func (s *Synthesizer) postProcess(raw string) string {
	answer := strings.TrimSpace(raw)
	switch {
	case answer == "":
		return s.cfg.NotFoundMessage
	case strings.Contains(answer, emptyResponseMarker):
		return s.cfg.NotFoundMessage
	case len([]rune(answer)) < minAnswerRunes:
		return s.cfg.NotFoundMessage
	}
	return answer
}

// dedupTexts keeps the first occurrence of each segment ID, preserving the
// incoming (score-sorted) order.
func dedupTexts(segments []types.ScoredSegment) []string {
	seen := make(map[string]bool, len(segments))
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		if seen[s.Segment.ID] {
			continue
		}
		seen[s.Segment.ID] = true
		if strings.TrimSpace(s.Segment.Text) == "" {
			continue
		}
		texts = append(texts, s.Segment.Text)
	}
	return texts
}

// tokenCounter counts prompt tokens with tiktoken. When the encoding data
// is unavailable (offline start) it estimates four bytes per token.
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func newTokenCounter(logger *zap.Logger) *tokenCounter {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, using byte estimate", zap.Error(err))
		return &tokenCounter{}
	}
	return &tokenCounter{enc: enc}
}

func (c *tokenCounter) Count(text string) int {
	if c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
