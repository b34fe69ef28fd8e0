package rag

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/types"
)

// DefaultTopK is the retrieval depth used when the config leaves it unset.
const DefaultTopK = 5

// EngineConfig configures the question-answering engine.
type EngineConfig struct {
	// TopK caps how many segments reach the synthesizer.
	TopK int `json:"top_k" yaml:"top_k"`
	// Synthesizer configures answer generation.
	Synthesizer SynthesizerConfig `json:"synthesizer" yaml:"synthesizer"`
}

// Answer is the result of a question against the session corpus.
type Answer struct {
	Text       string   `json:"answer"`
	FilesUsed  []string `json:"files_used"`
	Strategies []string `json:"strategies"`
}

// Engine owns the document QA pipeline: loading, chunking, indexing,
// routed retrieval and grounded synthesis. All dependencies are injected;
// the engine keeps no global state.
type Engine struct {
	loaders *LoaderRegistry
	chunker *SentenceSplitter
	store   *IndexStore
	router  *Router
	synth   *Synthesizer
	metrics *metrics.Collector
	logger  *zap.Logger

	mu               sync.RWMutex
	settings         types.ChunkSettings
	settingsExplicit bool
	topK             int
}

// NewEngine wires the pipeline. collector may be nil.
func NewEngine(vectors VectorStore, embedder Embedder, llm LLM, cfg EngineConfig, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}

	store := NewIndexStore(vectors, embedder, logger)
	router := NewRouter(llm, logger,
		NewLexicalRetriever(store),
		NewDenseRetriever(store),
		NewHyDERetriever(store, llm, logger),
	)

	return &Engine{
		loaders:  NewLoaderRegistry(logger),
		chunker:  NewSentenceSplitter(logger),
		store:    store,
		router:   router,
		synth:    NewSynthesizer(llm, cfg.Synthesizer, logger),
		metrics:  collector,
		logger:   logger.With(zap.String("component", "engine")),
		settings: types.DefaultChunkSettings(),
		topK:     cfg.TopK,
	}
}

// IngestDocument loads, chunks, embeds and indexes one document. It returns
// the number of indexed segments. Re-uploading a file name that is already
// indexed is rejected; remove it first.
func (e *Engine) IngestDocument(ctx context.Context, data []byte, fileName string, override *types.ChunkSettings) (int, error) {
	start := time.Now()
	count, err := e.ingest(ctx, data, fileName, override)
	if err != nil {
		e.metrics.RecordIngest("error", 0, time.Since(start))
		return 0, err
	}
	e.metrics.RecordIngest("success", count, time.Since(start))
	return count, nil
}

func (e *Engine) ingest(ctx context.Context, data []byte, fileName string, override *types.ChunkSettings) (int, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return 0, types.NewValidation("file name is empty").WithStage("ingest")
	}
	if len(data) == 0 {
		return 0, types.NewValidation("file %q is empty", fileName).WithStage("ingest")
	}
	if e.store.HasDocument(fileName) {
		return 0, types.NewValidation("document %q is already indexed, remove it first", fileName).WithStage("ingest")
	}
	if override != nil {
		if err := override.Validate(); err != nil {
			return 0, err
		}
	}

	blocks, err := e.loaders.Load(data, fileName)
	if err != nil {
		return 0, err
	}
	if len(blocks) == 0 {
		return 0, types.NewValidation("file %q contains no extractable text", fileName).WithStage("ingest")
	}

	settings := e.resolveSettings(override, len(data))
	segments, err := e.chunker.Split(blocks, fileName, settings)
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, types.NewValidation("file %q produced no segments", fileName).WithStage("ingest")
	}

	if err := e.store.Ingest(ctx, segments); err != nil {
		return 0, err
	}

	e.logger.Info("document ingested",
		zap.String("file_name", fileName),
		zap.Int("segments", len(segments)),
		zap.Int("chunk_size", settings.ChunkSize),
		zap.Int("chunk_overlap", settings.ChunkOverlap))
	return len(segments), nil
}

// resolveSettings picks chunk settings for one ingestion: a per-call
// override wins, then explicitly updated session settings, then the
// size-based automatic tier.
func (e *Engine) resolveSettings(override *types.ChunkSettings, byteSize int) types.ChunkSettings {
	if override != nil {
		return *override
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.settingsExplicit {
		return e.settings
	}
	return types.AutoChunkSettings(byteSize)
}

// RemoveDocument drops one document from the index.
func (e *Engine) RemoveDocument(ctx context.Context, fileName string) error {
	return e.store.Remove(ctx, strings.TrimSpace(fileName))
}

// ClearAll empties the index. Clearing an empty session succeeds.
func (e *Engine) ClearAll(ctx context.Context) error {
	return e.store.Clear(ctx)
}

// ListDocuments lists the indexed file names.
func (e *Engine) ListDocuments() []string {
	return e.store.SourceDocuments()
}

// SupportedExtensions lists the file types the engine accepts.
func (e *Engine) SupportedExtensions() []string {
	return e.loaders.SupportedExtensions()
}

// AnswerQuestion routes the question to retrieval strategies and
// synthesizes a grounded answer. Questions against an empty corpus are
// rejected.
func (e *Engine) AnswerQuestion(ctx context.Context, question string) (Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, types.NewValidation("question is empty").WithStage("query")
	}
	files := e.store.SourceDocuments()
	if len(files) == 0 {
		return Answer{}, types.NewValidation("no documents are indexed yet").WithStage("query")
	}

	e.mu.RLock()
	topK := e.topK
	e.mu.RUnlock()

	segments, strategies, err := e.router.Retrieve(ctx, question, topK)
	if err != nil {
		e.metrics.RecordQuery(strings.Join(strategies, ","), "error", time.Since(start))
		return Answer{}, err
	}

	text, err := e.synth.Synthesize(ctx, question, segments)
	if err != nil {
		e.metrics.RecordQuery(strings.Join(strategies, ","), "error", time.Since(start))
		return Answer{}, err
	}

	e.metrics.RecordQuery(strings.Join(strategies, ","), "success", time.Since(start))
	e.logger.Info("question answered",
		zap.Strings("strategies", strategies),
		zap.Int("segments", len(segments)),
		zap.Duration("took", time.Since(start)))

	return Answer{Text: text, FilesUsed: files, Strategies: strategies}, nil
}

// Settings returns the session chunk settings and whether they were set
// explicitly. While not explicit, ingestion picks settings per document by
// size.
func (e *Engine) Settings() (types.ChunkSettings, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings, e.settingsExplicit
}

// UpdateSettings pins the session chunk settings. Already indexed documents
// keep their original chunking.
func (e *Engine) UpdateSettings(s types.ChunkSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.settings = s
	e.settingsExplicit = true
	e.mu.Unlock()

	e.logger.Info("chunk settings updated",
		zap.Int("chunk_size", s.ChunkSize),
		zap.Int("chunk_overlap", s.ChunkOverlap))
	return nil
}

// Stats snapshots the index counters.
func (e *Engine) Stats(ctx context.Context) IndexStats {
	return e.store.Stats(ctx)
}

// Reconcile resyncs the session registry from the vector store.
func (e *Engine) Reconcile(ctx context.Context) error {
	return e.store.Reconcile(ctx)
}
