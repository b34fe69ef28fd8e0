package types

// Segment is the atomic unit of retrieval: one chunk of document text after
// splitting. Segments are immutable once created and belong to exactly one
// source document.
type Segment struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
	Position   int    `json:"position"`
}

// ScoredSegment pairs a segment with a retrieval relevance score. Higher is
// more relevant; scores from different strategies are not comparable before
// normalization.
type ScoredSegment struct {
	Segment Segment `json:"segment"`
	Score   float64 `json:"score"`
}

// ChunkSettings controls split size and overlap for the next ingestion.
// Updating settings does not re-chunk already-indexed documents.
type ChunkSettings struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`
}

// Chunk size bounds and the size-tiered auto policy thresholds.
const (
	MinChunkSize = 100
	MaxChunkSize = 2000

	largeDocBytes  = 1 << 20 // 1 MiB
	mediumDocBytes = 1 << 19 // 512 KiB
)

// DefaultChunkSettings returns the session default (512/50).
func DefaultChunkSettings() ChunkSettings {
	return ChunkSettings{ChunkSize: 512, ChunkOverlap: 50}
}

// AutoChunkSettings derives settings from the source document byte size:
// documents over 1 MiB get 2048/200, over 512 KiB get 1024/100, everything
// else gets the 512/50 default.
func AutoChunkSettings(byteSize int) ChunkSettings {
	switch {
	case byteSize > largeDocBytes:
		return ChunkSettings{ChunkSize: 2048, ChunkOverlap: 200}
	case byteSize > mediumDocBytes:
		return ChunkSettings{ChunkSize: 1024, ChunkOverlap: 100}
	default:
		return ChunkSettings{ChunkSize: 512, ChunkOverlap: 50}
	}
}

// Validate rejects settings outside the allowed range before any chunking
// occurs. Sizes derived by AutoChunkSettings are exempt from the range check
// at the call site; explicit caller-supplied settings are not.
func (s ChunkSettings) Validate() error {
	if s.ChunkSize < MinChunkSize || s.ChunkSize > MaxChunkSize {
		return NewValidation("chunk_size %d outside allowed range [%d, %d]", s.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return NewValidation("chunk_overlap %d must be in [0, chunk_size)", s.ChunkOverlap)
	}
	return nil
}
