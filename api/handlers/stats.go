package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/rag"
)

// StatsHandler reports index counters.
type StatsHandler struct {
	engine     *rag.Engine
	collection string
	logger     *zap.Logger
}

// NewStatsHandler creates a stats handler. collection names the Qdrant
// collection reported alongside the counters.
func NewStatsHandler(engine *rag.Engine, collection string, logger *zap.Logger) *StatsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{
		engine:     engine,
		collection: collection,
		logger:     logger.With(zap.String("component", "stats_handler")),
	}
}

type statsResponse struct {
	Collection   string `json:"collection"`
	Documents    int    `json:"documents"`
	Segments     int    `json:"segments"`
	VectorPoints int    `json:"vector_points"`
	VectorStatus string `json:"vector_status"`
}

// HandleStats serves GET /api/stats. A vector store outage degrades the
// status field instead of failing the request.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w)
		return
	}

	stats := h.engine.Stats(r.Context())
	WriteSuccess(w, statsResponse{
		Collection:   h.collection,
		Documents:    stats.Documents,
		Segments:     stats.Segments,
		VectorPoints: stats.VectorPoints,
		VectorStatus: stats.VectorStatus,
	})
}
